// Package models contains shared data models used across the certbot-ui codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies the certificate lifecycle operation a job performs.
type JobType string

const (
	JobTypeObtain JobType = "obtain"
	JobTypeRenew  JobType = "renew"
	JobTypeRevoke JobType = "revoke"
	JobTypeDelete JobType = "delete"
)

// JobStatus is the lifecycle state of a job. Transitions are monotonic:
// pending -> in_progress -> completed | failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CommandResult captures the outcome of a single certbot invocation.
// It is produced exactly once per invocation and is immutable afterwards.
type CommandResult struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// DNSChallenge is the validation record a user must publish in DNS during
// manual validation. The auth hook script writes it as JSON to a well-known
// file; the cleanup hook removes it once validation succeeds.
type DNSChallenge struct {
	Domain     string `json:"domain"`
	Validation string `json:"validation"`
	RecordName string `json:"record_name"`
	Timestamp  string `json:"timestamp"`
}

// Job tracks an asynchronous certificate lifecycle operation. Lifecycle POSTs
// return a job ID with 202 Accepted; the client polls
// GET /api/certificates/jobs/{jobId} or listens on the websocket until the
// status is terminal.
type Job struct {
	ID              uuid.UUID      `json:"id"`
	Type            JobType        `json:"type"`
	Status          JobStatus      `json:"status"`
	UserID          string         `json:"userId"`
	Request         any            `json:"request"`
	Result          *CommandResult `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
	Progress        *int           `json:"progress,omitempty"`
	ProgressMessage string         `json:"progressMessage,omitempty"`
	DNSChallenge    *DNSChallenge  `json:"dnsChallenge,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
}
