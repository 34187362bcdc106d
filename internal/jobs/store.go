// Package jobs is the in-memory registry of certificate lifecycle jobs.
package jobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/certops/certbot-ui/pkg/models"
	"github.com/google/uuid"
)

const (
	// MaxTerminalJobs caps how many completed/failed jobs are retained.
	MaxTerminalJobs = 100
	// RetentionWindow is how long a terminal job survives past its last update.
	RetentionWindow = 24 * time.Hour
	// CleanupInterval is how often the background cleanup pass runs.
	CleanupInterval = time.Hour
)

// Store holds all jobs for the process. Jobs are mutated only through Store
// methods; reads return copies so callers never share memory with the registry.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Used by tests to age jobs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty job store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		jobs: make(map[uuid.UUID]*models.Job),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a new pending job owned by userID and returns a copy of it.
func (s *Store) Create(jobType models.JobType, userID string, request any) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	job := &models.Job{
		ID:        uuid.New(),
		Type:      jobType,
		Status:    models.JobStatusPending,
		UserID:    userID,
		Request:   request,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job

	slog.Info("job created", "job_id", job.ID, "type", jobType, "user_id", userID)
	return *job
}

// Get returns a copy of the job, or false when it does not exist.
func (s *Store) Get(jobID uuid.UUID) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// ListForUser returns the user's jobs, newest creation first.
func (s *Store) ListForUser(userID string) []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Job, 0)
	for _, job := range s.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// SetStatus updates the job status, stamping CompletedAt on terminal
// transitions. Missing jobs are logged and ignored.
func (s *Store) SetStatus(jobID uuid.UUID, status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		slog.Warn("status update for unknown job", "job_id", jobID, "status", status)
		return
	}

	now := s.now()
	job.Status = status
	job.UpdatedAt = now
	if status.Terminal() {
		job.CompletedAt = &now
	}

	slog.Info("job status updated", "job_id", jobID, "status", status)
}

// SetProgress records a progress percentage and human-readable message.
func (s *Store) SetProgress(jobID uuid.UUID, percent int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		slog.Warn("progress update for unknown job", "job_id", jobID)
		return
	}

	job.Progress = &percent
	job.ProgressMessage = message
	job.UpdatedAt = s.now()

	slog.Info("job progress", "job_id", jobID, "percent", percent, "message", message)
}

// SetDNSChallenge attaches (or clears, with nil) the DNS challenge snapshot.
func (s *Store) SetDNSChallenge(jobID uuid.UUID, challenge *models.DNSChallenge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		slog.Warn("dns challenge update for unknown job", "job_id", jobID)
		return
	}

	job.DNSChallenge = challenge
	job.UpdatedAt = s.now()

	if challenge != nil {
		slog.Info("job dns challenge attached", "job_id", jobID, "domain", challenge.Domain)
	} else {
		slog.Info("job dns challenge cleared", "job_id", jobID)
	}
}

// Complete finalizes a job from a command result: completed on success,
// failed otherwise with the captured stderr as the error.
func (s *Store) Complete(jobID uuid.UUID, result models.CommandResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		slog.Warn("completion for unknown job", "job_id", jobID)
		return
	}

	now := s.now()
	job.Result = &result
	job.UpdatedAt = now
	job.CompletedAt = &now

	if result.Success {
		job.Status = models.JobStatusCompleted
	} else {
		job.Status = models.JobStatusFailed
		job.Error = result.Stderr
		if job.Error == "" {
			job.Error = "Unknown error occurred"
		}
	}

	slog.Info("job completed", "job_id", jobID, "status", job.Status)
}

// Fail forces a job into the failed state. Used when the workflow errors
// before a command result exists.
func (s *Store) Fail(jobID uuid.UUID, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		slog.Warn("failure for unknown job", "job_id", jobID)
		return
	}

	now := s.now()
	job.Status = models.JobStatusFailed
	job.Error = errMsg
	job.UpdatedAt = now
	job.CompletedAt = &now

	slog.Error("job failed", "job_id", jobID, "error", errMsg)
}

// Cleanup evicts terminal jobs older than the retention window, then trims
// the remaining terminal set down to MaxTerminalJobs, oldest-updated first.
// Pending and in-progress jobs are never removed.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	terminal := make([]*models.Job, 0)

	for id, job := range s.jobs {
		if !job.Status.Terminal() {
			continue
		}
		if now.Sub(job.UpdatedAt) > RetentionWindow {
			delete(s.jobs, id)
			slog.Info("cleaned up expired job", "job_id", id)
		} else {
			terminal = append(terminal, job)
		}
	}

	if len(terminal) <= MaxTerminalJobs {
		return
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})
	for _, job := range terminal[:len(terminal)-MaxTerminalJobs] {
		delete(s.jobs, job.ID)
		slog.Info("cleaned up excess job", "job_id", job.ID)
	}
}

// StartCleanup runs Cleanup on a fixed interval until ctx is cancelled.
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}
