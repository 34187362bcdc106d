// Package ws pushes realtime job and certificate events to authenticated
// dashboard clients over websockets.
package ws

import "github.com/certops/certbot-ui/pkg/models"

// Event type names on the wire.
const (
	EventConnected         = "connected"
	EventPing              = "ping"
	EventPong              = "pong"
	EventOperationProgress = "operation_progress"
	EventOperationComplete = "operation_complete"
	EventCertificateUpdate = "certificate_update"
	EventDNSChallenge      = "dns_challenge"
)

// Event is the envelope for every websocket message, in both directions:
// a type name and a type-specific payload.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Welcome is the payload of the connected event.
type Welcome struct {
	Message string `json:"message"`
}

// OperationProgress reports partial progress of a running job.
type OperationProgress struct {
	Operation models.JobType `json:"operation"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
}

// OperationComplete reports a job reaching a terminal state.
type OperationComplete struct {
	Operation models.JobType `json:"operation"`
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
}

// CertificateUpdate announces a change to the certificate inventory so
// clients can refresh their lists.
type CertificateUpdate struct {
	Event       string `json:"event"`
	Certificate any    `json:"certificate,omitempty"`
}
