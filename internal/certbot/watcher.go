package certbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/certops/certbot-ui/pkg/models"
	"github.com/google/uuid"
)

const (
	watchInterval    = time.Second
	watchMaxAttempts = 120
)

// ChallengeSink receives a detected DNS challenge for a job. Implemented by
// the job store (attach) and the websocket hub (broadcast) via the Service.
type ChallengeSink interface {
	SetDNSChallenge(jobID uuid.UUID, challenge *models.DNSChallenge)
}

// ChallengeBroadcaster pushes a detected challenge to the owning user's
// realtime connections.
type ChallengeBroadcaster interface {
	SendDNSChallenge(userID string, challenge models.DNSChallenge)
}

// Watcher polls the challenge snapshot file written by the manual-DNS auth
// hook and relays the first well-formed snapshot to the job and the user.
type Watcher struct {
	path        string
	sink        ChallengeSink
	broadcaster ChallengeBroadcaster

	// Shrunk by tests.
	interval    time.Duration
	maxAttempts int
}

// NewWatcher creates a watcher for the snapshot file at path.
func NewWatcher(path string, sink ChallengeSink, broadcaster ChallengeBroadcaster) *Watcher {
	return &Watcher{
		path:        path,
		sink:        sink,
		broadcaster: broadcaster,
		interval:    watchInterval,
		maxAttempts: watchMaxAttempts,
	}
}

// Watch polls once per interval until a snapshot appears or the attempt
// budget is exhausted. Exhaustion is logged but never fails the job: the
// certbot hook script keeps its own, independent schedule. Blocks until done;
// callers run it on its own goroutine alongside the certbot invocation.
func (w *Watcher) Watch(ctx context.Context, jobID uuid.UUID, userID string) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		challenge, err := ReadChallenge(w.path)
		if err != nil || challenge == nil {
			// Not written yet (or mid-write); keep polling.
			continue
		}

		w.sink.SetDNSChallenge(jobID, challenge)
		w.broadcaster.SendDNSChallenge(userID, *challenge)
		slog.Info("dns challenge detected", "job_id", jobID, "domain", challenge.Domain)
		return
	}

	slog.Warn("dns challenge file not found", "job_id", jobID, "attempts", w.maxAttempts)
}
