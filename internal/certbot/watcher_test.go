package certbot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/certops/certbot-ui/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu         sync.Mutex
	jobIDs     []uuid.UUID
	challenges []*models.DNSChallenge
}

func (r *recordingSink) SetDNSChallenge(jobID uuid.UUID, challenge *models.DNSChallenge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobIDs = append(r.jobIDs, jobID)
	r.challenges = append(r.challenges, challenge)
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	userIDs []string
	sent    []models.DNSChallenge
}

func (r *recordingBroadcaster) SendDNSChallenge(userID string, challenge models.DNSChallenge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userIDs = append(r.userIDs, userID)
	r.sent = append(r.sent, challenge)
}

func TestWatcher_FindsChallengeOnLaterPoll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns-challenge.json")
	sink := &recordingSink{}
	broadcaster := &recordingBroadcaster{}

	w := NewWatcher(path, sink, broadcaster)
	w.interval = 10 * time.Millisecond
	w.maxAttempts = 50

	jobID := uuid.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Watch(context.Background(), jobID, "user-1")
	}()

	// Let a few polls miss before the hook "writes" the file.
	time.Sleep(35 * time.Millisecond)
	payload := `{"domain":"example.com","validation":"tok","record_name":"_acme-challenge.example.com","timestamp":"2026-08-28T10:00:00Z"}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not finish")
	}

	require.Len(t, sink.challenges, 1)
	assert.Equal(t, jobID, sink.jobIDs[0])
	assert.Equal(t, "example.com", sink.challenges[0].Domain)

	require.Len(t, broadcaster.sent, 1)
	assert.Equal(t, "user-1", broadcaster.userIDs[0])
	assert.Equal(t, "tok", broadcaster.sent[0].Validation)
}

func TestWatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns-challenge.json")
	sink := &recordingSink{}
	broadcaster := &recordingBroadcaster{}

	w := NewWatcher(path, sink, broadcaster)
	w.interval = time.Millisecond
	w.maxAttempts = 5

	w.Watch(context.Background(), uuid.New(), "user-1")

	assert.Empty(t, sink.challenges)
	assert.Empty(t, broadcaster.sent)
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns-challenge.json")
	sink := &recordingSink{}
	broadcaster := &recordingBroadcaster{}

	w := NewWatcher(path, sink, broadcaster)
	w.interval = 10 * time.Millisecond
	w.maxAttempts = 1000

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Watch(ctx, uuid.New(), "user-1")
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
	assert.Empty(t, sink.challenges)
}

func TestWatcher_SkipsMalformedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns-challenge.json")
	require.NoError(t, os.WriteFile(path, []byte("{mid-write"), 0o644))

	sink := &recordingSink{}
	broadcaster := &recordingBroadcaster{}

	w := NewWatcher(path, sink, broadcaster)
	w.interval = time.Millisecond
	w.maxAttempts = 5

	w.Watch(context.Background(), uuid.New(), "user-1")

	assert.Empty(t, sink.challenges)
}
