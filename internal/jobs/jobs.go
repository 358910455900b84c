// Package jobs enqueues the asynchronous work that follows a committed
// sign-up (image field extraction and CRM sync) and runs the periodic
// maintenance loop that purges expired idempotency tokens.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Job kinds.
const (
	KindExtraction = "extraction"
	KindSync       = "sync"
)

// PhaseInitial is the sync phase used right after submission.
const PhaseInitial = "initial"

// Default list names.
const (
	DefaultExtractionQueue = "signups:jobs:extraction"
	DefaultSyncQueue       = "signups:jobs:sync"
)

// Job is the JSON payload pushed onto a queue.
type Job struct {
	Kind       string    `json:"kind"`
	RecordID   string    `json:"record_id"`
	Phase      string    `json:"phase,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Backend pushes an encoded job onto a named queue.
type Backend interface {
	Push(ctx context.Context, queue string, payload []byte) error
}

// Enqueuer turns record ids into jobs on the extraction and sync queues.
type Enqueuer struct {
	Backend         Backend
	ExtractionQueue string
	SyncQueue       string
	Now             func() time.Time
}

// NewEnqueuer returns an Enqueuer with default queue names.
func NewEnqueuer(b Backend) *Enqueuer {
	return &Enqueuer{
		Backend:         b,
		ExtractionQueue: DefaultExtractionQueue,
		SyncQueue:       DefaultSyncQueue,
		Now:             func() time.Time { return time.Now().UTC() },
	}
}

// EnqueueExtraction schedules field extraction for an attached image.
func (e *Enqueuer) EnqueueExtraction(ctx context.Context, recordID string) error {
	return e.push(ctx, e.ExtractionQueue, Job{Kind: KindExtraction, RecordID: recordID})
}

// EnqueueSync schedules a downstream CRM sync.
func (e *Enqueuer) EnqueueSync(ctx context.Context, recordID, phase string) error {
	if phase == "" {
		phase = PhaseInitial
	}
	return e.push(ctx, e.SyncQueue, Job{Kind: KindSync, RecordID: recordID, Phase: phase})
}

func (e *Enqueuer) push(ctx context.Context, queue string, j Job) error {
	j.EnqueuedAt = e.Now()
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return e.Backend.Push(ctx, queue, b)
}

// LogBackend logs jobs instead of queueing them. Used when Redis is not
// configured.
type LogBackend struct{}

func (LogBackend) Push(_ context.Context, queue string, payload []byte) error {
	log.Info().Str("queue", queue).RawJSON("job", payload).Msg("job enqueued")
	return nil
}
