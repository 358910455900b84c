package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-signup-backend/internal/fanout"
)

// RateResolver returns the partner rate valid at a point in time.
// ok=false means no rate applies.
type RateResolver interface {
	GetRate(ctx context.Context, partnerID int64, region string, at time.Time) (amount decimal.Decimal, ok bool, err error)
}

// ObjectStore stores image bytes and returns a public URL.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, contentType string) (url string, err error)
}

// EventPublisher is fire-and-forget from the orchestrator's viewpoint.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// ExtractionQueue schedules image field extraction for a record.
type ExtractionQueue interface {
	EnqueueExtraction(ctx context.Context, recordID string) error
}

// SyncQueue schedules a downstream sync for a record.
type SyncQueue interface {
	EnqueueSync(ctx context.Context, recordID, phase string) error
}

// Dispatcher runs post-commit tasks without blocking the caller.
// *fanout.Pool implements it.
type Dispatcher interface {
	Dispatch(name string, t fanout.Task) bool
}
