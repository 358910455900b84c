// Package events publishes sign-up lifecycle events to a broker. The
// submission service treats every publisher as fire-and-forget: errors are
// logged and counted by the fan-out pool and never reach the client.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// TopicSignUpSubmitted is emitted once per newly committed sign-up.
const TopicSignUpSubmitted = "signup.submitted"

// Publisher is implemented by every broker adapter.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// SignUpSubmitted is the payload of TopicSignUpSubmitted.
type SignUpSubmitted struct {
	Event       string    `json:"event"`
	RecordID    string    `json:"record_id"`
	AgentID     string    `json:"agent_id"`
	PartnerID   int64     `json:"partner_id"`
	HasImage    bool      `json:"has_image"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Encode marshals the event, filling in the event name.
func (e SignUpSubmitted) Encode() ([]byte, error) {
	e.Event = TopicSignUpSubmitted
	return json.Marshal(e)
}

// LogPublisher writes events to the process log. It is the default when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	log.Info().
		Str("event", eventType).
		Str("key", partitionKey).
		RawJSON("payload", payload).
		Msg("event published")
	return nil
}

func (LogPublisher) Close() error { return nil }
