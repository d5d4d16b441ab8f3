package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Submission event types.
const (
	SubmissionCompleted = "submission.completed"
	SubmissionFailed    = "submission.failed"
)

// Event describes a submission status change broadcast to other services.
type Event struct {
	Type         string                 `json:"type"`
	SubmissionID uint                   `json:"submission_id"`
	UserID       uint                   `json:"user_id"`
	Status       string                 `json:"status"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Source       string                 `json:"source"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// Publisher broadcasts submission events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NATSPublisher publishes events on "<prefix>.<event type>" subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	nodeID string
	logger zerolog.Logger
}

// NewNATSPublisher builds a publisher bound to an open NATS connection.
func NewNATSPublisher(conn *nats.Conn, prefix string, logger zerolog.Logger) *NATSPublisher {
	prefix = strings.Trim(strings.ReplaceAll(prefix, ":", "."), ".")
	if prefix == "" {
		prefix = "grader"
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		nodeID: uuid.NewString(),
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish serialises the event and sends it to NATS.
func (p *NATSPublisher) Publish(_ context.Context, event Event) error {
	if p == nil || p.conn == nil {
		return nil
	}

	payload, err := p.encode(event)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(p.Subject(event.Type), payload); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.logger.Debug().Str("type", event.Type).Uint("submission_id", event.SubmissionID).Msg("event published")
	return nil
}

// encode stamps the event with this node and the current time when unset.
func (p *NATSPublisher) encode(event Event) ([]byte, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Source = p.nodeID

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return payload, nil
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
