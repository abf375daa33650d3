package domain

import (
	"encoding/json"
	"fmt"
	"time"

	shared "github.com/carusalgiz/shop-cloudfront/pkg/domain"
)

// OutboxEvent is a row of the outbox table. AggregateID doubles as the
// Kafka message key, so events of one aggregate stay ordered.
type OutboxEvent struct {
	ID            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Headers       json.RawMessage `db:"headers"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
	Topic         string          `db:"topic"`
}

// NewOutboxEvent wraps payload in an EventWrapper envelope addressed to
// topic. The envelope's EventID is assigned by the worker on publish.
func NewOutboxEvent(topic, aggregateType, aggregateID, eventType string, payload any) (*OutboxEvent, error) {
	raw, err := shared.NewEventWrapper(eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("event payload marshal error: %w", err)
	}

	return &OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		Topic:         topic,
	}, nil
}
