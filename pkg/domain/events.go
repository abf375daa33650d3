package domain

import (
	"encoding/json"
	"time"
)

const (
	TopicCartEvents    = "cart_events"
	TopicProductEvents = "product_events"

	EventCartChanged    = "CartChanged"
	EventProductCreated = "ProductCreated"
	EventProductUpdated = "ProductUpdated"
	EventProductDeleted = "ProductDeleted"
)

// EventWrapper is the envelope every outbox payload is published in.
// EventID is filled in by the outbox worker.
type EventWrapper struct {
	Event   string          `json:"event"`
	EventID int64           `json:"event_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// CartChangedEvent carries the full post-mutation quantity of one cart line.
// Version orders the changes of a line; consumers drop an event whose
// version is not above the last one they applied.
type CartChangedEvent struct {
	SessionID string    `json:"session_id"`
	ProductID string    `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	Version   int64     `json:"version"`
	Origin    string    `json:"origin"`
	ChangedAt time.Time `json:"changed_at"`
}

type ProductChangedEvent struct {
	ProductID string `json:"product_id"`
}

func NewEventWrapper(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(EventWrapper{Event: event, Payload: raw})
}
