package orders

import (
	"encoding/json"
	"time"
)

const (
	EventFulfillmentRequested = "FulfillmentRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// KickoffPayload hands a processed order to the warehouse.
type KickoffPayload struct {
	Order Order `json:"order"`
}

// FulfillmentEvent is published by the warehouse for each lifecycle step of an order.
type FulfillmentEvent struct {
	OrderID string `json:"orderId"`
	Event   string `json:"event"`
	Message string `json:"message"`
}

// LogRecord travels on the observability topic.
type LogRecord struct {
	Service string `json:"service"`
	Event   string `json:"event"`
	Message string `json:"message"`
}
