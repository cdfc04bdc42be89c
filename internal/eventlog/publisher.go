package eventlog

import (
	"context"
	"encoding/json"

	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

const EventLogRecord = "LogRecord"

type messagePublisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Publisher sends {service, event, message} records to the observability topic.
// Delivery is fire-and-forget: the producer buffers and callers ignore the result.
type Publisher struct {
	Producer messagePublisher
	Service  string
}

func NewPublisher(p messagePublisher, service string) *Publisher {
	return &Publisher{Producer: p, Service: service}
}

func (p *Publisher) Log(ctx context.Context, event, message string) error {
	b, err := json.Marshal(orders.LogRecord{Service: p.Service, Event: event, Message: message})
	if err != nil {
		return err
	}
	headers := append(kafkax.EventHeaders(EventLogRecord, 1), kafkax.TraceHeaders(ctx)...)
	return p.Producer.Publish(ctx, []byte(p.Service), b, headers...)
}
