package fulfillment

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

type messagePublisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KickoffPublisher hands processed orders to the warehouse over the kickoff topic.
type KickoffPublisher struct {
	Producer messagePublisher
	Service  string
	Now      func() time.Time
}

func (p *KickoffPublisher) PublishKickoff(ctx context.Context, o orders.Order) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	corr := logger.CorrelationID(ctx)
	if corr == "" {
		corr = o.OrderID
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventFulfillmentRequested,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      p.Service,
		CorrelationID: corr,
		Payload:       kafkax.MustMarshal(orders.KickoffPayload{Order: o}),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
	}

	headers := append(kafkax.EventHeaders(orders.EventFulfillmentRequested, 1), kafkax.TraceHeaders(ctx)...)
	return p.Producer.Publish(ctx, orders.PartitionKey(o.OrderID), kafkax.MustMarshal(ev), headers...)
}
