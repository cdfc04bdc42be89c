package fulfillment

import (
	"context"

	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageConsumer interface {
	Start(ctx context.Context, h kafkax.Handler) error
}

// Source feeds status-topic messages into the listener's channel.
type Source struct {
	consumer messageConsumer
	out      chan<- orders.FulfillmentEvent
	log      *zap.Logger
}

func NewSource(consumer messageConsumer, out chan<- orders.FulfillmentEvent, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{consumer: consumer, out: out, log: log}
}

func (s *Source) Run(ctx context.Context) error {
	return s.consumer.Start(ctx, s.handle)
}

func (s *Source) handle(ctx context.Context, m kafkago.Message) error {
	ev, err := kafkax.Decode[orders.FulfillmentEvent](m.Value)
	if err != nil {
		// poison message: committing it is the only way past it
		s.log.Warn("undecodable fulfillment event skipped", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	select {
	case s.out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
