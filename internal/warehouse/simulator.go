package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-order-saga/internal/kafka"
	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultStepDelay = 5 * time.Second

	EventFulfillmentStatus = "FulfillmentStatus"
)

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type messagePublisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

type EventLogger interface {
	Log(ctx context.Context, event, message string) error
}

type step struct {
	event   string
	message string
}

// The warehouse speaks lowercase event names on the wire.
var steps = []step{
	{"items_picked", "%s: Picked the ordered items"},
	{"order_packed", "%s: Packed the complete order. Ready for shipping"},
	{"order_shipped", "%s: Order was shipped."},
}

// Simulator turns a kickoff into picked, packed and shipped status events, one step
// delay apart.
type Simulator struct {
	Dedup     Deduper
	Out       messagePublisher
	Events    EventLogger
	StepDelay time.Duration
	Logger    *zap.Logger
}

// Handle is the kafka handler for the kickoff topic.
func (s *Simulator) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.Decode[orders.Envelope](m.Value)
	if err != nil {
		s.log().Warn("undecodable kickoff skipped", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventFulfillmentRequested {
		return nil
	}
	payload, err := kafkax.UnwrapPayload[orders.KickoffPayload](env.Payload)
	if err != nil || payload.Order.OrderID == "" {
		s.log().Warn("kickoff without order skipped", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	ctx = logger.WithCorrelationID(ctx, env.CorrelationID)
	return s.Fulfill(ctx, payload.Order.OrderID)
}

// Fulfill runs the pick/pack/ship sequence once per order id. A sequence cut short by
// cancellation releases its claim so the redelivered kickoff starts over.
func (s *Simulator) Fulfill(ctx context.Context, orderID string) error {
	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, orderID)
		if err != nil {
			logger.Warn(ctx, s.log(), "dedup unavailable, processing anyway", zap.String("order_id", orderID), zap.Error(err))
		} else if !first {
			logger.Info(ctx, s.log(), "duplicate kickoff ignored", zap.String("order_id", orderID))
			return nil
		}
	}

	for i, st := range steps {
		if i > 0 {
			if err := s.wait(ctx); err != nil {
				s.forget(orderID)
				return err
			}
		}
		if err := s.publish(ctx, orderID, st); err != nil {
			s.forget(orderID)
			return err
		}
	}
	return nil
}

func (s *Simulator) publish(ctx context.Context, orderID string, st step) error {
	ev := orders.FulfillmentEvent{
		OrderID: orderID,
		Event:   st.event,
		Message: fmt.Sprintf(st.message, orderID),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	headers := append(kafkax.EventHeaders(EventFulfillmentStatus, 1), kafkax.TraceHeaders(ctx)...)
	if err := s.Out.Publish(ctx, orders.PartitionKey(orderID), b, headers...); err != nil {
		return fmt.Errorf("publish %s for %s: %w", st.event, orderID, err)
	}
	logger.Info(ctx, s.log(), ev.Message, zap.String("order_id", orderID), zap.String("event", st.event))
	if s.Events != nil {
		_ = s.Events.Log(ctx, st.event, ev.Message)
	}
	return nil
}

func (s *Simulator) wait(ctx context.Context) error {
	d := s.StepDelay
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Simulator) forget(orderID string) {
	if s.Dedup == nil {
		return
	}
	// the handler context may already be gone
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Dedup.Forget(ctx, orderID); err != nil {
		s.log().Warn("release dedup claim", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Simulator) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
