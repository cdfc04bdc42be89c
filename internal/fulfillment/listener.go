package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/orders"
	"go.uber.org/zap"
)

const (
	DefaultGrace         = 30 * time.Second
	DefaultRetryInterval = time.Second
	// DefaultMaxPending bounds the events held for orders that do not exist yet.
	DefaultMaxPending = 10000
)

type StatusUpdater interface {
	UpdateStatus(id string, status orders.Status) (orders.Order, error)
}

type EventRecorder interface {
	FulfillmentEvent(event, result string)
}

// Listener applies warehouse events to the ledger. It only moves statuses; it never
// compensates. Events for orders the saga has not committed yet wait in a per-order
// queue and are retried until the grace period runs out.
type Listener struct {
	store   StatusUpdater
	in      <-chan orders.FulfillmentEvent
	grace   time.Duration
	retry   time.Duration
	now     func() time.Time
	log     *zap.Logger
	metrics EventRecorder

	maxPending int
	buffered   int
	pending    map[string]*pendingQueue
}

type pendingQueue struct {
	since  time.Time
	events []orders.FulfillmentEventKind
}

type ListenerOption func(*Listener)

func WithGrace(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.grace = d
		}
	}
}

func WithRetryInterval(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.retry = d
		}
	}
}

func WithMaxPending(n int) ListenerOption {
	return func(l *Listener) {
		if n > 0 {
			l.maxPending = n
		}
	}
}

func WithLogger(log *zap.Logger) ListenerOption {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

func WithMetrics(m EventRecorder) ListenerOption {
	return func(l *Listener) { l.metrics = m }
}

func NewListener(store StatusUpdater, in <-chan orders.FulfillmentEvent, opts ...ListenerOption) *Listener {
	l := &Listener{
		store:      store,
		in:         in,
		grace:      DefaultGrace,
		retry:      DefaultRetryInterval,
		now:        time.Now,
		log:        zap.NewNop(),
		maxPending: DefaultMaxPending,
		pending:    make(map[string]*pendingQueue),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run consumes events until ctx ends or the inbound channel is closed.
func (l *Listener) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	l.log.Info("fulfillment listener started", zap.Duration("grace", l.grace))
	for {
		select {
		case <-ctx.Done():
			l.log.Info("fulfillment listener stopped", zap.Int("pending_orders", len(l.pending)))
			return nil
		case ev, ok := <-l.in:
			if !ok {
				return nil
			}
			l.handle(ev)
		case <-ticker.C:
			l.retryPending()
		}
	}
}

func (l *Listener) handle(ev orders.FulfillmentEvent) {
	kind, ok := orders.ParseFulfillmentEvent(ev.Event)
	if !ok || ev.OrderID == "" {
		l.log.Warn("unknown fulfillment event ignored", zap.String("order_id", ev.OrderID), zap.String("event", ev.Event))
		l.record(ev.Event, "invalid")
		return
	}

	// keep arrival order behind events already waiting for this order
	if q, ok := l.pending[ev.OrderID]; ok {
		if l.full(ev.OrderID, kind) {
			return
		}
		q.events = append(q.events, kind)
		l.buffered++
		l.record(string(kind), "buffered")
		return
	}

	if !l.apply(ev.OrderID, kind) {
		if l.full(ev.OrderID, kind) {
			return
		}
		l.pending[ev.OrderID] = &pendingQueue{since: l.now(), events: []orders.FulfillmentEventKind{kind}}
		l.buffered++
		l.log.Debug("fulfillment event buffered for unknown order", zap.String("order_id", ev.OrderID), zap.String("event", string(kind)))
		l.record(string(kind), "buffered")
	}
}

// full drops the event when the pending buffer is at capacity.
func (l *Listener) full(orderID string, kind orders.FulfillmentEventKind) bool {
	if l.buffered < l.maxPending {
		return false
	}
	l.log.Warn("pending buffer full, dropping fulfillment event",
		zap.String("order_id", orderID),
		zap.String("event", string(kind)),
		zap.Int("buffered", l.buffered),
	)
	l.record(string(kind), "dropped")
	return true
}

// apply returns false only when the order does not exist yet.
func (l *Listener) apply(orderID string, kind orders.FulfillmentEventKind) bool {
	o, err := l.store.UpdateStatus(orderID, kind.Status())
	switch {
	case err == nil:
		l.log.Info("order status updated", zap.String("order_id", orderID), zap.String("status", string(o.Status)))
		l.record(string(kind), "applied")
		return true
	case errors.Is(err, orders.ErrNotFound):
		return false
	case errors.Is(err, orders.ErrInvalidTransition):
		l.log.Warn("fulfillment event ignored", zap.String("order_id", orderID), zap.String("event", string(kind)), zap.Error(err))
		l.record(string(kind), "rejected")
		return true
	default:
		l.log.Error("update order status", zap.String("order_id", orderID), zap.Error(err))
		l.record(string(kind), "error")
		return true
	}
}

func (l *Listener) retryPending() {
	now := l.now()
	for id, q := range l.pending {
		for len(q.events) > 0 && l.apply(id, q.events[0]) {
			q.events = q.events[1:]
			l.buffered--
		}
		if len(q.events) == 0 {
			delete(l.pending, id)
			continue
		}
		if now.Sub(q.since) >= l.grace {
			l.log.Warn("dropping fulfillment events for unknown order",
				zap.String("order_id", id),
				zap.Int("events", len(q.events)),
				zap.Duration("waited", now.Sub(q.since)),
			)
			for _, k := range q.events {
				l.record(string(k), "dropped")
			}
			l.buffered -= len(q.events)
			delete(l.pending, id)
		}
	}
}

func (l *Listener) record(event, result string) {
	if l.metrics != nil {
		l.metrics.FulfillmentEvent(event, result)
	}
}
