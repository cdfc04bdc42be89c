package saga

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const PaymentMethod = "CARD"

type OrderStore interface {
	Admit(id string) bool
	Abandon(id string)
	Insert(o orders.Order) (orders.Order, error)
}

type InventoryGateway interface {
	CheckAvailability(ctx context.Context, items map[string]int) (map[string]bool, error)
	Reserve(ctx context.Context, items map[string]int) (orders.ReservationResult, error)
	Release(ctx context.Context, items map[string]int) (orders.ReleaseResult, error)
	Restock(ctx context.Context, items map[string]int) (orders.RestockResult, error)
}

type PaymentGateway interface {
	Authorize(ctx context.Context, orderID, customerID string, amount decimal.Decimal, method, correlationID string) (orders.PaymentResult, error)
}

type EventPublisher interface {
	PublishKickoff(ctx context.Context, o orders.Order) error
}

// EventLogger ships a step record to the central sink. Errors are never acted upon.
type EventLogger interface {
	Log(ctx context.Context, event, message string) error
}

type OutcomeRecorder interface {
	SagaOutcome(outcome string)
}

// Coordinator runs the create-order saga. Store, Inventory and Payment are required;
// the remaining collaborators are optional.
type Coordinator struct {
	Store     OrderStore
	Inventory InventoryGateway
	Payment   PaymentGateway
	Publisher EventPublisher
	Events    EventLogger
	Policy    RestockPolicy
	Logger    *zap.Logger
	Metrics   OutcomeRecorder
	Now       func() time.Time
}

var tracer = otel.Tracer("github.com/ariefcatur/go-order-saga/internal/saga")

// CreateOrder admits, reserves, charges and commits one order. BACKORDERED and CANCELLED
// orders are returned without error; every other unhappy path returns an error that
// orders.KindOf can classify, and in that case nothing is stored.
func (c *Coordinator) CreateOrder(ctx context.Context, req orders.CreateOrderRequest, correlationID string) (o orders.Order, err error) {
	ctx = logger.WithCorrelationID(ctx, correlationID)
	ctx, span := tracer.Start(ctx, "saga.CreateOrder")
	span.SetAttributes(attribute.String("order.id", req.OrderID))
	defer func() {
		outcome := outcomeOf(o, err)
		span.SetAttributes(attribute.String("saga.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if c.Metrics != nil {
			c.Metrics.SagaOutcome(outcome)
		}
	}()

	// 1. idempotency gate
	if !c.Store.Admit(req.OrderID) {
		c.emit(ctx, "order_rejected", fmt.Sprintf("duplicate order %s", req.OrderID))
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrDuplicateOrder, req.OrderID)
	}
	defer c.Store.Abandon(req.OrderID)
	c.emit(ctx, "order_admitted", fmt.Sprintf("order %s admitted", req.OrderID))

	// 2. amount
	computed := req.ComputedTotal()
	if !computed.Equal(req.TotalAmount) {
		c.emit(ctx, "order_rejected", fmt.Sprintf("order %s total %s does not match items %s", req.OrderID, req.TotalAmount, computed))
		return orders.Order{}, fmt.Errorf("%w: declared %s, computed %s", orders.ErrAmountMismatch, req.TotalAmount, computed)
	}

	items := req.Quantities()

	// 3. availability
	available, err := c.ensureAvailable(ctx, req.OrderID, items)
	if err != nil {
		return orders.Order{}, err
	}
	if !available {
		return c.store(ctx, req, orders.StatusBackordered)
	}

	// 4. reservation
	reservation, err := c.Inventory.Reserve(ctx, items)
	if err != nil {
		c.emit(ctx, "inventory_unavailable", fmt.Sprintf("reserve for order %s: %v", req.OrderID, err))
		return orders.Order{}, err
	}
	if !reservation.OverallSuccess {
		c.emit(ctx, "reservation_failed", fmt.Sprintf("order %s: %s", req.OrderID, failedItems(reservation)))
		return c.store(ctx, req, orders.StatusCancelled)
	}
	c.emit(ctx, "items_reserved", fmt.Sprintf("order %s reserved %d products", req.OrderID, len(items)))

	// Stock is held from here on. Compensation and commit must finish even when the
	// caller has gone away; gateway calls keep their own timeouts.
	held := context.WithoutCancel(ctx)

	// 5. payment
	payment, err := c.Payment.Authorize(ctx, req.OrderID, req.Customer.CustomerID, req.TotalAmount, PaymentMethod, correlationID)
	if err != nil {
		c.emit(ctx, "payment_unavailable", fmt.Sprintf("authorize order %s: %v", req.OrderID, err))
		c.release(held, req.OrderID, items)
		return orders.Order{}, err
	}
	switch payment.Status {
	case orders.PaymentAuthorized, orders.PaymentCaptured:
		c.emit(ctx, "payment_authorized", fmt.Sprintf("order %s payment %s %s", req.OrderID, payment.PaymentID, payment.Status))
	case orders.PaymentDeclined:
		c.emit(ctx, "payment_declined", fmt.Sprintf("order %s: %s", req.OrderID, payment.Message))
		c.release(held, req.OrderID, items)
		return orders.Order{}, fmt.Errorf("%w: order %s", orders.ErrPaymentDeclined, req.OrderID)
	case orders.PaymentNotFound:
		c.emit(ctx, "customer_not_found", fmt.Sprintf("order %s customer %s", req.OrderID, req.Customer.CustomerID))
		c.release(held, req.OrderID, items)
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrCustomerNotFound, req.Customer.CustomerID)
	default:
		c.emit(ctx, "payment_unavailable", fmt.Sprintf("order %s unexpected payment status %q", req.OrderID, payment.Status))
		c.release(held, req.OrderID, items)
		return orders.Order{}, &orders.GatewayError{
			Gateway: "payment",
			Op:      "authorize",
			Err:     fmt.Errorf("unexpected status %q", payment.Status),
		}
	}

	// 6. commit
	stored, err := c.store(held, req, orders.StatusProcessed)
	if err != nil {
		return orders.Order{}, err
	}
	if c.Publisher != nil {
		if perr := c.Publisher.PublishKickoff(held, stored); perr != nil {
			logger.Error(held, c.log(), "publish fulfillment kickoff", zap.String("order_id", stored.OrderID), zap.Error(perr))
		}
	}
	return stored, nil
}

// ensureAvailable runs the availability check and, when the restock policy allows it,
// one restock followed by a re-check.
func (c *Coordinator) ensureAvailable(ctx context.Context, orderID string, items map[string]int) (bool, error) {
	availability, err := c.Inventory.CheckAvailability(ctx, items)
	if err != nil {
		c.emit(ctx, "inventory_unavailable", fmt.Sprintf("availability for order %s: %v", orderID, err))
		return false, err
	}
	missing := missingItems(items, availability)
	if len(missing) == 0 {
		c.emit(ctx, "items_available", fmt.Sprintf("order %s all items available", orderID))
		return true, nil
	}

	if !c.Policy.Applies(missing) {
		c.emit(ctx, "items_missing", fmt.Sprintf("order %s missing %v", orderID, sortedKeys(missing)))
		return false, nil
	}

	if _, err := c.Inventory.Restock(ctx, missing); err != nil {
		c.emit(ctx, "restock_failed", fmt.Sprintf("order %s: %v", orderID, err))
		return false, nil
	}
	c.emit(ctx, "restock_requested", fmt.Sprintf("order %s restocked %v", orderID, sortedKeys(missing)))

	availability, err = c.Inventory.CheckAvailability(ctx, items)
	if err != nil {
		c.emit(ctx, "inventory_unavailable", fmt.Sprintf("availability for order %s: %v", orderID, err))
		return false, err
	}
	if still := missingItems(items, availability); len(still) > 0 {
		c.emit(ctx, "items_missing", fmt.Sprintf("order %s still missing %v after restock", orderID, sortedKeys(still)))
		return false, nil
	}
	return true, nil
}

func (c *Coordinator) store(ctx context.Context, req orders.CreateOrderRequest, status orders.Status) (orders.Order, error) {
	stored, err := c.Store.Insert(orders.NewOrder(req, status, c.now()))
	if err != nil {
		return orders.Order{}, err
	}
	c.emit(ctx, "order_"+strings.ToLower(string(stored.Status)), fmt.Sprintf("order %s stored as %s", stored.OrderID, stored.Status))
	return stored, nil
}

// release returns the full item set to inventory. The result is not verified.
func (c *Coordinator) release(ctx context.Context, orderID string, items map[string]int) {
	if _, err := c.Inventory.Release(ctx, items); err != nil {
		logger.Error(ctx, c.log(), "compensating release failed", zap.String("order_id", orderID), zap.Error(err))
		c.emit(ctx, "release_failed", fmt.Sprintf("order %s: %v", orderID, err))
		return
	}
	c.emit(ctx, "items_released", fmt.Sprintf("order %s released %d products", orderID, len(items)))
}

func (c *Coordinator) emit(ctx context.Context, event, message string) {
	logger.Info(ctx, c.log(), message, zap.String("event", event))
	if c.Events == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn(ctx, c.log(), "event log panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	if err := c.Events.Log(ctx, event, message); err != nil {
		logger.Debug(ctx, c.log(), "event log dropped", zap.String("event", event), zap.Error(err))
	}
}

func (c *Coordinator) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Coordinator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func missingItems(items map[string]int, availability map[string]bool) map[string]int {
	missing := make(map[string]int)
	for id, qty := range items {
		if !availability[id] {
			missing[id] = qty
		}
	}
	return missing
}

func failedItems(r orders.ReservationResult) string {
	ids := make([]string, 0)
	for id, st := range r.Results {
		if !st.Success {
			ids = append(ids, id+": "+st.Message)
		}
	}
	sort.Strings(ids)
	return fmt.Sprint(ids)
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func outcomeOf(o orders.Order, err error) string {
	if err == nil {
		return strings.ToLower(string(o.Status))
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return string(orders.KindOf(err))
}
