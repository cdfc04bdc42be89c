package orders

import (
	"fmt"
	"sync"
	"time"
)

// Ledger is the volatile order repository. One lock guards the whole map; ids that a
// running saga has admitted but not yet stored are tracked separately and are not
// visible through Get or List.
type Ledger struct {
	mu       sync.RWMutex
	orders   map[string]Order
	inflight map[string]struct{}
	now      func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		orders:   make(map[string]Order),
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}
}

// Admit claims an order id for a saga. It returns false when the id is already stored
// or another saga holds it.
func (l *Ledger) Admit(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.orders[id]; ok {
		return false
	}
	if _, ok := l.inflight[id]; ok {
		return false
	}
	l.inflight[id] = struct{}{}
	return true
}

// Abandon drops an admission claim. Stored orders are never affected.
func (l *Ledger) Abandon(id string) {
	l.mu.Lock()
	delete(l.inflight, id)
	l.mu.Unlock()
}

func (l *Ledger) Insert(o Order) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.orders[o.OrderID]; ok {
		return Order{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, o.OrderID)
	}
	delete(l.inflight, o.OrderID)
	stored := o.clone()
	l.orders[o.OrderID] = stored
	return stored.clone(), nil
}

func (l *Ledger) Get(id string) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return o.clone(), nil
}

func (l *Ledger) List() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o.clone())
	}
	return out
}

// UpdateStatus moves a stored order forward. Re-applying the current status is a no-op,
// so redelivered events are harmless.
func (l *Ledger) UpdateStatus(id string, status Status) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.Status == status {
		return o.clone(), nil
	}
	if !CanTransition(o.Status, status) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}
	now := l.now().UTC()
	o.Status = status
	o.UpdatedAt = &now
	l.orders[id] = o
	return o.clone(), nil
}
