package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ariefcatur/go-order-saga/internal/orders"
)

// Store owns the stock levels. Reserve is per item and never rolls back the items that
// succeeded; Release always succeeds once it has run.
type Store interface {
	Availability(ctx context.Context, items map[string]int) (map[string]bool, error)
	Reserve(ctx context.Context, items map[string]int) (orders.ReservationResult, error)
	Release(ctx context.Context, items map[string]int) (orders.ReleaseResult, error)
	Restock(ctx context.Context, items map[string]int) (orders.RestockResult, error)
}

// DefaultStock seeds the in-memory store when no data file is configured.
var DefaultStock = map[string]int{
	"P1":   100,
	"P2":   50,
	"P3":   10,
	"P4":   0,
	"SKU1": 25,
}

// LoadStock reads a {"productId": quantity} JSON document.
func LoadStock(path string) (map[string]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stock := map[string]int{}
	if err := json.Unmarshal(b, &stock); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return stock, nil
}

type MemoryStore struct {
	mu      sync.Mutex
	stock   map[string]int
	allowed map[string]struct{}
}

func NewMemoryStore(stock map[string]int, restockAllowed []string) *MemoryStore {
	s := &MemoryStore{stock: make(map[string]int, len(stock)), allowed: allowSet(restockAllowed)}
	for id, qty := range stock {
		s.stock[id] = qty
	}
	return s
}

func (s *MemoryStore) Availability(_ context.Context, items map[string]int) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(items))
	for id, qty := range items {
		have, ok := s.stock[id]
		out[id] = ok && have >= qty
	}
	return out, nil
}

func (s *MemoryStore) Reserve(_ context.Context, items map[string]int) (orders.ReservationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := orders.ReservationResult{OverallSuccess: true, Results: make(map[string]orders.ItemStatus, len(items))}
	for id, qty := range items {
		have, ok := s.stock[id]
		if !ok || have < qty {
			res.OverallSuccess = false
			res.Results[id] = orders.ItemStatus{Success: false, Message: msgNotEnough}
			continue
		}
		s.stock[id] = have - qty
		res.Results[id] = orders.ItemStatus{Success: true, Message: reservedMsg(qty)}
	}
	return res, nil
}

func (s *MemoryStore) Release(_ context.Context, items map[string]int) (orders.ReleaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := orders.ReleaseResult{OverallSuccess: true, Messages: make(map[string]string, len(items))}
	for id, qty := range items {
		s.stock[id] += qty
		res.Messages[id] = releasedMsg(qty)
	}
	return res, nil
}

func (s *MemoryStore) Restock(_ context.Context, items map[string]int) (orders.RestockResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := orders.RestockResult{OverallSuccess: true, Results: make(map[string]orders.RestockStatus, len(items))}
	for id, qty := range items {
		if _, ok := s.allowed[id]; !ok {
			res.OverallSuccess = false
			res.Results[id] = orders.RestockStatus{Success: false, Message: msgRestockDenied}
			continue
		}
		added := restockAmount(qty)
		s.stock[id] += added
		res.Results[id] = orders.RestockStatus{Success: true, Message: msgRestocked, Added: added}
	}
	return res, nil
}

// Stock returns the current level of one product.
func (s *MemoryStore) Stock(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qty, ok := s.stock[id]
	return qty, ok
}

const (
	msgNotEnough     = "not enough items in the inventory"
	msgRestockDenied = "restock not allowed"
	msgRestocked     = "restocked"
)

func reservedMsg(qty int) string { return fmt.Sprintf("reserved %d units", qty) }
func releasedMsg(qty int) string { return fmt.Sprintf("released %d units", qty) }

// A placeholder requested at zero still gets one unit so it becomes available.
func restockAmount(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}

func allowSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}
