package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound   = errors.New("customer account not found")
	ErrInsufficientFunds = errors.New("payment declined: account not covered")
)

type Account struct {
	CustomerID string          `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

var DefaultAccounts = []Account{
	{CustomerID: "C1", Balance: decimal.RequireFromString("1000.00")},
	{CustomerID: "C2", Balance: decimal.RequireFromString("50.00")},
	{CustomerID: "C3", Balance: decimal.Zero},
}

// LoadAccounts reads a JSON array of accounts.
func LoadAccounts(path string) ([]Account, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var accounts []Account
	if err := json.Unmarshal(b, &accounts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return accounts, nil
}

type EventLogger interface {
	Log(ctx context.Context, event, message string) error
}

// Service captures payments against in-memory balances.
type Service struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal

	events EventLogger
	now    func() time.Time
	newID  func() string
}

func NewService(accounts []Account, events EventLogger) *Service {
	s := &Service{
		balances: make(map[string]decimal.Decimal, len(accounts)),
		events:   events,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, a := range accounts {
		s.balances[a.CustomerID] = a.Balance
	}
	return s
}

func (s *Service) Charge(ctx context.Context, req PaymentRequest) (orders.PaymentResult, error) {
	s.emit(ctx, fmt.Sprintf("starting payment for customer %s, order %s", req.CustomerID, req.OrderID))

	s.mu.Lock()
	balance, ok := s.balances[req.CustomerID]
	if !ok {
		s.mu.Unlock()
		s.emit(ctx, fmt.Sprintf("no customer with id %s found", req.CustomerID))
		return orders.PaymentResult{}, ErrAccountNotFound
	}
	if req.Amount.GreaterThan(balance) {
		s.mu.Unlock()
		s.emit(ctx, fmt.Sprintf("payment declined for customer %s: account not covered", req.CustomerID))
		return orders.PaymentResult{}, ErrInsufficientFunds
	}
	s.balances[req.CustomerID] = balance.Sub(req.Amount)
	s.mu.Unlock()

	res := orders.PaymentResult{
		PaymentID: s.newID(),
		OrderID:   req.OrderID,
		Status:    orders.PaymentCaptured,
		Amount:    req.Amount,
		CreatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	s.emit(ctx, fmt.Sprintf("created payment %s for order %s over %s", res.PaymentID, res.OrderID, res.Amount))
	return res, nil
}

func (s *Service) Balance(customerID string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[customerID]
	return b, ok
}

func (s *Service) emit(ctx context.Context, message string) {
	if s.events != nil {
		_ = s.events.Log(ctx, "CreatePayment", message)
	}
}
