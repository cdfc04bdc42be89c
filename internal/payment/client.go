package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultTimeout    = 10 * time.Second
	CorrelationHeader = "X-Correlation-ID"
)

type PaymentRequest struct {
	OrderID    string          `json:"order_id" validate:"required"`
	CustomerID string          `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method" validate:"required"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

// Client authorizes payments against the payment service. DECLINED and NOTFOUND come
// back as results; only transport problems are errors, and only those trip the breaker.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "PaymentService",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: timeout,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

func (c *Client) Authorize(ctx context.Context, orderID, customerID string, amount decimal.Decimal, method, correlationID string) (orders.PaymentResult, error) {
	req := PaymentRequest{OrderID: orderID, CustomerID: customerID, Amount: amount, Method: method}
	res, err := executeWithBreaker(c.cb, func() (orders.PaymentResult, error) {
		return c.post(ctx, req, correlationID)
	})
	if err != nil {
		var gwErr *orders.GatewayError
		if errors.As(err, &gwErr) {
			return orders.PaymentResult{}, err
		}
		// breaker open or half-open and saturated
		return orders.PaymentResult{}, &orders.GatewayError{Gateway: "payment", Op: "authorize", Err: err}
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, body PaymentRequest, correlationID string) (orders.PaymentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := json.Marshal(body)
	if err != nil {
		return orders.PaymentResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(b))
	if err != nil {
		return orders.PaymentResult{}, gatewayErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationID != "" {
		req.Header.Set(CorrelationHeader, correlationID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return orders.PaymentResult{}, gatewayErr(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var out orders.PaymentResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return orders.PaymentResult{}, gatewayErr(fmt.Errorf("decode response: %w", err))
		}
		if out.PaymentID == "" || out.Status == "" {
			return orders.PaymentResult{}, gatewayErr(errors.New("response without payment_id or status"))
		}
		return out, nil
	case http.StatusPaymentRequired:
		return orders.PaymentResult{OrderID: body.OrderID, Status: orders.PaymentDeclined, Amount: body.Amount, Message: detail(resp.Body)}, nil
	case http.StatusNotFound:
		return orders.PaymentResult{OrderID: body.OrderID, Status: orders.PaymentNotFound, Amount: body.Amount, Message: detail(resp.Body)}, nil
	default:
		return orders.PaymentResult{}, gatewayErr(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func detail(r io.Reader) string {
	var e errorBody
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&e); err != nil {
		return ""
	}
	return e.Detail
}

func gatewayErr(err error) error {
	return &orders.GatewayError{Gateway: "payment", Op: "authorize", Err: err}
}

func executeWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return *new(T), err
	}
	return res.(T), nil
}
