package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSaga struct {
	order  orders.Order
	err    error
	called int
	corr   string
}

func (s *stubSaga) CreateOrder(_ context.Context, req orders.CreateOrderRequest, corr string) (orders.Order, error) {
	s.called++
	s.corr = corr
	if s.err != nil {
		return orders.Order{}, s.err
	}
	o := s.order
	o.OrderID = req.OrderID
	return o, nil
}

const validBody = `{
  "orderId": "X1",
  "customer": {"customerId": "C1", "prename": "Ada", "name": "Lovelace"},
  "items": [{"productId": "P1", "quantity": 2, "unitPrice": 10.00}],
  "totalAmount": 20.00,
  "shippingAddress": {"street": "Main 1", "city": "Berlin", "zipcode": "10115", "country": "DE"}
}`

func newServer(saga *stubSaga, ledger *orders.Ledger) http.Handler {
	r := NewRouter(nil)
	h := &OrdersHandler{Saga: saga, Orders: ledger}
	h.Register(r)
	return r
}

func post(t *testing.T, srv http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestCreateOrderStatusMapping(t *testing.T) {
	cases := []struct {
		name  string
		order orders.Order
		err   error
		code  int
		kind  orders.Kind
	}{
		{name: "processed", order: orders.Order{Status: orders.StatusProcessed}, code: http.StatusCreated},
		{name: "backordered", order: orders.Order{Status: orders.StatusBackordered}, code: http.StatusCreated},
		{name: "cancelled", order: orders.Order{Status: orders.StatusCancelled}, code: http.StatusConflict},
		{name: "duplicate", err: fmt.Errorf("%w: X1", orders.ErrDuplicateOrder), code: http.StatusBadRequest, kind: orders.KindDuplicateOrder},
		{name: "amount", err: orders.ErrAmountMismatch, code: http.StatusBadRequest, kind: orders.KindAmountMismatch},
		{name: "declined", err: orders.ErrPaymentDeclined, code: http.StatusPaymentRequired, kind: orders.KindPaymentDeclined},
		{name: "customer", err: orders.ErrCustomerNotFound, code: http.StatusNotFound, kind: orders.KindCustomerNotFound},
		{name: "gateway", err: &orders.GatewayError{Gateway: "payment", Op: "authorize", Err: context.DeadlineExceeded}, code: http.StatusBadGateway, kind: orders.KindUpstreamUnavailable},
		{name: "internal", err: errors.New("boom"), code: http.StatusInternalServerError, kind: orders.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			saga := &stubSaga{order: tc.order, err: tc.err}
			rec := post(t, newServer(saga, orders.NewLedger()), validBody, nil)

			assert.Equal(t, tc.code, rec.Code)
			if tc.err != nil {
				assert.Equal(t, tc.kind, decodeError(t, rec).Kind)
				return
			}
			var o orders.Order
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
			assert.Equal(t, "X1", o.OrderID)
			assert.Equal(t, tc.order.Status, o.Status)
		})
	}
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	saga := &stubSaga{}
	srv := newServer(saga, orders.NewLedger())

	rec := post(t, srv, `{"orderId":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, srv, `{"orderId":"X1","customer":{},"items":[],"totalAmount":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, kindInvalidRequest, detail.Kind)
	assert.Contains(t, detail.Fields, "customer.customerid")
	assert.Contains(t, detail.Fields, "items")

	assert.Zero(t, saga.called)
}

func TestCreateOrderCorrelationID(t *testing.T) {
	saga := &stubSaga{order: orders.Order{Status: orders.StatusProcessed}}
	srv := newServer(saga, orders.NewLedger())

	rec := post(t, srv, validBody, map[string]string{CorrelationHeader: "corr-42"})
	assert.Equal(t, "corr-42", saga.corr)
	assert.Equal(t, "corr-42", rec.Header().Get(CorrelationHeader))

	rec = post(t, srv, validBody, nil)
	assert.NotEmpty(t, saga.corr, "falls back to the request id")
	assert.Equal(t, saga.corr, rec.Header().Get(CorrelationHeader))
}

func TestReadEndpoints(t *testing.T) {
	ledger := orders.NewLedger()
	_, err := ledger.Insert(orders.Order{
		OrderID:     "X1",
		Customer:    orders.Customer{CustomerID: "C1"},
		Items:       []orders.OrderItem{{ProductID: "P1", Quantity: 1, UnitPrice: decimal.RequireFromString("5")}},
		TotalAmount: decimal.RequireFromString("5"),
		Status:      orders.StatusProcessed,
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = ledger.UpdateStatus("X1", orders.StatusItemsPicked)
	require.NoError(t, err)
	srv := newServer(&stubSaga{}, ledger)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/orders")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = get("/orders/X1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get("/orders/X1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var st statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "X1", st.OrderID)
	assert.Equal(t, orders.StatusItemsPicked, st.Status)
	assert.NotNil(t, st.UpdatedAt)

	rec = get("/orders/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, orders.KindNotFound, decodeError(t, rec).Kind)

	rec = get("/orders/nope/status")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEmpty(t *testing.T) {
	srv := newServer(&stubSaga{}, orders.NewLedger())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	srv := newServer(&stubSaga{}, orders.NewLedger())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
