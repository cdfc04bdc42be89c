package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest, correlationID string) (orders.Order, error)
}

type orderReader interface {
	Get(id string) (orders.Order, error)
	List() []orders.Order
}

type OrdersHandler struct {
	Saga   orderCreator
	Orders orderReader
	Logger *zap.Logger
}

type errorDetail struct {
	Kind    orders.Kind       `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type statusResponse struct {
	OrderID   string        `json:"orderId"`
	Status    orders.Status `json:"status"`
	UpdatedAt *time.Time    `json:"updatedAt"`
}

const kindInvalidRequest orders.Kind = "invalid_request"

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind orders.Kind, msg string, fields map[string]string) {
	writeJSON(w, code, errorResponse{Error: errorDetail{Kind: kind, Message: msg, Fields: fields}})
}

func correlationID(r *http.Request) string {
	if id := r.Header.Get(CorrelationHeader); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	corr := correlationID(r)
	w.Header().Set(CorrelationHeader, corr)
	ctx := logger.WithCorrelationID(r.Context(), corr)

	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid json", nil)
		return
	}
	if err := req.Validate(); err != nil {
		var verr *orders.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid request", verr.Fields)
			return
		}
		writeError(w, http.StatusBadRequest, kindInvalidRequest, err.Error(), nil)
		return
	}

	o, err := h.Saga.CreateOrder(ctx, req, corr)
	if err != nil {
		h.writeSagaError(ctx, w, err)
		return
	}
	if o.Status == orders.StatusCancelled {
		writeJSON(w, http.StatusConflict, o)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) writeSagaError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := orders.KindOf(err)
	switch kind {
	case orders.KindDuplicateOrder, orders.KindAmountMismatch:
		writeError(w, http.StatusBadRequest, kind, err.Error(), nil)
	case orders.KindPaymentDeclined:
		writeError(w, http.StatusPaymentRequired, kind, err.Error(), nil)
	case orders.KindCustomerNotFound, orders.KindNotFound:
		writeError(w, http.StatusNotFound, kind, err.Error(), nil)
	case orders.KindUpstreamUnavailable:
		logger.Warn(ctx, h.log(), "order failed on dependency", zap.Error(err))
		writeError(w, http.StatusBadGateway, kind, "a dependency is unavailable, retry later", nil)
	case orders.KindInternal, orders.KindNone:
		logger.Error(ctx, h.log(), "create order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, orders.KindInternal, "internal error", nil)
	}
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	list := h.Orders.List()
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{OrderID: o.OrderID, Status: o.Status, UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) lookup(w http.ResponseWriter, r *http.Request) (orders.Order, bool) {
	id := chi.URLParam(r, "id")
	o, err := h.Orders.Get(id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeError(w, http.StatusNotFound, orders.KindNotFound, "order "+id+" not found", nil)
		} else {
			writeError(w, http.StatusInternalServerError, orders.KindInternal, "internal error", nil)
		}
		return orders.Order{}, false
	}
	return o, true
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
