package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-saga/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handler struct {
	Service *Service
	Logger  *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/payments", h.createPayment)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithCorrelationID(r.Context(), r.Header.Get(CorrelationHeader))

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid json"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
		return
	}
	if !req.Amount.IsPositive() {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "amount must be positive"})
		return
	}

	res, err := h.Service.Charge(ctx, req)
	switch {
	case err == nil:
		logger.Info(ctx, h.log(), "payment captured", zap.String("order_id", res.OrderID), zap.String("payment_id", res.PaymentID))
		writeJSON(w, http.StatusCreated, res)
	case errors.Is(err, ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Customer account not found."})
	case errors.Is(err, ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, errorBody{Detail: "Payment declined: account not covered."})
	default:
		logger.Error(ctx, h.log(), "charge failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
	}
}

func (h *Handler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
