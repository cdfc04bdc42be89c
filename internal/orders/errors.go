package orders

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateOrder      = errors.New("order already exists")
	ErrAmountMismatch      = errors.New("total amount does not match sum of item prices")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrCustomerNotFound    = errors.New("customer account not found")
	ErrNotFound            = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUpstreamUnavailable = errors.New("dependency unavailable")
)

// GatewayError is a transport-level failure (timeout, connection error, malformed
// response) of a remote collaborator. It is fatal to the saga invocation that hit it.
type GatewayError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}

// Kind is the closed set of outcomes a create-order call can surface as an error.
type Kind string

const (
	KindNone                Kind = ""
	KindDuplicateOrder      Kind = "duplicate_order"
	KindAmountMismatch      Kind = "amount_mismatch"
	KindPaymentDeclined     Kind = "payment_declined"
	KindCustomerNotFound    Kind = "customer_not_found"
	KindNotFound            Kind = "not_found"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrDuplicateOrder):
		return KindDuplicateOrder
	case errors.Is(err, ErrAmountMismatch):
		return KindAmountMismatch
	case errors.Is(err, ErrPaymentDeclined):
		return KindPaymentDeclined
	case errors.Is(err, ErrCustomerNotFound):
		return KindCustomerNotFound
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	default:
		return KindInternal
	}
}
