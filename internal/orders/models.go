package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	CustomerID string `json:"customerId" validate:"required"`
	Prename    string `json:"prename"`
	Name       string `json:"name"`
}

type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country"`
}

type OrderItem struct {
	ProductID string          `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CreateOrderRequest is the admission payload submitted by a caller.
type CreateOrderRequest struct {
	OrderID         string          `json:"orderId" validate:"required"`
	Customer        Customer        `json:"customer"`
	Items           []OrderItem     `json:"items" validate:"required,min=1,dive"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
}

type Order struct {
	OrderID         string          `json:"orderId"`
	Customer        Customer        `json:"customer"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       *time.Time      `json:"updatedAt"`
}

// ComputedTotal sums quantity*unitPrice over all line items using exact decimals.
func (r CreateOrderRequest) ComputedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Quantities maps product id to requested quantity; repeated product ids are summed.
func (r CreateOrderRequest) Quantities() map[string]int {
	out := make(map[string]int, len(r.Items))
	for _, it := range r.Items {
		out[it.ProductID] += it.Quantity
	}
	return out
}

// NewOrder builds the stored representation of a request with its terminal saga status.
func NewOrder(r CreateOrderRequest, status Status, now time.Time) Order {
	items := make([]OrderItem, len(r.Items))
	copy(items, r.Items)
	return Order{
		OrderID:         r.OrderID,
		Customer:        r.Customer,
		Items:           items,
		TotalAmount:     r.TotalAmount,
		ShippingAddress: r.ShippingAddress,
		Status:          status,
		CreatedAt:       now.UTC(),
	}
}

func (o Order) clone() Order {
	c := o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}

type ItemStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ReservationResult struct {
	OverallSuccess bool                  `json:"overallSuccess"`
	Results        map[string]ItemStatus `json:"results"`
}

type ReleaseResult struct {
	OverallSuccess bool              `json:"overallSuccess"`
	Messages       map[string]string `json:"messages"`
}

type RestockStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Added   int    `json:"added"`
}

type RestockResult struct {
	OverallSuccess bool                     `json:"overallSuccess"`
	Results        map[string]RestockStatus `json:"results"`
}

type PaymentStatus string

const (
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentCaptured   PaymentStatus = "CAPTURED"
	PaymentDeclined   PaymentStatus = "DECLINED"
	PaymentNotFound   PaymentStatus = "NOTFOUND"
)

type PaymentResult struct {
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	Status    PaymentStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Message   string          `json:"message,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
}
