package orders

import "strings"

type Status string

const (
	// StatusAdmitted is held while a saga runs; it is never stored in the ledger.
	StatusAdmitted    Status = "ADMITTED"
	StatusCancelled   Status = "CANCELLED"
	StatusBackordered Status = "BACKORDERED"
	StatusProcessed   Status = "PROCESSED"

	StatusItemsPicked  Status = "ITEMS_PICKED"
	StatusOrderPacked  Status = "ORDER_PACKED"
	StatusOrderShipped Status = "ORDER_SHIPPED"
)

var validNext = map[Status]map[Status]bool{
	StatusAdmitted:     {StatusCancelled: true, StatusBackordered: true, StatusProcessed: true},
	StatusProcessed:    {StatusItemsPicked: true, StatusOrderPacked: true, StatusOrderShipped: true},
	StatusItemsPicked:  {StatusOrderPacked: true, StatusOrderShipped: true},
	StatusOrderPacked:  {StatusOrderShipped: true},
	StatusOrderShipped: {},
	StatusCancelled:    {},
	StatusBackordered:  {},
}

// CanTransition reports whether an order may move forward from one status to another.
// Fulfillment statuses may be skipped so a lost warehouse event does not stall the order.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// FulfillmentEventKind is the warehouse lifecycle event carried on the status topic.
type FulfillmentEventKind string

const (
	EventItemsPicked  FulfillmentEventKind = "ITEMS_PICKED"
	EventOrderPacked  FulfillmentEventKind = "ORDER_PACKED"
	EventOrderShipped FulfillmentEventKind = "ORDER_SHIPPED"
)

// ParseFulfillmentEvent accepts the warehouse wire values case-insensitively
// ("items_picked" and "ITEMS_PICKED" are the same event).
func ParseFulfillmentEvent(s string) (FulfillmentEventKind, bool) {
	k := FulfillmentEventKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case EventItemsPicked, EventOrderPacked, EventOrderShipped:
		return k, true
	}
	return "", false
}

// Status returns the order status an event advances the order to.
func (k FulfillmentEventKind) Status() Status {
	return Status(k)
}
