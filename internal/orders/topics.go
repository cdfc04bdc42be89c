package orders

const (
	TopicFulfillmentKickoff = "order.fulfillment.kickoff"
	TopicFulfillmentStatus  = "order.fulfillment.status"
	TopicEventLog           = "event.log"
)

// Partition key = order_id so every event of one order keeps its order on the bus.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
