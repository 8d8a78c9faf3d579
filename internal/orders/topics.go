package orders

const (
	TopicOrderStatus      = "order.status"
	TopicInventoryUpdated = "inventory.updated"
)

// Partition key = order_id (or product_id), so every event of one entity keeps
// its order inside a partition.
func PartitionKey(id string) []byte { return []byte(id) }
