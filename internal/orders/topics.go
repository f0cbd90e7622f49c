package orders

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderCancelled = "order.cancelled"
)

// Topics lists every topic this package publishes to.
var Topics = []string{TopicOrderPlaced, TopicOrderCancelled}

func topicFor(eventType string) string {
	switch eventType {
	case EventOrderCancelled:
		return TopicOrderCancelled
	default:
		return TopicOrderPlaced
	}
}

// Partition key = user id, so one user's order events keep their order.
func PartitionKey(uid string) []byte { return []byte(uid) }
