package events

// Topic constants for domain events emitted by cart sessions.
const (
	TopicItemAdded       = "cart.item_added"
	TopicQuantityChanged = "cart.quantity_changed"
	TopicItemRemoved     = "cart.item_removed"
	TopicCartCleared     = "cart.cleared"
	TopicCartRestored    = "cart.restored"
	TopicOrderConfirmed  = "order.confirmed"
)

// DefaultTopics returns the canonical list of cart topics.
func DefaultTopics() []string {
	return []string{
		TopicItemAdded,
		TopicQuantityChanged,
		TopicItemRemoved,
		TopicCartCleared,
		TopicCartRestored,
		TopicOrderConfirmed,
	}
}
