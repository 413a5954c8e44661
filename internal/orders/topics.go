package orders

// Topics are keyed by order id, or merchant id for settings, so the events of
// one entity keep their order.
const (
	TopicOrderPlaced          = "order.placed"
	TopicOrderStatusChanged   = "order.status.changed"
	TopicStoreSettingsUpdated = "store.settings.updated"
)
