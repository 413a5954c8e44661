package redisx

import "time"

const (
	// Shared product list: products -> JSON []Product
	KeyProducts = "products"

	// Current identity within a session scope: currentUser -> JSON User
	KeyCurrentUser = "currentUser"

	// Session scope prefix: session:{session_id}:
	KeySessionPrefix = "session:%s:"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
