package redisx

import "time"

const (
	// Cached account document: account:{uid} -> JSON document incl. version
	KeyAccount = "account:%s"

	// Checkout idempotency: idem:checkout:{uid}:{key} -> order id
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLAccount     = 15 * time.Minute
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour

	// a checkout that never settles frees its key after this
	TTLIdempotencyPending = 2 * time.Minute
)
