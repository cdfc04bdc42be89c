package redisx

import "time"

const (
	// Dedup event processing: dedup:{service}:{id} (id = order_id for kickoffs)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
