package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers which ids a service has already started processing.
type Dedup struct {
	rdb     redis.Cmdable
	service string
	ttl     time.Duration
}

func NewDedup(rdb redis.Cmdable, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service, ttl: TTLDedup}
}

// FirstSeen claims id with SETNX. It returns false when the id was claimed before.
func (d *Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, d.key(id), "1", d.ttl).Result()
}

// Forget drops a claim so a redelivery is processed again.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, d.key(id)).Err()
}

func (d *Dedup) key(id string) string {
	return fmt.Sprintf(KeyDedup, d.service, id)
}
