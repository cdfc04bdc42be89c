//go:build integration

package redisx

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestDedupAgainstRedis(t *testing.T) {
	ctx := context.Background()
	c, err := rediscontainer.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	uri, err := c.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	d := NewDedup(rdb, "warehouse")

	first, err := d.FirstSeen(ctx, "X1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "X1")
	require.NoError(t, err)
	assert.False(t, again)

	n, err := rdb.Exists(ctx, "dedup:warehouse:X1").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ttl, err := rdb.TTL(ctx, "dedup:warehouse:X1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Hours(), 47.0)

	require.NoError(t, d.Forget(ctx, "X1"))
	first, err = d.FirstSeen(ctx, "X1")
	require.NoError(t, err)
	assert.True(t, first)
}
