package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-sneakers/terra-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromClient(raw), mr
}

func TestGetMissingKeyReturnsEmpty(t *testing.T) {
	client, _ := newTestClient(t)
	value, err := client.Get(context.Background(), "terra:missing")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestSetNXOnlyOnce(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	key := client.IdempotencyKey("stripe-webhook", "evt_1")

	first, err := client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	mr.FastForward(2 * time.Minute)
	third, err := client.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, third, "key should be claimable after ttl")
}

func TestSetGetDel(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "terra:k", "v", 0))
	value, err := client.Get(ctx, "terra:k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	require.NoError(t, client.Del(ctx, "terra:k"))
	value, err = client.Get(ctx, "terra:k")
	require.NoError(t, err)
	assert.Empty(t, value)
	require.NoError(t, client.Ping(ctx))
}

func TestDelIfEqualsKeepsForeignValue(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	key := client.LockKey("cron-worker:local")
	require.NoError(t, client.Set(ctx, key, "worker-b", time.Minute))

	deleted, err := client.DelIfEquals(ctx, key, "worker-a")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, mr.Exists(key))

	deleted, err = client.DelIfEquals(ctx, key, "worker-b")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists(key))
}

func TestIncrWithTTL(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, "terra:rl:ip", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, mr.TTL("terra:rl:ip"))

	mr.FastForward(2 * time.Minute)
	got, err := client.IncrWithTTL(ctx, "terra:rl:ip", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "counter restarts after the window")
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "terra:idempotency:checkout:abc", client.IdempotencyKey("checkout", " abc "))
	assert.Equal(t, "terra:lock:cron-worker", client.LockKey("cron-worker"))
	assert.Equal(t, "terra:watermark:movement-export", client.WatermarkKey("movement-export"))
	assert.Equal(t, "terra:idempotency:scope", client.IdempotencyKey("scope", ""))
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	_, err := client.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
}
