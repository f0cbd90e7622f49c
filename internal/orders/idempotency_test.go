package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-voice-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	idem := RedisIdempotency{Redis: client}
	ctx := context.Background()

	id, claimed, err := idem.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Zero(t, id)

	id, claimed, err = idem.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, id, "still pending")

	require.NoError(t, idem.Complete(ctx, "u1", "k1", 1714557600000))
	id, claimed, err = idem.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(1714557600000), id)

	// keys are scoped per user
	_, claimed, err = idem.Claim(ctx, "u2", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, idem.Release(ctx, "u2", "k1"))
	_, claimed, err = idem.Claim(ctx, "u2", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisIdempotency_PendingKeyExpiresQuickly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	idem := RedisIdempotency{Redis: client}
	ctx := context.Background()

	_, claimed, err := idem.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, redisx.TTLIdempotencyPending, mr.TTL(fmt.Sprintf(redisx.KeyIdemCheckout, "u1", "k1")))

	// the claimer never settled the key
	mr.FastForward(redisx.TTLIdempotencyPending + time.Second)
	_, claimed, err = idem.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, idem.Complete(ctx, "u1", "k1", 42))
	assert.Equal(t, redisx.TTLIdempotency, mr.TTL(fmt.Sprintf(redisx.KeyIdemCheckout, "u1", "k1")))

	mr.FastForward(time.Hour)
	id, claimed, err := idem.Claim(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(42), id)
}
