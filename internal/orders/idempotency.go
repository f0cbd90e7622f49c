package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ariefcatur/go-voice-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// Idempotency remembers which order a checkout key produced.
type Idempotency interface {
	// Claim reserves key for uid. When the key was already used it reports
	// claimed=false and the order id it produced, or 0 while that checkout
	// is still running.
	Claim(ctx context.Context, uid, key string) (orderID int64, claimed bool, err error)
	Complete(ctx context.Context, uid, key string, orderID int64) error
	Release(ctx context.Context, uid, key string) error
}

type RedisIdempotency struct {
	Redis *redis.Client
}

func (r RedisIdempotency) Claim(ctx context.Context, uid, key string) (int64, bool, error) {
	k := fmt.Sprintf(redisx.KeyIdemCheckout, uid, key)
	ok, err := redisx.Claim(ctx, r.Redis, k, pendingMarker, redisx.TTLIdempotencyPending)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 0, true, nil
	}
	v, err := r.Redis.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return r.Claim(ctx, uid, key)
	}
	if err != nil {
		return 0, false, err
	}
	if v == pendingMarker {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency value %q: %w", v, err)
	}
	return id, false, nil
}

// Complete records the order for key and keeps it for TTLIdempotency.
func (r RedisIdempotency) Complete(ctx context.Context, uid, key string, orderID int64) error {
	k := fmt.Sprintf(redisx.KeyIdemCheckout, uid, key)
	return r.Redis.Set(ctx, k, strconv.FormatInt(orderID, 10), redisx.TTLIdempotency).Err()
}

func (r RedisIdempotency) Release(ctx context.Context, uid, key string) error {
	return r.Redis.Del(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, uid, key)).Err()
}
