package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/ariefcatur/go-voice-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// setIfNewer stores ARGV[1] unless the cached document already carries a
// version >= ARGV[2]. Fills and write-throughs race freely; the newest wins.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, doc = pcall(cjson.decode, cur)
  if ok and type(doc) == 'table' and tonumber(doc.version) and tonumber(doc.version) >= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// CachedStore is a read-through decorator over another Store. Successful
// writes are written through to Redis; every cache write is versioned, so a
// slow reader can never put back a document older than the one cached.
// A version conflict drops the cached copy.
type CachedStore struct {
	next    Store
	rdb     *redis.Client
	baseTTL time.Duration
	log     *slog.Logger
	sfg     singleflight.Group // one backend read per uid at a time
}

func NewCachedStore(next Store, rdb *redis.Client, log *slog.Logger) *CachedStore {
	return &CachedStore{next: next, rdb: rdb, baseTTL: redisx.TTLAccount, log: log}
}

func (c *CachedStore) Create(ctx context.Context, a *Account) error {
	if err := c.next.Create(ctx, a); err != nil {
		return err
	}
	c.writeThrough(ctx, a)
	return nil
}

func (c *CachedStore) Get(ctx context.Context, uid string) (*Account, error) {
	v, err, _ := c.sfg.Do(uid, func() (interface{}, error) {
		d, err := c.cached(ctx, uid)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("account cache get failed", logx.UserID, uid, logx.Err(err))
		}

		a, err := c.next.Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		d = toDocument(a)
		if err := c.store(ctx, d); err != nil {
			c.log.Warn("account cache set failed", logx.UserID, uid, logx.Err(err))
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	// Each caller gets its own Account built from the shared document.
	return v.(document).toAccount()
}

func (c *CachedStore) Replace(ctx context.Context, a *Account) error {
	err := c.next.Replace(ctx, a)
	switch {
	case err == nil:
		c.writeThrough(ctx, a)
	case errors.Is(err, ErrVersionConflict):
		c.invalidate(a.UID)
	}
	return err
}

func (c *CachedStore) writeThrough(ctx context.Context, a *Account) {
	if err := c.store(context.WithoutCancel(ctx), toDocument(a)); err != nil {
		c.log.Warn("account cache write failed", logx.UserID, a.UID, logx.Err(err))
		c.invalidate(a.UID)
	}
}

func (c *CachedStore) cached(ctx context.Context, uid string) (document, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf(redisx.KeyAccount, uid)).Bytes()
	if err != nil {
		return document{}, err
	}
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return document{}, fmt.Errorf("unmarshal cached account: %w", err)
	}
	return d, nil
}

func (c *CachedStore) store(ctx context.Context, d document) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := c.baseTTL + jitter
	key := fmt.Sprintf(redisx.KeyAccount, d.UID)
	return setIfNewer.Run(ctx, c.rdb, []string{key}, data, d.Version, ttl.Milliseconds()).Err()
}

func (c *CachedStore) invalidate(uid string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.rdb.Del(ctx, fmt.Sprintf(redisx.KeyAccount, uid)).Err(); err != nil {
		c.log.Warn("account cache invalidate failed", logx.UserID, uid, logx.Err(err))
	}
}
