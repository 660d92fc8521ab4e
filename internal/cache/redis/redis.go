// Package redis is a shared cache backend for running several service instances
// behind one cache. Entries are namespaced by generation; InvalidateAll is a single
// INCR, and entries of dead generations are left to expire.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tinoosan/txledger/internal/cache"
)

const (
	DefaultPrefix = "txledger:cache"
	DefaultTTL    = 10 * time.Minute
)

// Cache stores JSON-encoded entries in Redis.
type Cache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix sets the key namespace. Useful to isolate tests sharing one Redis.
func WithPrefix(p string) Option { return func(c *Cache) { c.prefix = p } }

// WithTTL bounds how long an entry survives. Zero disables expiry.
func WithTTL(ttl time.Duration) Option { return func(c *Cache) { c.ttl = ttl } }

// New wraps an existing client.
func New(rdb *goredis.Client, opts ...Option) *Cache {
	c := &Cache{rdb: rdb, prefix: DefaultPrefix, ttl: DefaultTTL}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open creates a client and verifies connectivity with a short ping.
func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (c *Cache) genKey() string { return c.prefix + ":gen" }

func (c *Cache) entryKey(t cache.Ticket, key cache.Key) string {
	return c.prefix + ":" + strconv.FormatUint(uint64(t), 10) + ":" + string(key)
}

// Ticket reads the generation counter. A missing counter is generation 0.
func (c *Cache) Ticket(ctx context.Context) (cache.Ticket, error) {
	gen, err := c.rdb.Get(ctx, c.genKey()).Uint64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return cache.Ticket(gen), nil
}

func (c *Cache) Lookup(ctx context.Context, key cache.Key) (cache.Entry, bool, error) {
	t, err := c.Ticket(ctx)
	if err != nil {
		return cache.Entry{}, false, err
	}
	b, err := c.rdb.Get(ctx, c.entryKey(t, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	var e cache.Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return cache.Entry{}, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return e, true, nil
}

// Store writes under t's namespace. A stale ticket lands in a namespace no reader
// consults any more, which is what makes the write a no-op.
func (c *Cache) Store(ctx context.Context, t cache.Ticket, key cache.Key, e cache.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, c.entryKey(t, key), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) InvalidateAll(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, c.genKey()).Err(); err != nil {
		return fmt.Errorf("advance cache generation: %w", err)
	}
	return nil
}

// Ready pings Redis; used by the readiness probe.
func (c *Cache) Ready(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

// Close releases the client.
func (c *Cache) Close() error { return c.rdb.Close() }
