package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

const (
	DefaultMaxEntries = 10_000
	DefaultMaxTTL     = 5 * time.Minute
	defaultSweepEvery = time.Minute
)

type entry struct {
	payload  []byte
	expireAt time.Time // zero => pas de TTL propre
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryCache is a process-local PageCache used when no Redis address is
// configured. It is bounded: the least recently used entry is evicted past
// maxEntries, and expired entries are swept at most once per sweepEvery on
// writes, whether or not they are read again.
type MemoryCache struct {
	lru        *expirable.LRU[string, entry]
	now        func() time.Time
	maxTTL     time.Duration
	sweepEvery time.Duration

	mu        sync.Mutex
	lastSweep time.Time
}

type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxEntries int
	maxTTL     time.Duration
	sweepEvery time.Duration
	now        func() time.Time
}

// WithMaxEntries bounds the number of stored entries.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) { c.maxEntries = n }
}

// WithMaxTTL caps every entry's lifetime; longer TTLs are shortened to it.
func WithMaxTTL(d time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.maxTTL = d }
}

func WithSweepInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.sweepEvery = d }
}

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(c *memoryConfig) { c.now = now }
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := memoryConfig{
		maxEntries: DefaultMaxEntries,
		maxTTL:     DefaultMaxTTL,
		sweepEvery: defaultSweepEvery,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &MemoryCache{
		// Le TTL de la LRU est un plafond en temps réel; l'expiration fine
		// se fait sur expireAt avec l'horloge injectée.
		lru:        expirable.NewLRU[string, entry](cfg.maxEntries, nil, cfg.maxTTL),
		now:        cfg.now,
		maxTTL:     cfg.maxTTL,
		sweepEvery: cfg.sweepEvery,
	}
}

var _ ports.PageCache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	now := c.now()
	if c.maxTTL > 0 && (ttl <= 0 || ttl > c.maxTTL) {
		ttl = c.maxTTL
	}
	e := entry{payload: append([]byte(nil), payload...)}
	if ttl > 0 {
		e.expireAt = now.Add(ttl)
	}
	c.lru.Add(key, e)
	c.sweep(now)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len counts stored entries, expired ones not yet swept included.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// sweep drops every entry expired at now. Keys() is a snapshot, so the
// walk runs without holding mu.
func (c *MemoryCache) sweep(now time.Time) {
	c.mu.Lock()
	if now.Sub(c.lastSweep) < c.sweepEvery {
		c.mu.Unlock()
		return
	}
	c.lastSweep = now
	c.mu.Unlock()

	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && e.expired(now) {
			c.lru.Remove(key)
		}
	}
}
