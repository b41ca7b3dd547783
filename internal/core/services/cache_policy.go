package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

const (
	DefaultListTTL   = 60 * time.Second
	DefaultDetailTTL = 5 * time.Minute

	firstPage = "first"
	noScope   = "none"
	allTypes  = "all"
)

// CachePolicy holds the TTL per kind of read. A zero TTL disables caching for
// that kind.
type CachePolicy struct {
	ListTTL   time.Duration
	DetailTTL time.Duration
}

func DefaultCachePolicy() CachePolicy {
	return CachePolicy{ListTTL: DefaultListTTL, DetailTTL: DefaultDetailTTL}
}

// FeedTTL reports whether a feed mode may be cached. Personalized feeds
// always bypass: a caller must see accounts they just followed.
func (p CachePolicy) FeedTTL(mode domain.FeedMode) (time.Duration, bool) {
	if mode.Personalized() || p.ListTTL <= 0 {
		return 0, false
	}
	return p.ListTTL, true
}

func (p CachePolicy) PostTTL() (time.Duration, bool) {
	return p.DetailTTL, p.DetailTTL > 0
}

func (p CachePolicy) ConnectionsTTL() (time.Duration, bool) {
	return p.ListTTL, p.ListTTL > 0
}

// --- Keys ---

func FeedCacheKey(mode domain.FeedMode, scope string, typ domain.ContentType, cursor string, limit int) string {
	return fmt.Sprintf("feed:v1:%s:%s:%s:%s:%d",
		mode, keyPart(scope, noScope), keyPart(string(typ), allTypes), keyPart(cursor, firstPage), limit)
}

func PostCacheKey(postID string) string {
	return "post:v1:" + keyPart(postID, noScope)
}

func ConnectionsCacheKey(dir domain.ConnectionDirection, profileID, cursor string, limit int) string {
	return fmt.Sprintf("connections:v1:%s:%s:%s:%d", dir, keyPart(profileID, noScope), keyPart(cursor, firstPage), limit)
}

// keyPart escapes separators so two distinct requests never share a key.
func keyPart(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return url.QueryEscape(v)
}

// --- Read-through helpers ---

// cachedPage is the serialized form of a domain.Page.
type cachedPage[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func newCachedPage[T any](p domain.Page[T]) cachedPage[T] {
	return cachedPage[T]{Items: p.Items, NextCursor: p.NextCursor, HasMore: p.HasMore}
}

func (c cachedPage[T]) page() domain.Page[T] {
	items := c.Items
	if items == nil {
		items = []T{}
	}
	return domain.Page[T]{Items: items, NextCursor: c.NextCursor, HasMore: c.HasMore}
}

// loadCached fails open: backend errors and undecodable payloads are misses.
func loadCached[T any](ctx context.Context, cache ports.PageCache, key string) (T, bool) {
	var v T
	raw, ok, err := cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache unavailable, reading from datastore", "key", key, "error", err)
		return v, false
	}
	if !ok {
		slog.DebugContext(ctx, "cache miss", "key", key)
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.WarnContext(ctx, "dropping undecodable cache entry", "key", key, "error", err)
		if err := cache.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "cache delete failed", "key", key, "error", err)
		}
		var zero T
		return zero, false
	}
	slog.DebugContext(ctx, "cache hit", "key", key)
	return v, true
}

// storeCached is best effort. Only a payload that encoded and validates is
// written.
func storeCached(ctx context.Context, cache ports.PageCache, key string, v any, ttl time.Duration) {
	payload, err := json.Marshal(v)
	if err != nil || !json.Valid(payload) {
		slog.WarnContext(ctx, "skipping cache write, payload not encodable", "key", key, "error", err)
		return
	}
	if err := cache.Set(ctx, key, payload, ttl); err != nil {
		slog.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}
