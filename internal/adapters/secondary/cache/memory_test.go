package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryCacheTTL(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := t0
	c := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := c.Set(ctx, "feed:v1:global:none:all:first:20", []byte(`{"items":[]}`), 60*time.Second); err != nil {
		t.Fatal(err)
	}

	now = t0.Add(59 * time.Second)
	got, ok, err := c.Get(ctx, "feed:v1:global:none:all:first:20")
	if err != nil || !ok {
		t.Fatalf("expected hit at t0+59s, got ok=%v err=%v", ok, err)
	}
	if string(got) != `{"items":[]}` {
		t.Fatalf("expected payload verbatim, got %s", got)
	}

	now = t0.Add(61 * time.Second)
	if _, ok, _ := c.Get(ctx, "feed:v1:global:none:all:first:20"); ok {
		t.Fatal("expected miss at t0+61s")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry removed, have %d", c.Len())
	}
}

func TestMemoryCacheSweepsUnreadEntries(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := t0
	c := NewMemoryCache(WithMaxEntries(0), WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := range 5000 {
		_ = c.Set(ctx, fmt.Sprintf("feed:v1:global:none:all:%d:20", i), []byte("{}"), 60*time.Second)
	}
	if c.Len() != 5000 {
		t.Fatalf("expected 5000 entries, got %d", c.Len())
	}

	now = t0.Add(24 * time.Hour)
	_ = c.Set(ctx, "feed:v1:global:none:all:first:20", []byte("{}"), 60*time.Second)
	if c.Len() != 1 {
		t.Fatalf("expected only the fresh entry after 24h, got %d", c.Len())
	}
}

func TestMemoryCacheSweepInterval(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := t0
	c := NewMemoryCache(WithSweepInterval(time.Hour), WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Second)
	now = t0.Add(2 * time.Second)
	_ = c.Set(ctx, "b", []byte("2"), time.Second)
	if c.Len() != 2 {
		t.Fatalf("no sweep expected before the interval, got %d entries", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatal("expired entry must not be served")
	}
}

func TestMemoryCacheEvictsPastMaxEntries(t *testing.T) {
	c := NewMemoryCache(WithMaxEntries(3))
	ctx := context.Background()

	for _, k := range []string{"k1", "k2", "k3", "k4", "k5"} {
		_ = c.Set(ctx, k, []byte(k), time.Minute)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}
	for _, k := range []string{"k1", "k2"} {
		if _, ok, _ := c.Get(ctx, k); ok {
			t.Fatalf("expected %s evicted", k)
		}
	}
	if got, ok, _ := c.Get(ctx, "k5"); !ok || string(got) != "k5" {
		t.Fatalf("expected newest entry kept, got %q %v", got, ok)
	}
}

func TestMemoryCacheCapsTTL(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := t0
	c := NewMemoryCache(WithMaxTTL(time.Minute), WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	_ = c.Set(ctx, "long", []byte("v"), time.Hour)
	_ = c.Set(ctx, "forever", []byte("v"), 0)

	now = t0.Add(61 * time.Second)
	for _, k := range []string{"long", "forever"} {
		if _, ok, _ := c.Get(ctx, k); ok {
			t.Fatalf("expected %s capped to the max TTL", k)
		}
	}
}

func TestMemoryCacheCopiesPayload(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored payload aliased caller buffer: %s", got)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}
