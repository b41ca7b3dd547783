package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
)

// fakeFeeds behaves like the SQL repository over an in-memory table.
type fakeFeeds struct {
	mu      sync.Mutex
	posts   []domain.FeedItem
	follows map[string][]string        // viewer -> followed authors
	likes   map[string]map[string]bool // viewer -> post ids
	calls   int
	err     error
}

func (f *fakeFeeds) list(q domain.ListQuery, keep func(domain.FeedItem) bool) ([]domain.FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.FeedItem
	for _, p := range f.posts {
		if !q.Before.IsZero() && !p.CreatedAt.Before(q.Before) {
			continue
		}
		if q.Type != "" && p.Type != q.Type {
			continue
		}
		if keep(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.FeedItem) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID > b.ID {
			return -1
		}
		if a.ID < b.ID {
			return 1
		}
		return 0
	})
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeFeeds) ListFollowingFeed(_ context.Context, q domain.ListQuery) ([]domain.FeedItem, error) {
	followed := f.follows[q.ViewerID]
	return f.list(q, func(p domain.FeedItem) bool {
		return slices.Contains(followed, p.AuthorID) && p.Visibility != domain.VisibilityPrivate
	})
}

func (f *fakeFeeds) ListAuthorFeed(_ context.Context, q domain.ListQuery) ([]domain.FeedItem, error) {
	return f.list(q, func(p domain.FeedItem) bool {
		return p.AuthorID == q.AuthorID && p.Visibility == domain.VisibilityPublic
	})
}

func (f *fakeFeeds) ListGlobalFeed(_ context.Context, q domain.ListQuery) ([]domain.FeedItem, error) {
	return f.list(q, func(p domain.FeedItem) bool { return p.Visibility == domain.VisibilityPublic })
}

func (f *fakeFeeds) GetPost(_ context.Context, id string) (*domain.FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, p := range f.posts {
		if p.ID == id && p.Visibility == domain.VisibilityPublic {
			return &p, nil
		}
	}
	return nil, domain.ErrPostNotFound
}

func (f *fakeFeeds) LikedPostIDs(_ context.Context, viewerID string, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if f.likes[viewerID][id] {
			out[id] = true
		}
	}
	return out, nil
}

type fakeActivity struct {
	notifications []domain.Notification
	connections   map[domain.ConnectionDirection][]domain.Connection
	calls         int
}

func (f *fakeActivity) ListNotifications(_ context.Context, recipientID string, before time.Time, limit int) ([]domain.Notification, error) {
	f.calls++
	var out []domain.Notification
	for _, n := range f.notifications {
		if n.RecipientID != recipientID || (!before.IsZero() && !n.CreatedAt.Before(before)) {
			continue
		}
		out = append(out, n)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeActivity) ListConnections(_ context.Context, dir domain.ConnectionDirection, _ string, before time.Time, limit int) ([]domain.Connection, error) {
	f.calls++
	var out []domain.Connection
	for _, c := range f.connections[dir] {
		if !before.IsZero() && !c.Since.Before(before) {
			continue
		}
		out = append(out, c)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mapCache records writes so tests can inspect what was cached.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	deletes int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = payload
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, key)
	return nil
}

var errCacheDown = errors.New("dial tcp: connection refused")

type downCache struct{}

func (downCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (downCache) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (downCache) Delete(context.Context, string) error { return errCacheDown }

type fakePosts struct {
	saved []*domain.FeedItem
	media map[string]domain.Media
	err   error
}

func (f *fakePosts) Save(_ context.Context, p *domain.FeedItem) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakePosts) MediaByIDs(_ context.Context, _ string, ids []string) (map[string]domain.Media, error) {
	out := make(map[string]domain.Media)
	for _, id := range ids {
		if m, ok := f.media[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishPostCreated(_ context.Context, p *domain.FeedItem) error {
	f.published = append(f.published, p.ID)
	return f.err
}
