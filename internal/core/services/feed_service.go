package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

var _ ports.FeedService = (*FeedService)(nil)

type FeedService struct {
	feeds    ports.FeedRepository
	activity ports.ActivityRepository
	cache    ports.PageCache
	policy   CachePolicy
	now      func() time.Time
}

type Option func(*FeedService)

// WithClock overrides the time used for ranking.
func WithClock(now func() time.Time) Option {
	return func(s *FeedService) { s.now = now }
}

func WithCachePolicy(p CachePolicy) Option {
	return func(s *FeedService) { s.policy = p }
}

func NewFeedService(feeds ports.FeedRepository, activity ports.ActivityRepository, cache ports.PageCache, opts ...Option) *FeedService {
	s := &FeedService{
		feeds:    feeds,
		activity: activity,
		cache:    cache,
		policy:   DefaultCachePolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FeedService) GetFeed(ctx context.Context, req domain.FeedRequest) (*domain.Page[domain.FeedItem], error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeGlobal
	}
	if req.Type != "" && !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	limit := domain.ClampLimit(req.Limit)
	before, err := domain.CursorBoundary(req.Cursor)
	if err != nil {
		return nil, err
	}

	// 1. Query shape. One extra row tells us whether another page exists.
	q := domain.ListQuery{Type: req.Type, Before: before, Limit: limit + 1}
	var (
		list  func(context.Context, domain.ListQuery) ([]domain.FeedItem, error)
		scope string
	)
	switch mode {
	case domain.ModeFollowing:
		if req.ViewerID == "" {
			return nil, domain.ErrViewerRequired
		}
		q.ViewerID = req.ViewerID
		list, scope = s.feeds.ListFollowingFeed, req.ViewerID
	case domain.ModeAuthor:
		if req.AuthorID == "" {
			return nil, domain.ErrAuthorRequired
		}
		q.AuthorID = req.AuthorID
		list, scope = s.feeds.ListAuthorFeed, req.AuthorID
	case domain.ModeGlobal:
		list = s.feeds.ListGlobalFeed
	default:
		return nil, domain.ErrInvalidMode
	}

	// 2. Cache (skipped for personalized modes)
	ttl, cacheable := s.policy.FeedTTL(mode)
	key := FeedCacheKey(mode, scope, req.Type, cursorKey(before), limit)

	var page domain.Page[domain.FeedItem]
	hit := false
	if cacheable {
		var cached cachedPage[domain.FeedItem]
		if cached, hit = loadCached[cachedPage[domain.FeedItem]](ctx, s.cache, key); hit {
			page = cached.page()
		}
	}

	// 3. Datastore
	if !hit {
		rows, err := list(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("list %s feed: %w", mode, err)
		}
		page = domain.Paginate(rows, limit, feedItemTime)

		// Ranking happens inside the chronological window, after truncation,
		// so the cursor still points at the oldest row of the page.
		if mode == domain.ModeGlobal {
			page.Items = domain.RankTrending(page.Items, s.now())
		}
		if cacheable {
			storeCached(ctx, s.cache, key, newCachedPage(page), ttl)
		}
	}

	// 4. Per-caller overlay, never part of the cached payload
	if err := s.markLiked(ctx, req.ViewerID, page.Items); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *FeedService) GetPost(ctx context.Context, postID, viewerID string) (*domain.FeedItem, error) {
	if postID == "" {
		return nil, domain.ErrPostNotFound
	}

	ttl, cacheable := s.policy.PostTTL()
	key := PostCacheKey(postID)

	var post domain.FeedItem
	hit := false
	if cacheable {
		post, hit = loadCached[domain.FeedItem](ctx, s.cache, key)
	}
	if !hit {
		found, err := s.feeds.GetPost(ctx, postID)
		if err != nil {
			return nil, fmt.Errorf("get post %s: %w", postID, err)
		}
		post = *found
		post.IsLiked = false
		if cacheable {
			storeCached(ctx, s.cache, key, post, ttl)
		}
	}

	items := []domain.FeedItem{post}
	if err := s.markLiked(ctx, viewerID, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListNotifications is caller-scoped and never cached.
func (s *FeedService) ListNotifications(ctx context.Context, req domain.ListRequest) (*domain.Page[domain.Notification], error) {
	if req.ProfileID == "" {
		return nil, domain.ErrViewerRequired
	}
	limit := domain.ClampLimit(req.Limit)
	before, err := domain.CursorBoundary(req.Cursor)
	if err != nil {
		return nil, err
	}

	rows, err := s.activity.ListNotifications(ctx, req.ProfileID, before, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	page := domain.Paginate(rows, limit, func(n domain.Notification) time.Time { return n.CreatedAt })
	return &page, nil
}

func (s *FeedService) ListConnections(ctx context.Context, dir domain.ConnectionDirection, req domain.ListRequest) (*domain.Page[domain.Connection], error) {
	if dir != domain.Followers && dir != domain.Following {
		return nil, domain.ErrInvalidMode
	}
	if req.ProfileID == "" {
		return nil, domain.ErrProfileRequired
	}
	limit := domain.ClampLimit(req.Limit)
	before, err := domain.CursorBoundary(req.Cursor)
	if err != nil {
		return nil, err
	}

	ttl, cacheable := s.policy.ConnectionsTTL()
	key := ConnectionsCacheKey(dir, req.ProfileID, cursorKey(before), limit)
	if cacheable {
		if cached, ok := loadCached[cachedPage[domain.Connection]](ctx, s.cache, key); ok {
			page := cached.page()
			return &page, nil
		}
	}

	rows, err := s.activity.ListConnections(ctx, dir, req.ProfileID, before, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	page := domain.Paginate(rows, limit, func(c domain.Connection) time.Time { return c.Since })
	if cacheable {
		storeCached(ctx, s.cache, key, newCachedPage(page), ttl)
	}
	return &page, nil
}

func (s *FeedService) markLiked(ctx context.Context, viewerID string, items []domain.FeedItem) error {
	if viewerID == "" || len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	liked, err := s.feeds.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return fmt.Errorf("load likes: %w", err)
	}
	for i := range items {
		items[i].IsLiked = liked[items[i].ID]
	}
	return nil
}

// cursorKey re-encodes the decoded boundary so "+123", "0123" and "123"
// share one cache entry.
func cursorKey(before time.Time) string {
	if before.IsZero() {
		return ""
	}
	return domain.EncodeCursor(before)
}

func feedItemTime(it domain.FeedItem) time.Time {
	return it.CreatedAt
}
