package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func post(id, author string, age time.Duration, likes, comments int64) domain.FeedItem {
	return domain.FeedItem{
		ID:            id,
		AuthorID:      author,
		Type:          domain.TypePost,
		LikesCount:    likes,
		CommentsCount: comments,
		Visibility:    domain.VisibilityPublic,
		CreatedAt:     testNow.Add(-age).Truncate(time.Millisecond),
	}
}

func ids(items []domain.FeedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestGetFeedGlobalRanksWithinPage(t *testing.T) {
	x := post("X", "a1", time.Hour+time.Second, 1, 0)
	y := post("Y", "a2", time.Hour, 5, 0)
	z := post("Z", "a3", 48*time.Hour, 0, 0)
	feeds := &fakeFeeds{posts: []domain.FeedItem{x, y, z}}
	svc := NewFeedService(feeds, &fakeActivity{}, newMapCache(), WithClock(fixedClock))
	ctx := context.Background()

	page1, err := svc.GetFeed(ctx, domain.FeedRequest{Mode: domain.ModeGlobal, Limit: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if got := fmt.Sprint(ids(page1.Items)); got != "[Y X]" {
		t.Fatalf("expected [Y X], got %s", got)
	}
	if !page1.HasMore {
		t.Fatal("expected HasMore on page 1")
	}
	if page1.NextCursor != domain.EncodeCursor(x.CreatedAt) {
		t.Fatalf("expected cursor at X.createdAt, got %s", page1.NextCursor)
	}

	page2, err := svc.GetFeed(ctx, domain.FeedRequest{Mode: domain.ModeGlobal, Limit: 2, Cursor: page1.NextCursor})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if got := fmt.Sprint(ids(page2.Items)); got != "[Z]" {
		t.Fatalf("expected [Z], got %s", got)
	}
	if page2.HasMore || page2.NextCursor != "" {
		t.Fatalf("expected final page, got %+v", page2)
	}
}

func TestGetFeedWalkHasNoDuplicates(t *testing.T) {
	var posts []domain.FeedItem
	for i := range 23 {
		posts = append(posts, post(fmt.Sprintf("p%02d", i), "author", time.Duration(i)*time.Minute, int64(i%4), 0))
	}
	// Noise the scoped feeds must not return.
	posts = append(posts, post("stranger", "someone-else", 30*time.Second, 100, 0))
	hidden := post("hidden", "author", 90*time.Second, 0, 0)
	hidden.Visibility = domain.VisibilityPrivate
	posts = append(posts, hidden)

	feeds := &fakeFeeds{
		posts:   posts,
		follows: map[string][]string{"viewer": {"author"}},
	}

	for _, tc := range []struct {
		name string
		req  domain.FeedRequest
	}{
		{"following", domain.FeedRequest{Mode: domain.ModeFollowing, ViewerID: "viewer", Limit: 5}},
		{"author", domain.FeedRequest{Mode: domain.ModeAuthor, AuthorID: "author", Limit: 5}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewFeedService(feeds, &fakeActivity{}, newMapCache(), WithClock(fixedClock))
			seen := make(map[string]bool)
			req := tc.req
			var boundary time.Time
			for pages := 0; ; pages++ {
				if pages > 10 {
					t.Fatal("walk did not terminate")
				}
				page, err := svc.GetFeed(context.Background(), req)
				if err != nil {
					t.Fatalf("GetFeed: %v", err)
				}
				for _, it := range page.Items {
					if seen[it.ID] {
						t.Fatalf("duplicate item %s", it.ID)
					}
					seen[it.ID] = true
				}
				if !page.HasMore {
					break
				}
				next, err := domain.DecodeCursor(page.NextCursor)
				if err != nil {
					t.Fatalf("decode %q: %v", page.NextCursor, err)
				}
				if !boundary.IsZero() && !next.Before(boundary) {
					t.Fatalf("cursor %v is not older than %v", next, boundary)
				}
				boundary = next
				req.Cursor = page.NextCursor
			}
			if len(seen) != 23 {
				t.Fatalf("expected 23 items, got %d", len(seen))
			}
			if seen["stranger"] || seen["hidden"] {
				t.Fatal("scoped feed leaked unrelated posts")
			}
		})
	}
}

func TestGetFeedTypeFilter(t *testing.T) {
	v := post("v1", "a", time.Minute, 0, 0)
	v.Type = domain.TypeVideo
	feeds := &fakeFeeds{posts: []domain.FeedItem{post("p1", "a", 2*time.Minute, 0, 0), v}}
	svc := NewFeedService(feeds, &fakeActivity{}, newMapCache(), WithClock(fixedClock))

	page, err := svc.GetFeed(context.Background(), domain.FeedRequest{Type: domain.TypeVideo})
	if err != nil {
		t.Fatalf("GetFeed: %v", err)
	}
	if got := fmt.Sprint(ids(page.Items)); got != "[v1]" {
		t.Fatalf("expected [v1], got %s", got)
	}
}

func TestGetFeedCaching(t *testing.T) {
	ctx := context.Background()
	posts := []domain.FeedItem{post("a", "u1", time.Minute, 1, 1), post("b", "u2", 2*time.Minute, 0, 0)}

	t.Run("global is served from cache", func(t *testing.T) {
		feeds := &fakeFeeds{posts: posts}
		cache := newMapCache()
		svc := NewFeedService(feeds, &fakeActivity{}, cache, WithClock(fixedClock))

		first, err := svc.GetFeed(ctx, domain.FeedRequest{})
		if err != nil {
			t.Fatal(err)
		}
		second, err := svc.GetFeed(ctx, domain.FeedRequest{})
		if err != nil {
			t.Fatal(err)
		}
		if feeds.calls != 1 {
			t.Fatalf("expected 1 datastore call, got %d", feeds.calls)
		}
		if fmt.Sprint(ids(first.Items)) != fmt.Sprint(ids(second.Items)) {
			t.Fatalf("cached page differs: %v vs %v", ids(first.Items), ids(second.Items))
		}
		if _, ok := cache.entries[FeedCacheKey(domain.ModeGlobal, "", "", "", domain.DefaultPageSize)]; !ok {
			t.Fatalf("expected page under the global key, have %v", cache.entries)
		}
	})

	t.Run("following bypasses cache", func(t *testing.T) {
		feeds := &fakeFeeds{posts: posts, follows: map[string][]string{"me": {"u1", "u2"}}}
		cache := newMapCache()
		svc := NewFeedService(feeds, &fakeActivity{}, cache, WithClock(fixedClock))

		for range 2 {
			if _, err := svc.GetFeed(ctx, domain.FeedRequest{Mode: domain.ModeFollowing, ViewerID: "me"}); err != nil {
				t.Fatal(err)
			}
		}
		if feeds.calls != 2 {
			t.Fatalf("expected 2 datastore calls, got %d", feeds.calls)
		}
		if cache.sets != 0 {
			t.Fatalf("expected no cache writes, got %d", cache.sets)
		}
	})

	t.Run("unreachable cache falls back to datastore", func(t *testing.T) {
		feeds := &fakeFeeds{posts: posts}
		svc := NewFeedService(feeds, &fakeActivity{}, downCache{}, WithClock(fixedClock))

		page, err := svc.GetFeed(ctx, domain.FeedRequest{Mode: domain.ModeAuthor, AuthorID: "u1"})
		if err != nil {
			t.Fatalf("expected fail-open, got %v", err)
		}
		if len(page.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(page.Items))
		}
	})

	t.Run("undecodable entry is dropped", func(t *testing.T) {
		feeds := &fakeFeeds{posts: posts}
		cache := newMapCache()
		key := FeedCacheKey(domain.ModeGlobal, "", "", "", domain.DefaultPageSize)
		cache.entries[key] = []byte(`{"items":[{`)
		svc := NewFeedService(feeds, &fakeActivity{}, cache, WithClock(fixedClock))

		page, err := svc.GetFeed(ctx, domain.FeedRequest{})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 2 || feeds.calls != 1 {
			t.Fatalf("expected datastore read, got %d items and %d calls", len(page.Items), feeds.calls)
		}
		if cache.deletes != 1 {
			t.Fatalf("expected corrupt entry deleted, got %d deletes", cache.deletes)
		}
		if !json.Valid(cache.entries[key]) {
			t.Fatal("corrupt entry still cached")
		}
	})

	t.Run("equivalent cursors share one entry", func(t *testing.T) {
		feeds := &fakeFeeds{posts: posts}
		cache := newMapCache()
		svc := NewFeedService(feeds, &fakeActivity{}, cache, WithClock(fixedClock))

		canonical := domain.EncodeCursor(testNow)
		for _, cursor := range []string{canonical, "+" + canonical, "00" + canonical} {
			if _, err := svc.GetFeed(ctx, domain.FeedRequest{Cursor: cursor}); err != nil {
				t.Fatalf("cursor %q: %v", cursor, err)
			}
		}
		if feeds.calls != 1 || len(cache.entries) != 1 {
			t.Fatalf("expected one read and one entry, got %d calls and %d entries", feeds.calls, len(cache.entries))
		}
		if _, ok := cache.entries[FeedCacheKey(domain.ModeGlobal, "", "", canonical, domain.DefaultPageSize)]; !ok {
			t.Fatalf("expected entry under the canonical cursor, have %v", cache.entries)
		}
	})

	t.Run("disabled policy skips cache", func(t *testing.T) {
		feeds := &fakeFeeds{posts: posts}
		cache := newMapCache()
		svc := NewFeedService(feeds, &fakeActivity{}, cache, WithClock(fixedClock), WithCachePolicy(CachePolicy{}))

		if _, err := svc.GetFeed(ctx, domain.FeedRequest{}); err != nil {
			t.Fatal(err)
		}
		if cache.sets != 0 {
			t.Fatalf("expected no writes, got %d", cache.sets)
		}
	})
}

func TestGetFeedLikesAreNotCached(t *testing.T) {
	ctx := context.Background()
	feeds := &fakeFeeds{
		posts: []domain.FeedItem{post("a", "u1", time.Minute, 0, 0), post("b", "u1", 2*time.Minute, 0, 0)},
		likes: map[string]map[string]bool{"fan": {"b": true}},
	}
	cache := newMapCache()
	svc := NewFeedService(feeds, &fakeActivity{}, cache, WithClock(fixedClock))

	mine, err := svc.GetFeed(ctx, domain.FeedRequest{ViewerID: "fan"})
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range mine.Items {
		if it.IsLiked != (it.ID == "b") {
			t.Fatalf("item %s: IsLiked=%v", it.ID, it.IsLiked)
		}
	}
	for key, raw := range cache.entries {
		if strings.Contains(string(raw), `"IsLiked":true`) {
			t.Fatalf("per-caller flag leaked into %s", key)
		}
	}

	anon, err := svc.GetFeed(ctx, domain.FeedRequest{})
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range anon.Items {
		if it.IsLiked {
			t.Fatalf("anonymous caller sees %s liked", it.ID)
		}
	}
}

func TestGetFeedRejectsBadInput(t *testing.T) {
	svc := NewFeedService(&fakeFeeds{}, &fakeActivity{}, newMapCache())
	tests := []struct {
		name string
		req  domain.FeedRequest
		want error
	}{
		{"malformed cursor", domain.FeedRequest{Cursor: "yesterday"}, domain.ErrInvalidCursor},
		{"negative cursor", domain.FeedRequest{Cursor: "-5"}, domain.ErrInvalidCursor},
		{"following without caller", domain.FeedRequest{Mode: domain.ModeFollowing}, domain.ErrViewerRequired},
		{"author without id", domain.FeedRequest{Mode: domain.ModeAuthor}, domain.ErrAuthorRequired},
		{"unknown mode", domain.FeedRequest{Mode: "random"}, domain.ErrInvalidMode},
		{"unknown type", domain.FeedRequest{Type: "story"}, domain.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetFeed(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGetFeedDatastoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewFeedService(&fakeFeeds{err: boom}, &fakeActivity{}, newMapCache())

	_, err := svc.GetFeed(context.Background(), domain.FeedRequest{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped datastore error, got %v", err)
	}
}

func TestGetPost(t *testing.T) {
	ctx := context.Background()
	feeds := &fakeFeeds{
		posts: []domain.FeedItem{post("a", "u1", time.Minute, 3, 1)},
		likes: map[string]map[string]bool{"fan": {"a": true}},
	}
	cache := newMapCache()
	svc := NewFeedService(feeds, &fakeActivity{}, cache)

	got, err := svc.GetPost(ctx, "a", "fan")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsLiked || got.LikesCount != 3 {
		t.Fatalf("unexpected post %+v", got)
	}

	again, err := svc.GetPost(ctx, "a", "")
	if err != nil {
		t.Fatal(err)
	}
	if again.IsLiked {
		t.Fatal("cached detail carried the previous caller's like")
	}
	if feeds.calls != 1 {
		t.Fatalf("expected detail served from cache, got %d calls", feeds.calls)
	}

	if _, err := svc.GetPost(ctx, "missing", ""); !errors.Is(err, domain.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestListNotifications(t *testing.T) {
	var rows []domain.Notification
	for i := range 5 {
		rows = append(rows, domain.Notification{
			ID:          fmt.Sprintf("n%d", i),
			RecipientID: "me",
			Kind:        "like",
			CreatedAt:   testNow.Add(-time.Duration(i) * time.Minute),
		})
	}
	activity := &fakeActivity{notifications: rows}
	cache := newMapCache()
	svc := NewFeedService(&fakeFeeds{}, activity, cache)
	ctx := context.Background()

	if _, err := svc.ListNotifications(ctx, domain.ListRequest{}); !errors.Is(err, domain.ErrViewerRequired) {
		t.Fatalf("expected ErrViewerRequired, got %v", err)
	}

	page, err := svc.ListNotifications(ctx, domain.ListRequest{ProfileID: "me", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 3 || !page.HasMore {
		t.Fatalf("expected 3 items with more, got %+v", page)
	}
	rest, err := svc.ListNotifications(ctx, domain.ListRequest{ProfileID: "me", Limit: 3, Cursor: page.NextCursor})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest.Items) != 2 || rest.HasMore || rest.Items[0].ID != "n3" {
		t.Fatalf("unexpected second page %+v", rest)
	}
	if cache.sets != 0 {
		t.Fatalf("notifications must not be cached, got %d writes", cache.sets)
	}
}

func TestListConnections(t *testing.T) {
	activity := &fakeActivity{connections: map[domain.ConnectionDirection][]domain.Connection{
		domain.Followers: {
			{ProfileID: "f1", Since: testNow.Add(-time.Hour)},
			{ProfileID: "f2", Since: testNow.Add(-2 * time.Hour)},
		},
	}}
	svc := NewFeedService(&fakeFeeds{}, activity, newMapCache())
	ctx := context.Background()
	req := domain.ListRequest{ProfileID: "p"}

	for range 2 {
		page, err := svc.ListConnections(ctx, domain.Followers, req)
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 2 || page.HasMore {
			t.Fatalf("unexpected page %+v", page)
		}
	}
	if activity.calls != 1 {
		t.Fatalf("expected second read from cache, got %d calls", activity.calls)
	}

	if _, err := svc.ListConnections(ctx, "blocked", req); !errors.Is(err, domain.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if _, err := svc.ListConnections(ctx, domain.Following, domain.ListRequest{}); !errors.Is(err, domain.ErrProfileRequired) {
		t.Fatalf("expected ErrProfileRequired, got %v", err)
	}
}
