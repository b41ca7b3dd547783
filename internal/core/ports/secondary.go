package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
)

// --- DRIVEN (what the service needs) ---

// FeedRepository is read-only. Every list method returns at most q.Limit rows
// ordered newest first, strictly older than q.Before when it is set.
type FeedRepository interface {
	ListFollowingFeed(ctx context.Context, q domain.ListQuery) ([]domain.FeedItem, error)
	ListAuthorFeed(ctx context.Context, q domain.ListQuery) ([]domain.FeedItem, error)
	ListGlobalFeed(ctx context.Context, q domain.ListQuery) ([]domain.FeedItem, error)

	// GetPost returns domain.ErrPostNotFound for missing or non-public posts.
	GetPost(ctx context.Context, postID string) (*domain.FeedItem, error)

	// LikedPostIDs reports which of postIDs the viewer has liked.
	LikedPostIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]bool, error)
}

type ActivityRepository interface {
	ListNotifications(ctx context.Context, recipientID string, before time.Time, limit int) ([]domain.Notification, error)
	ListConnections(ctx context.Context, dir domain.ConnectionDirection, profileID string, before time.Time, limit int) ([]domain.Connection, error)
}

type PostRepository interface {
	Save(ctx context.Context, post *domain.FeedItem) error

	// MediaByIDs returns the media owned by ownerID among ids. Unknown or
	// foreign ids are absent from the map.
	MediaByIDs(ctx context.Context, ownerID string, ids []string) (map[string]domain.Media, error)
}

// PageCache is a shared key-value store with per-key expiry. Implementations
// may be unreachable; callers decide how to degrade.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishPostCreated(ctx context.Context, post *domain.FeedItem) error
}

// IdentityResolver turns a bearer token into the caller's profile id.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}
