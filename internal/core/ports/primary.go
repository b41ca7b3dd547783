package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
)

// --- DRIVING (what the service exposes) ---

type FeedService interface {
	// GetFeed dispatches to the following, author or global listing.
	GetFeed(ctx context.Context, req domain.FeedRequest) (*domain.Page[domain.FeedItem], error)

	GetPost(ctx context.Context, postID, viewerID string) (*domain.FeedItem, error)

	ListNotifications(ctx context.Context, req domain.ListRequest) (*domain.Page[domain.Notification], error)
	ListConnections(ctx context.Context, dir domain.ConnectionDirection, req domain.ListRequest) (*domain.Page[domain.Connection], error)
}

type PostService interface {
	CreatePost(ctx context.Context, in domain.NewPost) (*domain.FeedItem, error)
}
