package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

type postService struct {
	repo      ports.PostRepository
	publisher ports.EventPublisher // nil when events are disabled
	now       func() time.Time
	newID     func() string
}

type PostOption func(*postService)

func WithPostClock(now func() time.Time) PostOption {
	return func(s *postService) { s.now = now }
}

func WithIDGenerator(newID func() string) PostOption {
	return func(s *postService) { s.newID = newID }
}

func NewPostService(repo ports.PostRepository, pub ports.EventPublisher, opts ...PostOption) ports.PostService {
	s := &postService{
		repo:      repo,
		publisher: pub,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePost refuses media the pipeline has not finished with. The not-ready
// case is distinguished so that clients can retry it.
func (s *postService) CreatePost(ctx context.Context, in domain.NewPost) (*domain.FeedItem, error) {
	if in.AuthorID == "" {
		return nil, domain.ErrViewerRequired
	}
	content := strings.TrimSpace(in.Content)
	mediaIDs := uniqueIDs(in.MediaIDs)
	if content == "" && len(mediaIDs) == 0 {
		return nil, domain.ErrEmptyPost
	}

	visibility := in.Visibility
	switch visibility {
	case "":
		visibility = domain.VisibilityPublic
	case domain.VisibilityPublic, domain.VisibilityFollowers, domain.VisibilityPrivate:
	default:
		return nil, domain.ErrInvalidVisibility
	}

	// 1. Media readiness
	media, err := s.readyMedia(ctx, in.AuthorID, mediaIDs)
	if err != nil {
		return nil, err
	}

	contentType := domain.TypePost
	for _, m := range media {
		if m.Type == domain.MediaTypeVideo {
			contentType = domain.TypeVideo
			break
		}
	}

	// Millisecond precision keeps stored timestamps aligned with cursors.
	post := &domain.FeedItem{
		ID:         s.newID(),
		AuthorID:   in.AuthorID,
		Type:       contentType,
		Content:    content,
		Media:      media,
		Visibility: visibility,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	}

	// 2. Source of truth
	if err := s.repo.Save(ctx, post); err != nil {
		return nil, fmt.Errorf("save post: %w", err)
	}

	// 3. Event; the post is saved, so a publish failure does not fail the request.
	if s.publisher != nil {
		if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
			slog.ErrorContext(ctx, "Failed to publish post.created", "post_id", post.ID, "error", err)
		}
	}

	return post, nil
}

func (s *postService) readyMedia(ctx context.Context, ownerID string, ids []string) ([]domain.Media, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.repo.MediaByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("load media: %w", err)
	}

	media := make([]domain.Media, 0, len(ids))
	for _, id := range ids {
		m, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMediaNotFound, id)
		}
		switch m.Status {
		case domain.MediaReady:
			media = append(media, m)
		case domain.MediaFailed:
			return nil, fmt.Errorf("%w: %s", domain.ErrMediaFailed, id)
		default:
			return nil, fmt.Errorf("%w: %s", domain.ErrMediaNotReady, id)
		}
	}
	return media, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
