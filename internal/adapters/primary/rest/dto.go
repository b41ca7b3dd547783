package rest

import (
	"time"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
)

// envelope is the wire shape of every list endpoint.
type envelope[T any] struct {
	Data       []T     `json:"data"`
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
	Total      int     `json:"total"`
}

func toEnvelope[S, T any](p *domain.Page[S], conv func(S) T) envelope[T] {
	out := envelope[T]{Data: make([]T, 0, len(p.Items)), HasMore: p.HasMore}
	for _, it := range p.Items {
		out.Data = append(out.Data, conv(it))
	}
	if p.HasMore && p.NextCursor != "" {
		c := p.NextCursor
		out.NextCursor = &c
	}
	out.Total = len(out.Data)
	return out
}

type mediaDTO struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type feedItemDTO struct {
	ID            string     `json:"id"`
	AuthorID      string     `json:"authorId"`
	Type          string     `json:"type"`
	Content       string     `json:"content"`
	Media         []mediaDTO `json:"media"`
	LikesCount    int64      `json:"likesCount"`
	CommentsCount int64      `json:"commentsCount"`
	ViewsCount    int64      `json:"viewsCount"`
	Visibility    string     `json:"visibility"`
	IsLiked       bool       `json:"isLiked"`
	CreatedAt     string     `json:"createdAt"`
}

func toFeedItemDTO(it domain.FeedItem) feedItemDTO {
	media := make([]mediaDTO, len(it.Media))
	for i, m := range it.Media {
		media[i] = mediaDTO{ID: m.ID, URL: m.URL, Type: string(m.Type), Status: string(m.Status)}
	}
	return feedItemDTO{
		ID:            it.ID,
		AuthorID:      it.AuthorID,
		Type:          string(it.Type),
		Content:       it.Content,
		Media:         media,
		LikesCount:    it.LikesCount,
		CommentsCount: it.CommentsCount,
		ViewsCount:    it.ViewsCount,
		Visibility:    string(it.Visibility),
		IsLiked:       it.IsLiked,
		CreatedAt:     formatTime(it.CreatedAt),
	}
}

type notificationDTO struct {
	ID        string `json:"id"`
	ActorID   string `json:"actorId"`
	Kind      string `json:"kind"`
	PostID    string `json:"postId,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

func toNotificationDTO(n domain.Notification) notificationDTO {
	return notificationDTO{
		ID:        n.ID,
		ActorID:   n.ActorID,
		Kind:      n.Kind,
		PostID:    n.PostID,
		Read:      n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

type connectionDTO struct {
	ProfileID string `json:"profileId"`
	Since     string `json:"since"`
}

func toConnectionDTO(c domain.Connection) connectionDTO {
	return connectionDTO{ProfileID: c.ProfileID, Since: formatTime(c.Since)}
}

type createPostRequest struct {
	Content    string   `json:"content"`
	MediaIDs   []string `json:"mediaIds"`
	Visibility string   `json:"visibility"`
}

// formatTime keeps millisecond precision so a client can rebuild a cursor.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
