package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

const SubjectPostCreated = "post.created"

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) ports.EventPublisher {
	return &NatsPublisher{nc: nc}
}

// Structure de l'event (contrat implicite avec les consommateurs)
type PostCreatedEvent struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"` // "post", "video"
	Visibility string    `json:"visibility"`
	MediaIDs   []string  `json:"media_ids,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p *NatsPublisher) PublishPostCreated(ctx context.Context, post *domain.FeedItem) error {
	msg, err := postCreatedMsg(ctx, post)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Publishing event with trace context", "topic", msg.Subject, "post_id", post.ID)
	return p.nc.PublishMsg(msg)
}

// postCreatedMsg injecte le trace context courant dans les headers NATS
func postCreatedMsg(ctx context.Context, post *domain.FeedItem) (*nats.Msg, error) {
	event := PostCreatedEvent{
		ID:         post.ID,
		AuthorID:   post.AuthorID,
		Content:    post.Content,
		Type:       string(post.Type),
		Visibility: string(post.Visibility),
		CreatedAt:  post.CreatedAt,
	}
	for _, m := range post.Media {
		event.MediaIDs = append(event.MediaIDs, m.ID)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: SubjectPostCreated,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))
	return msg, nil
}
