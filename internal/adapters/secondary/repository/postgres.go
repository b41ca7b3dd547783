package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

// DTO interne pour mapper le JSONB sans polluer le domain avec des tags JSON
type mediaDTO struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

var (
	_ ports.FeedRepository     = (*PostgresRepo)(nil)
	_ ports.ActivityRepository = (*PostgresRepo)(nil)
	_ ports.PostRepository     = (*PostgresRepo)(nil)
)

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// --- Feed (read path) ---

func (r *PostgresRepo) ListFollowingFeed(ctx context.Context, q domain.ListQuery) ([]domain.FeedItem, error) {
	sql, args := buildFeedQuery(domain.ModeFollowing, q)
	return r.listPosts(ctx, sql, args)
}

func (r *PostgresRepo) ListAuthorFeed(ctx context.Context, q domain.ListQuery) ([]domain.FeedItem, error) {
	sql, args := buildFeedQuery(domain.ModeAuthor, q)
	return r.listPosts(ctx, sql, args)
}

func (r *PostgresRepo) ListGlobalFeed(ctx context.Context, q domain.ListQuery) ([]domain.FeedItem, error) {
	sql, args := buildFeedQuery(domain.ModeGlobal, q)
	return r.listPosts(ctx, sql, args)
}

func (r *PostgresRepo) listPosts(ctx context.Context, sql string, args []any) ([]domain.FeedItem, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.FeedItem
	for rows.Next() {
		item, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresRepo) GetPost(ctx context.Context, postID string) (*domain.FeedItem, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = $1 AND p.visibility = 'public'`

	item, err := scanPost(r.db.QueryRow(ctx, query, postID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LikedPostIDs : un seul aller-retour grâce à ANY($2)
func (r *PostgresRepo) LikedPostIDs(ctx context.Context, viewerID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(postIDs))
	if len(postIDs) == 0 {
		return liked, nil
	}

	rows, err := r.db.Query(ctx, `SELECT post_id FROM likes WHERE profile_id = $1 AND post_id = ANY($2)`, viewerID, postIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		liked[id] = true
	}
	return liked, rows.Err()
}

// --- Activity ---

func (r *PostgresRepo) ListNotifications(ctx context.Context, recipientID string, before time.Time, limit int) ([]domain.Notification, error) {
	sql, args := buildNotificationsQuery(recipientID, before, limit)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n      domain.Notification
			postID *string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.ActorID, &n.Kind, &postID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if postID != nil {
			n.PostID = *postID
		}
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListConnections(ctx context.Context, dir domain.ConnectionDirection, profileID string, before time.Time, limit int) ([]domain.Connection, error) {
	sql, args, err := buildConnectionsQuery(dir, profileID, before, limit)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Connection
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.ProfileID, &c.Since); err != nil {
			return nil, err
		}
		c.Since = c.Since.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Authoring ---

func (r *PostgresRepo) Save(ctx context.Context, post *domain.FeedItem) error {
	query := `
		INSERT INTO posts (id, author_id, type, content, media, visibility, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	mediaJSON, err := marshalMedia(post.Media)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		post.ID,
		post.AuthorID,
		string(post.Type),
		post.Content,
		mediaJSON,
		string(post.Visibility),
		post.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) MediaByIDs(ctx context.Context, ownerID string, ids []string) (map[string]domain.Media, error) {
	found := make(map[string]domain.Media, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := r.db.Query(ctx, `SELECT id, url, type, status FROM media WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Media
		if err := rows.Scan(&m.ID, &m.URL, &m.Type, &m.Status); err != nil {
			return nil, err
		}
		found[m.ID] = m
	}
	return found, rows.Err()
}

// --- Query building ---

const postColumns = `p.id, p.author_id, p.type, p.content, p.media, p.likes_count, p.comments_count, p.views_count, p.visibility, p.created_at`

// queryArgs numérote les placeholders au fur et à mesure
type queryArgs []any

func (a *queryArgs) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// buildFeedQuery : PAGINATION KEYSET. Pas d'OFFSET, on filtre sur created_at.
func buildFeedQuery(mode domain.FeedMode, q domain.ListQuery) (string, []any) {
	var (
		args  queryArgs
		from  = "posts p"
		where []string
	)

	switch mode {
	case domain.ModeFollowing:
		from += " JOIN follows f ON f.followee_id = p.author_id AND f.follower_id = " + args.add(q.ViewerID) + " AND f.status = 'accepted'"
		where = append(where, "p.visibility IN ('public', 'followers')")
	case domain.ModeAuthor:
		where = append(where, "p.author_id = "+args.add(q.AuthorID), "p.visibility = 'public'")
	default:
		where = append(where, "p.visibility = 'public'")
	}

	if q.Type != "" {
		where = append(where, "p.type = "+args.add(string(q.Type)))
	}
	if !q.Before.IsZero() {
		where = append(where, "p.created_at < "+args.add(q.Before))
	}

	sql := "SELECT " + postColumns + " FROM " + from +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY p.created_at DESC, p.id DESC LIMIT " + args.add(q.Limit)
	return sql, args
}

func buildNotificationsQuery(recipientID string, before time.Time, limit int) (string, []any) {
	var args queryArgs
	sql := "SELECT id, recipient_id, actor_id, kind, post_id, read, created_at FROM notifications WHERE recipient_id = " + args.add(recipientID)
	if !before.IsZero() {
		sql += " AND created_at < " + args.add(before)
	}
	sql += " ORDER BY created_at DESC, id DESC LIMIT " + args.add(limit)
	return sql, args
}

func buildConnectionsQuery(dir domain.ConnectionDirection, profileID string, before time.Time, limit int) (string, []any, error) {
	var selected, scope string
	switch dir {
	case domain.Followers:
		selected, scope = "follower_id", "followee_id"
	case domain.Following:
		selected, scope = "followee_id", "follower_id"
	default:
		return "", nil, domain.ErrInvalidMode
	}

	var args queryArgs
	sql := "SELECT " + selected + ", created_at FROM follows WHERE " + scope + " = " + args.add(profileID) + " AND status = 'accepted'"
	if !before.IsZero() {
		sql += " AND created_at < " + args.add(before)
	}
	sql += " ORDER BY created_at DESC, " + selected + " DESC LIMIT " + args.add(limit)
	return sql, args, nil
}

// --- Helpers ---

func scanPost(row pgx.Row) (domain.FeedItem, error) {
	var (
		p         domain.FeedItem
		mediaJSON []byte
	)
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Type, &p.Content, &mediaJSON,
		&p.LikesCount, &p.CommentsCount, &p.ViewsCount, &p.Visibility, &p.CreatedAt); err != nil {
		return domain.FeedItem{}, err
	}
	p.Media = unmarshalMedia(mediaJSON)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func marshalMedia(media []domain.Media) ([]byte, error) {
	dtos := make([]mediaDTO, len(media))
	for i, m := range media {
		dtos[i] = mediaDTO{ID: m.ID, URL: m.URL, Type: string(m.Type), Status: string(m.Status)}
	}
	data, err := json.Marshal(dtos)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal media: %w", err)
	}
	return data, nil
}

func unmarshalMedia(data []byte) []domain.Media {
	var dtos []mediaDTO
	if len(data) == 0 || json.Unmarshal(data, &dtos) != nil {
		return []domain.Media{} // Fallback safe
	}

	out := make([]domain.Media, len(dtos))
	for i, d := range dtos {
		out[i] = domain.Media{
			ID:     d.ID,
			URL:    d.URL,
			Type:   domain.MediaType(d.Type),
			Status: domain.MediaStatus(d.Status),
		}
	}
	return out
}
