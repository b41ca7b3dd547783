// Package feedclient is the Go client of the feed HTTP API. List calls are
// normalized into an Envelope whatever response version the server returns.
package feedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Media struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type FeedItem struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"authorId"`
	Type          string    `json:"type"`
	Content       string    `json:"content"`
	Media         []Media   `json:"media"`
	LikesCount    int64     `json:"likesCount"`
	CommentsCount int64     `json:"commentsCount"`
	ViewsCount    int64     `json:"viewsCount"`
	Visibility    string    `json:"visibility"`
	IsLiked       bool      `json:"isLiked"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Notification struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actorId"`
	Kind      string    `json:"kind"`
	PostID    string    `json:"postId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type Connection struct {
	ProfileID string    `json:"profileId"`
	Since     time.Time `json:"since"`
}

type ListParams struct {
	Cursor string
	Limit  int
}

type FeedParams struct {
	Mode     string // "global" (default), "following" or "author"
	AuthorID string
	Type     string
	ListParams
}

type CreatePostInput struct {
	Content    string   `json:"content"`
	MediaIDs   []string `json:"mediaIds,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
}

type Client struct {
	baseURL    string
	http       *http.Client
	token      string
	retryDelay time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

func WithRetryDelay(d time.Duration) Option {
	return func(cl *Client) { cl.retryDelay = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListFeed(ctx context.Context, p FeedParams) (Envelope[FeedItem], error) {
	q := p.ListParams.values()
	setIf(q, "mode", p.Mode)
	setIf(q, "authorId", p.AuthorID)
	setIf(q, "type", p.Type)
	return list[FeedItem](ctx, c, "/v1/feed", q)
}

func (c *Client) ListProfilePosts(ctx context.Context, profileID string, p ListParams) (Envelope[FeedItem], error) {
	return list[FeedItem](ctx, c, "/v1/profiles/"+url.PathEscape(profileID)+"/posts", p.values())
}

func (c *Client) ListNotifications(ctx context.Context, p ListParams) (Envelope[Notification], error) {
	return list[Notification](ctx, c, "/v1/notifications", p.values())
}

func (c *Client) ListFollowers(ctx context.Context, profileID string, p ListParams) (Envelope[Connection], error) {
	return list[Connection](ctx, c, "/v1/profiles/"+url.PathEscape(profileID)+"/followers", p.values())
}

func (c *Client) ListFollowing(ctx context.Context, profileID string, p ListParams) (Envelope[Connection], error) {
	return list[Connection](ctx, c, "/v1/profiles/"+url.PathEscape(profileID)+"/following", p.values())
}

func (c *Client) GetPost(ctx context.Context, postID string) (*FeedItem, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(postID), nil, nil)
	if err != nil {
		return nil, err
	}
	var item FeedItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	return &item, nil
}

// CreatePost publishes a post. A MEDIA_NOT_READY rejection is retried once
// after the client's retry delay.
func (c *Client) CreatePost(ctx context.Context, in CreatePostInput) (*FeedItem, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return RetryOnMediaNotReady(ctx, c.retryDelay, func(ctx context.Context) (*FeedItem, error) {
		body, err := c.do(ctx, http.MethodPost, "/v1/posts", nil, payload)
		if err != nil {
			return nil, err
		}
		var item FeedItem
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		return &item, nil
	})
}

func list[T any](ctx context.Context, c *Client, path string, q url.Values) (Envelope[T], error) {
	body, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return Envelope[T]{}, err
	}
	return Normalize[T](body), nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, payload []byte) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeAPIError(status int, body []byte) *APIError {
	var eb struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	_ = json.Unmarshal(body, &eb)
	msg := eb.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Code: eb.Code, Message: msg}
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	setIf(q, "cursor", p.Cursor)
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

func setIf(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}
