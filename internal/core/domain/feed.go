package domain

import "time"

type ContentType string

const (
	TypePost  ContentType = "post"
	TypeVideo ContentType = "video"
)

func (t ContentType) Valid() bool {
	return t == TypePost || t == TypeVideo
}

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaStatus is driven by the asynchronous transcoding pipeline.
type MediaStatus string

const (
	MediaPending MediaStatus = "pending"
	MediaReady   MediaStatus = "ready"
	MediaFailed  MediaStatus = "failed"
)

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

type Media struct {
	ID     string
	URL    string
	Type   MediaType
	Status MediaStatus
}

// FeedItem is a read snapshot of a post. Counters may lag behind storage.
type FeedItem struct {
	ID            string
	AuthorID      string
	Type          ContentType
	Content       string
	Media         []Media
	LikesCount    int64
	CommentsCount int64
	ViewsCount    int64
	Visibility    Visibility
	IsLiked       bool // per caller, never cached
	CreatedAt     time.Time
}

type FeedMode string

const (
	ModeFollowing FeedMode = "following"
	ModeAuthor    FeedMode = "author"
	ModeGlobal    FeedMode = "global"
)

// ParseFeedMode defaults to the global feed when s is empty.
func ParseFeedMode(s string) (FeedMode, error) {
	switch FeedMode(s) {
	case "":
		return ModeGlobal, nil
	case ModeFollowing, ModeAuthor, ModeGlobal:
		return FeedMode(s), nil
	}
	return "", ErrInvalidMode
}

// Personalized modes depend on who is asking and must not be shared through the cache.
func (m FeedMode) Personalized() bool {
	return m == ModeFollowing
}

// FeedRequest encapsule les critères de recherche
type FeedRequest struct {
	Mode     FeedMode
	ViewerID string // caller profile, empty when anonymous
	AuthorID string
	Type     ContentType // optional filter
	Cursor   string
	Limit    int
}

// ListQuery is what the repository receives: a decoded boundary and the
// number of rows to fetch (already over-fetched by the caller).
type ListQuery struct {
	ViewerID string
	AuthorID string
	Type     ContentType
	Before   time.Time // zero => first page
	Limit    int
}

type Notification struct {
	ID          string
	RecipientID string
	ActorID     string
	Kind        string
	PostID      string
	Read        bool
	CreatedAt   time.Time
}

type ConnectionDirection string

const (
	Followers ConnectionDirection = "followers"
	Following ConnectionDirection = "following"
)

// Connection is one row of a follower or following list.
type Connection struct {
	ProfileID string
	Since     time.Time
}

type ListRequest struct {
	ProfileID string
	Cursor    string
	Limit     int
}

// NewPost is the authoring input. Media must already be uploaded.
type NewPost struct {
	AuthorID   string
	Content    string
	MediaIDs   []string
	Visibility Visibility
}
