package domain

import "errors"

// --- Input errors ---
var (
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrInvalidMode       = errors.New("invalid feed mode")
	ErrInvalidType       = errors.New("invalid content type")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrAuthorRequired    = errors.New("author id is required")
	ErrViewerRequired    = errors.New("caller identity is required")
	ErrProfileRequired   = errors.New("profile id is required")
	ErrEmptyPost         = errors.New("post needs content or media")
)

// --- Lookup errors ---
var (
	ErrPostNotFound  = errors.New("post not found")
	ErrMediaNotFound = errors.New("media not found")
)

// ErrMediaFailed means the pipeline gave up on an upload; retrying will not help.
var ErrMediaFailed = errors.New("media processing failed")

// ErrMediaNotReady is expected while the media pipeline is still processing an
// upload. Clients retry it once.
var ErrMediaNotReady = errors.New("media not ready")
