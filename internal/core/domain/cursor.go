package domain

import (
	"strconv"
	"time"
)

// EncodeCursor turns a boundary timestamp into an opaque token. The next page
// holds rows strictly older than the boundary.
func EncodeCursor(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DecodeCursor parses a token produced by EncodeCursor. Empty is not a valid
// token: callers treat it as "first page" before decoding.
func DecodeCursor(cursor string) (time.Time, error) {
	ms, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, ErrInvalidCursor
	}
	return time.UnixMilli(ms).UTC(), nil
}

// CursorBoundary resolves an optional cursor into a ListQuery.Before value.
func CursorBoundary(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	return DecodeCursor(cursor)
}
