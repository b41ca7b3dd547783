package domain

import "time"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one slice of a cursor walk. NextCursor is empty when HasMore is false.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// ClampLimit applies the default and the upper bound to a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// Paginate cuts rows fetched with limit+1 down to limit. The extra row only
// proves there is more; the cursor is the timestamp of the last kept row.
// rows must be ordered newest first.
func Paginate[T any](rows []T, limit int, createdAt func(T) time.Time) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	kept := rows[:limit]
	return Page[T]{
		Items:      kept,
		NextCursor: EncodeCursor(createdAt(kept[len(kept)-1])),
		HasMore:    true,
	}
}
