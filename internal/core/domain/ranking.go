package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// RecencyWindow is the age under which likes count double.
const RecencyWindow = 24 * time.Hour

// TrendingScore is a two-bucket step, not a decay curve: fresh items score
// likes*2+comments, older ones likes+comments.
func TrendingScore(item FeedItem, now time.Time) int64 {
	if now.Sub(item.CreatedAt) < RecencyWindow {
		return item.LikesCount*2 + item.CommentsCount
	}
	return item.LikesCount + item.CommentsCount
}

// RankTrending returns a copy of items ordered by score, then newest first.
// Counters are only read.
func RankTrending(items []FeedItem, now time.Time) []FeedItem {
	ranked := slices.Clone(items)
	slices.SortStableFunc(ranked, func(a, b FeedItem) int {
		if c := cmp.Compare(TrendingScore(b, now), TrendingScore(a, now)); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return ranked
}
