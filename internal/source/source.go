package source

import (
	"context"
	"time"
)

// Item is a single post fetched from the source feed.
type Item struct {
	ID          string       // source-assigned id, ordered by recency within the feed
	Text        string       // raw post body
	CreatedAt   time.Time    // publication timestamp
	Attachments []Attachment // resolved media attachments, source order
}

// Attachment is a media reference resolved to a kind and fetchable URL.
type Attachment struct {
	Kind string // "photo", "video", "animated_gif"
	URL  string
}

// Feed fetches new items from a source timeline.
type Feed interface {
	// Name returns the feed identifier (e.g. "twitter").
	Name() string

	// FetchSince returns items newer than sinceID, ordered oldest-first,
	// at most limit of them (the newest limit when more are pending).
	// An empty sinceID means no cursor: fetch from the top of the feed.
	FetchSince(ctx context.Context, sinceID string, limit int) ([]Item, error)
}

// idLess compares two numeric string ids. Tweet ids are decimal
// snowflakes, so a shorter string is always the smaller number.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
