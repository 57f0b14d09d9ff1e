// Package mirror drives one synchronization pass: fetch new source
// items past the cursor, transform and re-post each on the target
// platform, and advance the cursor exactly once at the end.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shiro-ka/shushu/internal/bluesky"
	"github.com/shiro-ka/shushu/internal/config"
	"github.com/shiro-ka/shushu/internal/richtext"
	"github.com/shiro-ka/shushu/internal/source"
	"github.com/shiro-ka/shushu/internal/state"
	"github.com/shiro-ka/shushu/internal/store"
)

// backlogPageSize is the fetch limit once the cursor is initialized:
// one large page per run, deferring any deeper backlog to the next run.
const backlogPageSize = 100

// Poster submits a composed post record to the target platform.
type Poster interface {
	CreatePost(ctx context.Context, rec bluesky.PostRecord) (bluesky.PostRef, error)
}

// Runner owns one synchronization pass. Items are processed strictly
// sequentially in feed order; the cursor is read once at the start and
// written once at the end, so a single active run owns it exclusively.
type Runner struct {
	Feed    source.Feed
	Poster  Poster
	Media   *MediaTransferer
	Cursor  *state.Store
	Archive *store.Store // optional; nil disables the duplicate guard
	Config  *config.Config

	// injectable for tests
	sleep func(time.Duration)
	now   func() time.Time
}

// NewRunner wires a runner from its collaborators.
func NewRunner(feed source.Feed, poster Poster, media *MediaTransferer, cursor *state.Store, archive *store.Store, cfg *config.Config) (*Runner, error) {
	if feed == nil {
		return nil, errors.New("mirror: feed is required")
	}
	if poster == nil {
		return nil, errors.New("mirror: poster is required")
	}
	if media == nil {
		return nil, errors.New("mirror: media transferer is required")
	}
	if cursor == nil {
		return nil, errors.New("mirror: cursor store is required")
	}
	if cfg == nil {
		return nil, errors.New("mirror: config is required")
	}
	return &Runner{
		Feed:    feed,
		Poster:  poster,
		Media:   media,
		Cursor:  cursor,
		Archive: archive,
		Config:  cfg,
		sleep:   time.Sleep,
		now:     time.Now,
	}, nil
}

// Report summarizes one pass.
type Report struct {
	Fetched   int // items returned by the feed
	Skipped   int // items already present in the archive
	Attempted int // items actually transformed and posted
	Succeeded int
	Failed    int
}

// Run executes one pass. A fetch failure aborts before anything is
// posted, leaving the cursor untouched. Per-item failures are logged
// and counted; the cursor still advances past them, so a structurally
// failing item is never retried on a later run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var report Report

	cur, err := r.Cursor.Load()
	if err != nil {
		return report, fmt.Errorf("load cursor: %w", err)
	}

	limit := backlogPageSize
	if !cur.Initialized {
		limit = r.Config.InitialPostLimit
		fmt.Printf("first run: fetching at most %d items\n", limit)
	}

	items, err := r.Feed.FetchSince(ctx, cur.LastProcessedID, limit)
	if err != nil {
		return report, fmt.Errorf("fetch %s feed: %w", r.Feed.Name(), err)
	}
	report.Fetched = len(items)

	if len(items) == 0 {
		fmt.Println("no new items")
		return report, nil
	}

	for _, item := range items {
		if r.alreadyMirrored(ctx, item.ID) {
			report.Skipped++
			continue
		}

		report.Attempted++
		ref, err := r.mirrorItem(ctx, item)
		if err != nil {
			fmt.Printf("warning: item %s: %v\n", item.ID, err)
			report.Failed++
			continue
		}
		report.Succeeded++

		r.archiveItem(ctx, item, ref)
		if r.Config.LinkMode == config.LinkModeReply {
			r.postReplyLink(ctx, item, ref)
		}

		// rate-limit courtesy pause, successes only
		r.sleep(r.Config.PostDelay.Duration)
	}

	cur.LastProcessedID = items[len(items)-1].ID
	cur.Initialized = true
	cur.LastUpdated = r.now().UTC()
	if err := r.Cursor.Save(cur); err != nil {
		return report, fmt.Errorf("save cursor: %w", err)
	}

	return report, nil
}

// mirrorItem transforms and posts a single item.
func (r *Runner) mirrorItem(ctx context.Context, item source.Item) (bluesky.PostRef, error) {
	body := richtext.StripTrackingLinks(item.Text)
	bodyFacets := richtext.ExtractLinks(body)
	images, _ := r.Media.Transfer(ctx, item.ID, item.Attachments)

	rec := Compose(r.Config, item, body, bodyFacets, images)

	ref, err := r.Poster.CreatePost(ctx, rec)
	if err != nil {
		return bluesky.PostRef{}, fmt.Errorf("post: %w", err)
	}
	return ref, nil
}

// alreadyMirrored consults the archive. Archive errors only disable
// the guard for this item; they never fail the run.
func (r *Runner) alreadyMirrored(ctx context.Context, itemID string) bool {
	seen, err := r.Archive.Seen(ctx, r.Feed.Name(), itemID)
	if err != nil {
		fmt.Printf("warning: item %s: archive check: %v\n", itemID, err)
		return false
	}
	if seen {
		fmt.Printf("item %s already mirrored, skipping\n", itemID)
	}
	return seen
}

// archiveItem records a success. The post already exists on the
// target, so a failure here is reported but does not fail the item.
func (r *Runner) archiveItem(ctx context.Context, item source.Item, ref bluesky.PostRef) {
	if r.Archive == nil {
		return
	}
	err := r.Archive.Record(ctx, store.MirroredInput{
		Source:        r.Feed.Name(),
		ItemID:        item.ID,
		BskyURI:       ref.URI,
		BskyCID:       ref.CID,
		Text:          item.Text,
		ItemCreatedAt: item.CreatedAt,
		MirroredAt:    r.now().UTC(),
	})
	if err != nil {
		fmt.Printf("warning: item %s: archive: %v\n", item.ID, err)
	}
}

// postReplyLink threads the item permalink under the freshly created
// post. The main post already exists, so a failure here is a warning,
// not an item failure: retrying the item would duplicate it.
func (r *Runner) postReplyLink(ctx context.Context, item source.Item, ref bluesky.PostRef) {
	rec := bluesky.PostRecord{
		Text:  Permalink(r.Config.TwitterUsername, item.ID),
		Reply: &bluesky.ReplyRef{Root: ref, Parent: ref},
	}
	if _, err := r.Poster.CreatePost(ctx, rec); err != nil {
		fmt.Printf("warning: item %s: reply link: %v\n", item.ID, err)
	}
}
