package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	nitterSourceName = "nitter"
	nitterTimeout    = 30 * time.Second
	nitterUserAgent  = "Mozilla/5.0 (compatible; shushu/1.0; +https://github.com/shiro-ka/shushu)"
)

var statusIDRe = regexp.MustCompile(`/status/(\d+)`)

// NitterSource reads a user's timeline from a Nitter instance's RSS
// feed. It needs no source-platform credentials, at the cost of media
// attachments: the RSS items carry images only inside HTML bodies,
// which this source does not parse.
type NitterSource struct {
	baseURL  string
	username string
	client   *http.Client
}

// NewNitter creates a Nitter RSS feed for the given username.
func NewNitter(baseURL, username string) (*NitterSource, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("nitter: base URL is required")
	}
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("nitter: username is required")
	}
	return &NitterSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		client:   &http.Client{Timeout: nitterTimeout},
	}, nil
}

func (ns *NitterSource) Name() string {
	return nitterSourceName
}

// FetchSince returns items newer than sinceID, oldest-first. RSS has
// no since_id parameter, so filtering happens client-side; the feed
// only ever exposes one page, which bounds the backlog naturally.
func (ns *NitterSource) FetchSince(ctx context.Context, sinceID string, limit int) ([]Item, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("nitter: invalid limit %d", limit)
	}

	ctx, cancel := context.WithTimeout(ctx, nitterTimeout)
	defer cancel()

	feedURL := fmt.Sprintf("%s/%s/rss", ns.baseURL, ns.username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nitter: create request: %w", err)
	}
	req.Header.Set("User-Agent", nitterUserAgent)

	resp, err := ns.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nitter: fetch %s: %w", feedURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nitter: fetch %s: HTTP %d", feedURL, resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nitter: parse feed: %w", err)
	}

	var items []Item
	for _, entry := range feed.Items {
		id := statusID(entry)
		if id == "" {
			continue
		}
		if sinceID != "" && !idLess(sinceID, id) {
			continue
		}

		item := Item{ID: id, Text: strings.TrimSpace(entry.Title)}
		if entry.PublishedParsed != nil {
			item.CreatedAt = entry.PublishedParsed.UTC()
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return idLess(items[i].ID, items[j].ID) })

	if len(items) > limit {
		// Keep the newest limit items, matching the API source.
		items = items[len(items)-limit:]
	}
	return items, nil
}

func statusID(entry *gofeed.Item) string {
	for _, candidate := range []string{entry.GUID, entry.Link} {
		if m := statusIDRe.FindStringSubmatch(candidate); m != nil {
			return m[1]
		}
	}
	return ""
}
