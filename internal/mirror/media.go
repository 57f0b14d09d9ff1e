package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shiro-ka/shushu/internal/bluesky"
	"github.com/shiro-ka/shushu/internal/source"
)

const (
	// MaxImages is the target platform's per-post image cap.
	MaxImages = 4

	mediaTimeout      = 30 * time.Second
	maxImageBodyBytes = 10 << 20
)

// Uploader stores raw image bytes on the target platform and returns
// an opaque blob reference.
type Uploader interface {
	UploadBlob(ctx context.Context, data []byte) (bluesky.Blob, error)
}

// MediaTransferer re-hosts an item's image attachments on the target
// platform. A failure on one image drops just that image; the item
// proceeds with whatever transferred.
type MediaTransferer struct {
	uploader Uploader
	client   *http.Client
	cap      int
}

// NewMediaTransferer creates a transferer uploading through the given
// uploader.
func NewMediaTransferer(uploader Uploader) *MediaTransferer {
	return &MediaTransferer{
		uploader: uploader,
		client:   &http.Client{Timeout: mediaTimeout},
		cap:      MaxImages,
	}
}

// Transfer downloads and re-uploads up to MaxImages photo attachments,
// in source order, with empty alt text. It reports whether eligible
// photos were truncated by the cap. Unsupported attachment kinds are
// skipped.
func (mt *MediaTransferer) Transfer(ctx context.Context, itemID string, attachments []source.Attachment) ([]bluesky.Image, bool) {
	var photos []source.Attachment
	for _, att := range attachments {
		if att.Kind != "photo" || att.URL == "" {
			continue
		}
		photos = append(photos, att)
	}

	truncated := len(photos) > mt.cap
	if truncated {
		fmt.Printf("warning: item %s: %d photos, posting only the first %d\n", itemID, len(photos), mt.cap)
		photos = photos[:mt.cap]
	}

	var images []bluesky.Image
	for _, photo := range photos {
		data, err := mt.fetchImage(ctx, photo.URL)
		if err != nil {
			fmt.Printf("warning: item %s: fetch image %s: %v\n", itemID, photo.URL, err)
			continue
		}

		blob, err := mt.uploader.UploadBlob(ctx, data)
		if err != nil {
			fmt.Printf("warning: item %s: upload image %s: %v\n", itemID, photo.URL, err)
			continue
		}

		images = append(images, bluesky.Image{Alt: "", Image: blob})
	}

	return images, truncated
}

func (mt *MediaTransferer) fetchImage(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, mediaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := mt.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return data, nil
}
