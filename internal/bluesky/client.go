// Package bluesky is a minimal atproto xrpc client covering the calls
// a mirror run needs: session creation, blob upload, and feed post
// record creation.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultPDS = "https://bsky.social"

	clientTimeout = 30 * time.Second

	postCollection = "app.bsky.feed.post"
	linkFeature    = "app.bsky.richtext.facet#link"
	imagesEmbed    = "app.bsky.embed.images"
)

// Blob is the opaque blob reference returned by uploadBlob, passed
// through verbatim into image embeds.
type Blob = json.RawMessage

// Facet is a richtext link annotation over a byte range of post text.
type Facet struct {
	Index    FacetIndex     `json:"index"`
	Features []FacetFeature `json:"features"`
}

type FacetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type FacetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

// LinkFacet builds a link facet over [byteStart, byteEnd).
func LinkFacet(byteStart, byteEnd int, uri string) Facet {
	return Facet{
		Index:    FacetIndex{ByteStart: byteStart, ByteEnd: byteEnd},
		Features: []FacetFeature{{Type: linkFeature, URI: uri}},
	}
}

// Image is one entry of an images embed.
type Image struct {
	Alt   string `json:"alt"`
	Image Blob   `json:"image"`
}

// Embed is an images embed. Only the images variant is supported.
type Embed struct {
	Type   string  `json:"$type"`
	Images []Image `json:"images"`
}

// NewImagesEmbed wraps up to four images as a post embed.
func NewImagesEmbed(images []Image) *Embed {
	return &Embed{Type: imagesEmbed, Images: images}
}

// PostRef identifies a created record.
type PostRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// ReplyRef threads a post under an existing one.
type ReplyRef struct {
	Root   PostRef `json:"root"`
	Parent PostRef `json:"parent"`
}

// PostRecord is an app.bsky.feed.post record.
type PostRecord struct {
	Type      string    `json:"$type"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Facets    []Facet   `json:"facets,omitempty"`
	Embed     *Embed    `json:"embed,omitempty"`
	Reply     *ReplyRef `json:"reply,omitempty"`
}

// Client talks to one PDS on behalf of one account. Login must be
// called before UploadBlob or CreatePost.
type Client struct {
	pds    string
	client *http.Client

	accessJwt string
	did       string

	now func() time.Time
}

// NewClient creates a client for the given PDS base URL.
func NewClient(pds string) (*Client, error) {
	if strings.TrimSpace(pds) == "" {
		return nil, errors.New("bluesky: pds URL is required")
	}
	return &Client{
		pds:    strings.TrimRight(pds, "/"),
		client: &http.Client{Timeout: clientTimeout},
		now:    time.Now,
	}, nil
}

// Login exchanges handle and app password for a session token.
func (c *Client) Login(ctx context.Context, handle, password string) error {
	if handle == "" || password == "" {
		return errors.New("bluesky: handle and password are required")
	}

	payload := map[string]string{"identifier": handle, "password": password}
	var session struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
	}
	if err := c.postJSON(ctx, "com.atproto.server.createSession", payload, &session); err != nil {
		return fmt.Errorf("bluesky: create session: %w", err)
	}
	if session.AccessJwt == "" || session.DID == "" {
		return errors.New("bluesky: create session returned no token")
	}

	c.accessJwt = session.AccessJwt
	c.did = session.DID
	return nil
}

// UploadBlob uploads raw image bytes and returns the blob reference
// for use in an images embed. The content type is sniffed from the
// data.
func (c *Client) UploadBlob(ctx context.Context, data []byte) (Blob, error) {
	if c.accessJwt == "" {
		return nil, errors.New("bluesky: not logged in")
	}
	if len(data) == 0 {
		return nil, errors.New("bluesky: empty blob")
	}

	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	endpoint := c.pds + "/xrpc/com.atproto.repo.uploadBlob"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bluesky: create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	req.Header.Set("Content-Type", http.DetectContentType(data))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bluesky: upload blob: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bluesky: upload blob: %s", xrpcError(resp))
	}

	var payload struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("bluesky: decode upload response: %w", err)
	}
	if len(payload.Blob) == 0 {
		return nil, errors.New("bluesky: upload returned no blob")
	}
	return Blob(payload.Blob), nil
}

// CreatePost submits a feed post record and returns its reference.
func (c *Client) CreatePost(ctx context.Context, rec PostRecord) (PostRef, error) {
	if c.accessJwt == "" {
		return PostRef{}, errors.New("bluesky: not logged in")
	}

	rec.Type = postCollection
	if rec.CreatedAt == "" {
		rec.CreatedAt = c.now().UTC().Format(time.RFC3339)
	}

	payload := map[string]any{
		"repo":       c.did,
		"collection": postCollection,
		"record":     rec,
	}

	var ref PostRef
	if err := c.postJSON(ctx, "com.atproto.repo.createRecord", payload, &ref); err != nil {
		return PostRef{}, fmt.Errorf("bluesky: create post: %w", err)
	}
	if ref.URI == "" {
		return PostRef{}, errors.New("bluesky: create post returned no uri")
	}
	return ref, nil
}

func (c *Client) postJSON(ctx context.Context, method string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	endpoint := c.pds + "/xrpc/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.New(xrpcError(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// xrpcError renders an xrpc error response as "HTTP 400 (InvalidRequest:
// reason)" when the body carries the standard error shape.
func xrpcError(resp *http.Response) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("HTTP %d (%s: %s)", resp.StatusCode, payload.Error, payload.Message)
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
