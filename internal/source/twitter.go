package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	twitterSourceName = "twitter"
	twitterAPIBase    = "https://api.twitter.com"
	twitterTimeout    = 30 * time.Second

	// The v2 timeline endpoint rejects max_results outside [5,100].
	twitterMinPageSize = 5
	twitterMaxPageSize = 100
)

// TwitterSource fetches a user's timeline via the twitter API v2,
// authenticating with an app-only bearer token obtained through the
// oauth2 client-credentials exchange.
type TwitterSource struct {
	username  string
	apiKey    string
	apiSecret string

	client  *http.Client
	baseURL string

	// cached per process; a run never outlives a token
	bearerToken string
	userID      string
}

// NewTwitter creates a twitter feed for the given username. API key
// and secret are the app credentials for the token exchange.
func NewTwitter(username, apiKey, apiSecret string) (*TwitterSource, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("twitter: username is required")
	}
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(apiSecret) == "" {
		return nil, errors.New("twitter: api key and secret are required")
	}
	return &TwitterSource{
		username:  username,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: twitterTimeout},
		baseURL:   twitterAPIBase,
	}, nil
}

func (ts *TwitterSource) Name() string {
	return twitterSourceName
}

// FetchSince returns tweets newer than sinceID, oldest-first. The API
// pages newest-first, so the page is truncated to the newest limit
// items and then reversed. Each tweet's attachments are resolved
// against the page's includes.media map, scoped to that tweet's own
// media keys only.
func (ts *TwitterSource) FetchSince(ctx context.Context, sinceID string, limit int) ([]Item, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("twitter: invalid limit %d", limit)
	}

	if err := ts.ensureAuth(ctx); err != nil {
		return nil, err
	}

	page, err := ts.fetchTimeline(ctx, sinceID, limit)
	if err != nil {
		return nil, err
	}

	media := make(map[string]twitterMedia, len(page.Includes.Media))
	for _, m := range page.Includes.Media {
		media[m.MediaKey] = m
	}

	tweets := page.Data
	if len(tweets) > limit {
		tweets = tweets[:limit]
	}

	items := make([]Item, 0, len(tweets))
	// Reverse into oldest-first processing order.
	for i := len(tweets) - 1; i >= 0; i-- {
		item, err := itemFromTweet(tweets[i], media)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func itemFromTweet(tw twitterTweet, media map[string]twitterMedia) (Item, error) {
	if tw.ID == "" {
		return Item{}, errors.New("twitter: tweet missing id")
	}

	item := Item{ID: tw.ID, Text: tw.Text}

	if tw.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, tw.CreatedAt)
		if err != nil {
			return Item{}, fmt.Errorf("twitter: tweet %s created_at: %w", tw.ID, err)
		}
		item.CreatedAt = createdAt
	}

	for _, key := range tw.Attachments.MediaKeys {
		m, ok := media[key]
		if !ok {
			// The expansion can omit entries; skip rather than fail the tweet.
			continue
		}
		item.Attachments = append(item.Attachments, Attachment{Kind: m.Type, URL: m.URL})
	}
	return item, nil
}

func (ts *TwitterSource) ensureAuth(ctx context.Context) error {
	if ts.bearerToken == "" {
		token, err := ts.fetchBearerToken(ctx)
		if err != nil {
			return err
		}
		ts.bearerToken = token
	}
	if ts.userID == "" {
		id, err := ts.fetchUserID(ctx)
		if err != nil {
			return err
		}
		ts.userID = id
	}
	return nil
}

// fetchBearerToken exchanges the app key/secret for a bearer token
// (oauth2 client-credentials grant, Basic-authenticated).
func (ts *TwitterSource) fetchBearerToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, twitterTimeout)
	defer cancel()

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.baseURL+"/oauth2/token", body)
	if err != nil {
		return "", fmt.Errorf("twitter: create token request: %w", err)
	}
	req.SetBasicAuth(url.QueryEscape(ts.apiKey), url.QueryEscape(ts.apiSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twitter: token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twitter: token exchange: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("twitter: decode token: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("twitter: token exchange returned no access_token")
	}
	return payload.AccessToken, nil
}

func (ts *TwitterSource) fetchUserID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, twitterTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/2/users/by/username/%s", ts.baseURL, url.PathEscape(ts.username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("twitter: create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ts.bearerToken)

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twitter: lookup user %s: %w", ts.username, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twitter: lookup user %s: HTTP %d", ts.username, resp.StatusCode)
	}

	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("twitter: decode user: %w", err)
	}
	if payload.Data.ID == "" {
		return "", fmt.Errorf("twitter: user %s not found", ts.username)
	}
	return payload.Data.ID, nil
}

func (ts *TwitterSource) fetchTimeline(ctx context.Context, sinceID string, limit int) (*twitterTimeline, error) {
	ctx, cancel := context.WithTimeout(ctx, twitterTimeout)
	defer cancel()

	pageSize := limit
	if pageSize < twitterMinPageSize {
		pageSize = twitterMinPageSize
	}
	if pageSize > twitterMaxPageSize {
		pageSize = twitterMaxPageSize
	}

	params := url.Values{
		"max_results":  {strconv.Itoa(pageSize)},
		"tweet.fields": {"created_at,attachments"},
		"expansions":   {"attachments.media_keys"},
		"media.fields": {"url,preview_image_url,type"},
		"exclude":      {"retweets"},
	}
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}

	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", ts.baseURL, ts.userID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("twitter: create timeline request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ts.bearerToken)

	resp, err := ts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter: fetch timeline: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter: fetch timeline: HTTP %d", resp.StatusCode)
	}

	var page twitterTimeline
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("twitter: decode timeline: %w", err)
	}
	return &page, nil
}

type twitterTimeline struct {
	Data     []twitterTweet `json:"data"`
	Includes struct {
		Media []twitterMedia `json:"media"`
	} `json:"includes"`
}

type twitterTweet struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type twitterMedia struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}
