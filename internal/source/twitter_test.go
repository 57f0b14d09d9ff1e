package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return string(b)
}

func twitterWithTransport(t *testing.T, rt roundTripFunc) *TwitterSource {
	t.Helper()
	ts, err := NewTwitter("wixoss_TCG", "key", "secret")
	if err != nil {
		t.Fatalf("new twitter: %v", err)
	}
	ts.baseURL = "https://twitter.test"
	ts.client = &http.Client{Timeout: twitterTimeout, Transport: rt}
	return ts
}

// routes the three API calls a fetch makes: token exchange, user
// lookup, timeline.
func twitterAPI(t *testing.T, timelineBody string, timelineStatus int) roundTripFunc {
	t.Helper()
	return func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/oauth2/token"):
			auth := req.Header.Get("Authorization")
			want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
			if auth != want {
				t.Errorf("token exchange auth = %q, want %q", auth, want)
			}
			return response(200, `{"access_token":"tok-123"}`), nil
		case strings.Contains(req.URL.Path, "/users/by/username/"):
			if got := req.Header.Get("Authorization"); got != "Bearer tok-123" {
				t.Errorf("user lookup auth = %q", got)
			}
			return response(200, `{"data":{"id":"42"}}`), nil
		case strings.Contains(req.URL.Path, "/users/42/tweets"):
			return response(timelineStatus, timelineBody), nil
		default:
			t.Errorf("unexpected request: %s", req.URL)
			return response(404, `{}`), nil
		}
	}
}

func TestNewTwitter_Validation(t *testing.T) {
	if _, err := NewTwitter("", "k", "s"); err == nil {
		t.Fatal("expected error for empty username")
	}
	if _, err := NewTwitter("u", "", "s"); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := NewTwitter("u", "k", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestFetchSince_OldestFirstWithMedia(t *testing.T) {
	body := mustJSON(t, map[string]any{
		"data": []map[string]any{
			{
				"id":         "5",
				"text":       "newest",
				"created_at": "2026-03-02T10:00:00Z",
				"attachments": map[string]any{
					"media_keys": []string{"3_b"},
				},
			},
			{
				"id":         "3",
				"text":       "oldest",
				"created_at": "2026-03-01T10:00:00Z",
				"attachments": map[string]any{
					"media_keys": []string{"3_a"},
				},
			},
		},
		"includes": map[string]any{
			"media": []map[string]any{
				{"media_key": "3_a", "type": "photo", "url": "https://pbs.test/a.jpg"},
				{"media_key": "3_b", "type": "photo", "url": "https://pbs.test/b.jpg"},
				{"media_key": "3_zzz", "type": "photo", "url": "https://pbs.test/unrelated.jpg"},
			},
		},
	})

	ts := twitterWithTransport(t, twitterAPI(t, body, 200))
	items, err := ts.FetchSince(context.Background(), "1", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "3" || items[1].ID != "5" {
		t.Fatalf("expected oldest-first [3 5], got [%s %s]", items[0].ID, items[1].ID)
	}

	// Each item resolves only its own media keys; the unreferenced
	// includes entry must not leak into either item.
	if len(items[0].Attachments) != 1 || items[0].Attachments[0].URL != "https://pbs.test/a.jpg" {
		t.Errorf("item 3 attachments = %+v", items[0].Attachments)
	}
	if len(items[1].Attachments) != 1 || items[1].Attachments[0].URL != "https://pbs.test/b.jpg" {
		t.Errorf("item 5 attachments = %+v", items[1].Attachments)
	}
}

func TestFetchSince_SinceIDPassedThrough(t *testing.T) {
	var gotSinceID string
	rt := func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/oauth2/token"):
			return response(200, `{"access_token":"tok-123"}`), nil
		case strings.Contains(req.URL.Path, "/users/by/username/"):
			return response(200, `{"data":{"id":"42"}}`), nil
		default:
			gotSinceID = req.URL.Query().Get("since_id")
			return response(200, `{"data":[]}`), nil
		}
	}

	ts := twitterWithTransport(t, rt)
	items, err := ts.FetchSince(context.Background(), "1790", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
	if gotSinceID != "1790" {
		t.Errorf("since_id = %q, want 1790", gotSinceID)
	}
}

func TestFetchSince_LimitTruncatesToNewest(t *testing.T) {
	var tweets []map[string]any
	for id := 20; id >= 1; id-- {
		tweets = append(tweets, map[string]any{
			"id":   strconv.Itoa(id),
			"text": "tweet",
		})
	}
	body := mustJSON(t, map[string]any{"data": tweets})

	ts := twitterWithTransport(t, twitterAPI(t, body, 200))
	items, err := ts.FetchSince(context.Background(), "", 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	if items[0].ID != "16" || items[4].ID != "20" {
		t.Fatalf("expected newest five oldest-first [16..20], got [%s..%s]", items[0].ID, items[4].ID)
	}
}

func TestFetchSince_PageSizeClamped(t *testing.T) {
	var gotMax string
	rt := func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/oauth2/token"):
			return response(200, `{"access_token":"tok-123"}`), nil
		case strings.Contains(req.URL.Path, "/users/by/username/"):
			return response(200, `{"data":{"id":"42"}}`), nil
		default:
			gotMax = req.URL.Query().Get("max_results")
			return response(200, `{"data":[]}`), nil
		}
	}

	ts := twitterWithTransport(t, rt)
	if _, err := ts.FetchSince(context.Background(), "", 3); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotMax != "5" {
		t.Errorf("max_results = %q, want 5 (clamped floor)", gotMax)
	}

	ts = twitterWithTransport(t, rt)
	if _, err := ts.FetchSince(context.Background(), "", 500); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotMax != "100" {
		t.Errorf("max_results = %q, want 100 (clamped ceiling)", gotMax)
	}
}

func TestFetchSince_AuthFailure(t *testing.T) {
	rt := func(req *http.Request) (*http.Response, error) {
		return response(403, `{"errors":[{"message":"bad credentials"}]}`), nil
	}

	ts := twitterWithTransport(t, rt)
	if _, err := ts.FetchSince(context.Background(), "", 10); err == nil {
		t.Fatal("expected error for auth failure")
	}
}

func TestFetchSince_TimelineHTTPError(t *testing.T) {
	ts := twitterWithTransport(t, twitterAPI(t, `{"title":"Too Many Requests"}`, 429))
	if _, err := ts.FetchSince(context.Background(), "", 10); err == nil {
		t.Fatal("expected error for timeline failure")
	}
}

func TestFetchSince_TweetMissingID(t *testing.T) {
	body := `{"data":[{"text":"no id"}]}`
	ts := twitterWithTransport(t, twitterAPI(t, body, 200))
	if _, err := ts.FetchSince(context.Background(), "", 10); err == nil {
		t.Fatal("expected error for tweet without id")
	}
}
