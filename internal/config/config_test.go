package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, `{
  "twitter_username": "wixoss_TCG",
  "header_text": "[wixoss公式]",
  "header_link": "https://example.com/about",
  "initial_post_limit": 5,
  "link_mode": "reply",
  "post_delay": "2s",
  "source": "nitter",
  "nitter_base_url": "https://nitter.poast.org"
}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.TwitterUsername != "wixoss_TCG" {
		t.Errorf("twitter_username = %q", cfg.TwitterUsername)
	}
	if cfg.HeaderText != "[wixoss公式]" {
		t.Errorf("header_text = %q", cfg.HeaderText)
	}
	if cfg.HeaderLink != "https://example.com/about" {
		t.Errorf("header_link = %q", cfg.HeaderLink)
	}
	if cfg.InitialPostLimit != 5 {
		t.Errorf("initial_post_limit = %d", cfg.InitialPostLimit)
	}
	if cfg.LinkMode != LinkModeReply {
		t.Errorf("link_mode = %q", cfg.LinkMode)
	}
	if cfg.PostDelay.Duration != 2*time.Second {
		t.Errorf("post_delay = %s", cfg.PostDelay)
	}
	if cfg.Source != SourceNitter {
		t.Errorf("source = %q", cfg.Source)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, `{
  "twitter_username": "wixoss_TCG",
  "header_text": "[wixoss公式]"
}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.InitialPostLimit != DefaultInitialPostLimit {
		t.Errorf("initial_post_limit = %d, want default %d", cfg.InitialPostLimit, DefaultInitialPostLimit)
	}
	if cfg.PostDelay.Duration != DefaultPostDelay {
		t.Errorf("post_delay = %s, want default %s", cfg.PostDelay, DefaultPostDelay)
	}
	if cfg.Source != SourceTwitter {
		t.Errorf("source = %q, want twitter", cfg.Source)
	}
	if cfg.LinkMode != LinkModeHeader {
		t.Errorf("link_mode = %q, want header", cfg.LinkMode)
	}
	if cfg.HeaderLink != "" {
		t.Errorf("header_link should default to empty (item permalink), got %q", cfg.HeaderLink)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, `{"twitter_username": `)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing username",
			content: `{"header_text": "h"}`,
			wantErr: "twitter_username",
		},
		{
			name:    "missing header text",
			content: `{"twitter_username": "u"}`,
			wantErr: "header_text",
		},
		{
			name:    "negative limit",
			content: `{"twitter_username": "u", "header_text": "h", "initial_post_limit": -1}`,
			wantErr: "initial_post_limit",
		},
		{
			name:    "bad duration",
			content: `{"twitter_username": "u", "header_text": "h", "post_delay": "soon"}`,
			wantErr: "parse duration",
		},
		{
			name:    "unknown source",
			content: `{"twitter_username": "u", "header_text": "h", "source": "mastodon"}`,
			wantErr: "unknown source",
		},
		{
			name:    "nitter without base url",
			content: `{"twitter_username": "u", "header_text": "h", "source": "nitter"}`,
			wantErr: "nitter_base_url",
		},
		{
			name:    "unknown link mode",
			content: `{"twitter_username": "u", "header_text": "h", "link_mode": "banner"}`,
			wantErr: "link_mode",
		},
	}

	for _, tt := range tests {
		dir := t.TempDir()
		writeTestConfig(t, dir, tt.content)

		_, err := Load(dir)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.wantErr)
		}
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv(EnvTwitterAPIKey, "key")
	t.Setenv(EnvTwitterAPISecret, "secret")
	t.Setenv(EnvBlueskyHandle, "mirror.test")
	t.Setenv(EnvBlueskyPassword, "app-password")

	creds, err := LoadCredentials(true)
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if creds.TwitterAPIKey != "key" || creds.BlueskyHandle != "mirror.test" {
		t.Errorf("credentials = %+v", creds)
	}
}

func TestLoadCredentials_MissingBluesky(t *testing.T) {
	t.Setenv(EnvTwitterAPIKey, "key")
	t.Setenv(EnvTwitterAPISecret, "secret")
	t.Setenv(EnvBlueskyHandle, "")
	t.Setenv(EnvBlueskyPassword, "")

	if _, err := LoadCredentials(true); err == nil {
		t.Fatal("expected error for missing bluesky credentials")
	}
}

func TestLoadCredentials_TwitterOptionalForNitter(t *testing.T) {
	t.Setenv(EnvTwitterAPIKey, "")
	t.Setenv(EnvTwitterAPISecret, "")
	t.Setenv(EnvBlueskyHandle, "mirror.test")
	t.Setenv(EnvBlueskyPassword, "app-password")

	if _, err := LoadCredentials(false); err != nil {
		t.Fatalf("nitter source should not need twitter credentials: %v", err)
	}
	if _, err := LoadCredentials(true); err == nil {
		t.Fatal("twitter source should require twitter credentials")
	}
}
