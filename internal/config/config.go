// Package config loads the per-project mirror configuration and the
// platform credentials from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultConfigFile = "config.json"

	DefaultInitialPostLimit = 10
	DefaultPostDelay        = 1 * time.Second
	DefaultSource           = SourceTwitter
	DefaultLinkMode         = LinkModeHeader

	SourceTwitter = "twitter"
	SourceNitter  = "nitter"

	// LinkModeHeader embeds the original-item link as a facet on the
	// header text; LinkModeReply additionally posts the permalink as a
	// reply threaded under the mirrored post.
	LinkModeHeader = "header"
	LinkModeReply  = "reply"
)

// Env var names for the platform credentials.
const (
	EnvTwitterAPIKey    = "TWITTER_API_KEY"
	EnvTwitterAPISecret = "TWITTER_API_SECRET"
	EnvBlueskyHandle    = "SHUSHU_BLUESKY_HANDLE"
	EnvBlueskyPassword  = "SHUSHU_BLUESKY_PASSWORD"
)

// Duration wraps time.Duration for JSON unmarshaling from strings like "1s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config is the immutable per-run project configuration.
type Config struct {
	TwitterUsername  string   `json:"twitter_username"`
	HeaderText       string   `json:"header_text"`
	HeaderLink       string   `json:"header_link,omitempty"`
	InitialPostLimit int      `json:"initial_post_limit"`
	LinkMode         string   `json:"link_mode,omitempty"`
	PostDelay        Duration `json:"post_delay,omitempty"`
	Source           string   `json:"source,omitempty"`
	NitterBaseURL    string   `json:"nitter_base_url,omitempty"`
}

// Credentials holds the secrets resolved from the environment.
type Credentials struct {
	TwitterAPIKey    string
	TwitterAPISecret string
	BlueskyHandle    string
	BlueskyPassword  string
}

// Load reads config.json from dir, applies defaults, and validates.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.InitialPostLimit == 0 {
		cfg.InitialPostLimit = DefaultInitialPostLimit
	}
	if cfg.PostDelay.Duration == 0 {
		cfg.PostDelay.Duration = DefaultPostDelay
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.LinkMode == "" {
		cfg.LinkMode = DefaultLinkMode
	}
}

func validate(cfg *Config) error {
	if cfg.TwitterUsername == "" {
		return errors.New("twitter_username is required")
	}
	if cfg.HeaderText == "" {
		return errors.New("header_text is required")
	}
	if cfg.InitialPostLimit < 1 {
		return fmt.Errorf("initial_post_limit must be at least 1, got %d", cfg.InitialPostLimit)
	}
	if cfg.PostDelay.Duration < 0 {
		return fmt.Errorf("post_delay must not be negative, got %s", cfg.PostDelay)
	}

	switch cfg.Source {
	case SourceTwitter:
		// credentials checked at run time, against the environment
	case SourceNitter:
		if cfg.NitterBaseURL == "" {
			return errors.New("nitter_base_url is required when source is nitter")
		}
	default:
		return fmt.Errorf("source: unknown source %q (want twitter or nitter)", cfg.Source)
	}

	switch cfg.LinkMode {
	case LinkModeHeader, LinkModeReply:
		// valid
	default:
		return fmt.Errorf("link_mode: unknown mode %q (want header or reply)", cfg.LinkMode)
	}

	return nil
}

// LoadCredentials resolves platform secrets from the environment.
// Twitter credentials are only required when needTwitter is set (the
// nitter source needs none).
func LoadCredentials(needTwitter bool) (*Credentials, error) {
	creds := &Credentials{
		TwitterAPIKey:    os.Getenv(EnvTwitterAPIKey),
		TwitterAPISecret: os.Getenv(EnvTwitterAPISecret),
		BlueskyHandle:    os.Getenv(EnvBlueskyHandle),
		BlueskyPassword:  os.Getenv(EnvBlueskyPassword),
	}

	if creds.BlueskyHandle == "" || creds.BlueskyPassword == "" {
		return nil, fmt.Errorf("%s and %s must be set", EnvBlueskyHandle, EnvBlueskyPassword)
	}
	if needTwitter && (creds.TwitterAPIKey == "" || creds.TwitterAPISecret == "") {
		return nil, fmt.Errorf("%s and %s must be set", EnvTwitterAPIKey, EnvTwitterAPISecret)
	}

	return creds, nil
}
