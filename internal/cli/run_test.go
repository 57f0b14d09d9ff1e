package cli

import (
	"testing"

	"github.com/shiro-ka/shushu/internal/config"
	"github.com/shiro-ka/shushu/internal/source"
)

func TestBuildFeed_Twitter(t *testing.T) {
	cfg := &config.Config{
		TwitterUsername: "wixoss_TCG",
		Source:          config.SourceTwitter,
	}
	creds := &config.Credentials{TwitterAPIKey: "key", TwitterAPISecret: "secret"}

	feed, err := buildFeed(cfg, creds)
	if err != nil {
		t.Fatalf("build feed: %v", err)
	}
	if _, ok := feed.(*source.TwitterSource); !ok {
		t.Fatalf("expected twitter source, got %T", feed)
	}
}

func TestBuildFeed_Nitter(t *testing.T) {
	cfg := &config.Config{
		TwitterUsername: "wixoss_TCG",
		Source:          config.SourceNitter,
		NitterBaseURL:   "https://nitter.test",
	}

	feed, err := buildFeed(cfg, &config.Credentials{})
	if err != nil {
		t.Fatalf("build feed: %v", err)
	}
	if _, ok := feed.(*source.NitterSource); !ok {
		t.Fatalf("expected nitter source, got %T", feed)
	}
}

func TestBuildFeed_TwitterMissingCredentials(t *testing.T) {
	cfg := &config.Config{
		TwitterUsername: "wixoss_TCG",
		Source:          config.SourceTwitter,
	}

	if _, err := buildFeed(cfg, &config.Credentials{}); err == nil {
		t.Fatal("expected error for missing twitter credentials")
	}
}
