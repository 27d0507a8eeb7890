package config

import "testing"

func validConfigWithFeed(feed FeedConfig) *Config {
	cfg := DefaultConfig()
	cfg.Feeds = []FeedConfig{feed}
	return cfg
}

func TestValidateRejectsNonHTTPURLForNonJSONFeed(t *testing.T) {
	cfg := validConfigWithFeed(FeedConfig{Name: "local-html", URL: "./fixtures/page.html", Type: "html"})
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for a local path on a non-json feed type")
	}
}

func TestValidateAcceptsLocalPathForJSONFeed(t *testing.T) {
	cfg := validConfigWithFeed(FeedConfig{Name: "local-json", URL: "./fixtures/jobs.json", Type: "json"})
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected local path to be accepted for a json feed, got: %v", err)
	}
}

func TestValidateAcceptsHTTPURLForJSONFeed(t *testing.T) {
	cfg := validConfigWithFeed(FeedConfig{Name: "remote-json", URL: "https://example.com/jobs.json", Type: "json"})
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected an http(s) json feed to validate, got: %v", err)
	}
}

func TestValidateRejectsMissingHostForJSONFeed(t *testing.T) {
	cfg := validConfigWithFeed(FeedConfig{Name: "bad-json", URL: "https://", Type: "json"})
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for an http(s) URL with no host even on a json feed")
	}
}

func TestValidateRejectsUnknownFeedType(t *testing.T) {
	cfg := validConfigWithFeed(FeedConfig{Name: "bad-type", URL: "https://example.com/feed", Type: "xml"})
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for an unrecognized feed type")
	}
}

func TestValidateRejectsDuplicateFeedNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feeds = []FeedConfig{
		{Name: "dup", URL: "https://example.com/a", Type: "rss"},
		{Name: "dup", URL: "https://example.com/b", Type: "rss"},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for duplicate feed names")
	}
}

func TestValidateRejectsEmptyFeedList(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error when no feeds are configured")
	}
}
