package config

import (
	"fmt"
	"net/url"
)

var validFeedTypes = map[string]bool{
	"rss": true, "json": true, "html": true, "headless": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("at least one feed must be configured")
	}

	seenNames := make(map[string]bool, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		if feed.Name == "" {
			return fmt.Errorf("feed name must not be empty")
		}
		if seenNames[feed.Name] {
			return fmt.Errorf("duplicate feed name %q", feed.Name)
		}
		seenNames[feed.Name] = true

		if err := ValidateURL(feed.URL, feed.Type); err != nil {
			return fmt.Errorf("feed %q: %w", feed.Name, err)
		}
		if !validFeedTypes[feed.Type] {
			return fmt.Errorf("feed %q: type must be one of rss/json/html/headless, got %q", feed.Name, feed.Type)
		}
		if feed.MaxRetries < 0 {
			return fmt.Errorf("feed %q: max_retries must be >= 0, got %d", feed.Name, feed.MaxRetries)
		}
	}

	if cfg.RateLimit.SourceMaxTokens <= 0 {
		return fmt.Errorf("rate_limit.source_max_tokens must be > 0")
	}
	if cfg.RateLimit.GlobalMaxTokens <= 0 {
		return fmt.Errorf("rate_limit.global_max_tokens must be > 0")
	}
	validBackoff := map[string]bool{"linear": true, "exponential": true, "fibonacci": true}
	if !validBackoff[cfg.RateLimit.BackoffStrategy] {
		return fmt.Errorf("rate_limit.backoff_strategy must be linear/exponential/fibonacci, got %q", cfg.RateLimit.BackoffStrategy)
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if cfg.Browser.MaxContexts < 1 {
		return fmt.Errorf("browser.max_contexts must be >= 1, got %d", cfg.Browser.MaxContexts)
	}

	validStorageTypes := map[string]bool{"mongodb": true, "file": true}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: mongodb, file)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "mongodb" && cfg.Storage.URI == "" {
		return fmt.Errorf("storage.uri is required when storage.type is mongodb")
	}
	if cfg.Storage.Type == "file" && cfg.Storage.OutputPath == "" {
		return fmt.Errorf("storage.output_path is required when storage.type is file")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	if cfg.MaxAgeDays < 1 {
		return fmt.Errorf("max_age_days must be >= 1, got %d", cfg.MaxAgeDays)
	}

	return nil
}

// ValidateURL checks if a URL string is valid for fetching. A json feed
// pointed at a local file path (no http/https scheme, per fetcher.isLocalPath)
// is exempt from the scheme/host check since the json transport reads it
// directly off disk instead of fetching it.
func ValidateURL(rawURL, feedType string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if feedType == "json" && u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
