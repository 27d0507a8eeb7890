package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for jobradar.
type Config struct {
	Feeds       []FeedConfig  `mapstructure:"feeds"   yaml:"feeds"`
	Filters     FilterConfig  `mapstructure:"filters" yaml:"filters"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Proxy       ProxyConfig   `mapstructure:"proxy"   yaml:"proxy"`
	Browser     BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Storage     StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging     LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	MaxAgeDays  int           `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// FeedConfig describes one configured source — the spec's "Feed / Source
// Descriptor". Runtime state (error_count, last_error, last_fetched)
// intentionally lives outside this struct, in orchestrator.SourceState,
// since it is not persisted across process restarts.
type FeedConfig struct {
	Name         string            `mapstructure:"name"          yaml:"name"`
	URL          string            `mapstructure:"url"           yaml:"url"`
	Type         string            `mapstructure:"type"          yaml:"type"` // rss, json, html, headless
	Parser       string            `mapstructure:"parser"        yaml:"parser"`
	FetchMethod  string            `mapstructure:"fetch_method"  yaml:"fetch_method"`
	RateLimit    *FeedRateLimit    `mapstructure:"rate_limit"    yaml:"rate_limit"`
	Headers      map[string]string `mapstructure:"headers"       yaml:"headers"`
	Cookies      map[string]string `mapstructure:"cookies"       yaml:"cookies"`
	CacheMinutes int               `mapstructure:"cache_duration" yaml:"cache_duration"`
	MaxRetries   int               `mapstructure:"max_retries"   yaml:"max_retries"`
}

// FeedRateLimit overrides the default per-source token bucket for one feed.
type FeedRateLimit struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	RetryAfterSeconds int `mapstructure:"retry_after"         yaml:"retry_after"`
}

// FilterConfig is the operator's interest profile. The orchestrator passes
// MinScore to the Smart Matcher; the other fields are loaded and validated
// but no pipeline stage filters jobs by them.
type FilterConfig struct {
	Keywords         []string `mapstructure:"keywords"          yaml:"keywords"`
	Locations        []string `mapstructure:"locations"         yaml:"locations"`
	Exclude          []string `mapstructure:"exclude"           yaml:"exclude"`
	SalaryMin        *int     `mapstructure:"salary_min"        yaml:"salary_min"`
	SalaryMax        *int     `mapstructure:"salary_max"        yaml:"salary_max"`
	JobTypes         []string `mapstructure:"job_types"         yaml:"job_types"`
	ExperienceLevels []string `mapstructure:"experience_levels" yaml:"experience_levels"`
	IsRemote         *bool    `mapstructure:"is_remote"         yaml:"is_remote"`
	Sources          []string `mapstructure:"sources"           yaml:"sources"`
	MinScore         int      `mapstructure:"min_score"         yaml:"min_score"`
}

// RateLimitConfig carries the global rate limiter defaults — per spec
// §4.1 these are the starting point for every source's token bucket plus
// the one global bucket.
type RateLimitConfig struct {
	SourceMaxTokens    int     `mapstructure:"source_max_tokens"    yaml:"source_max_tokens"`
	SourceRefillRate   float64 `mapstructure:"source_refill_rate"   yaml:"source_refill_rate"`
	SourceInitBackoff  float64 `mapstructure:"source_initial_backoff" yaml:"source_initial_backoff"`
	SourceMaxBackoff   float64 `mapstructure:"source_max_backoff"   yaml:"source_max_backoff"`
	GlobalMaxTokens    int     `mapstructure:"global_max_tokens"    yaml:"global_max_tokens"`
	GlobalRefillRate   float64 `mapstructure:"global_refill_rate"   yaml:"global_refill_rate"`
	GlobalInitBackoff  float64 `mapstructure:"global_initial_backoff" yaml:"global_initial_backoff"`
	GlobalMaxBackoff   float64 `mapstructure:"global_max_backoff"   yaml:"global_max_backoff"`
	BackoffMultiplier  float64 `mapstructure:"backoff_multiplier"   yaml:"backoff_multiplier"`
	BackoffStrategy    string  `mapstructure:"backoff_strategy"     yaml:"backoff_strategy"` // linear, exponential, fibonacci
}

// ProxyConfig controls proxy rotation. URLs may also be supplied through
// the PROXY_LIST / PROXY_LIST_PATH environment variables (see loader.go).
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"   yaml:"enabled"`
	Rotation string   `mapstructure:"rotation"  yaml:"rotation"` // round_robin, random
	URLs     []string `mapstructure:"urls"      yaml:"urls"`
	Username string   `mapstructure:"username"  yaml:"username"`
	Password string   `mapstructure:"password"  yaml:"password"`
	ProbeURL string   `mapstructure:"probe_url" yaml:"probe_url"`
}

// BrowserConfig controls the headless Browser Pool.
type BrowserConfig struct {
	MaxContexts     int           `mapstructure:"max_contexts"      yaml:"max_contexts"`
	ContextLifetime time.Duration `mapstructure:"context_lifetime"  yaml:"context_lifetime"`
	CookieDir       string        `mapstructure:"cookie_dir"        yaml:"cookie_dir"`
	AntiBotDomains  []string      `mapstructure:"anti_bot_domains"  yaml:"anti_bot_domains"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"       yaml:"nav_timeout"`
}

// StorageConfig controls output/persistence.
type StorageConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"` // mongodb, file
	URI        string `mapstructure:"uri"         yaml:"uri"`
	Database   string `mapstructure:"database"    yaml:"database"`
	Collection string `mapstructure:"collection"  yaml:"collection"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus-text metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with the defaults named throughout §4 of
// the specification.
func DefaultConfig() *Config {
	return &Config{
		Filters: FilterConfig{
			MinScore: 1,
		},
		RateLimit: RateLimitConfig{
			SourceMaxTokens:   100,
			SourceRefillRate:  10.0,
			SourceInitBackoff: 1.0,
			SourceMaxBackoff:  300.0,
			GlobalMaxTokens:   50,
			GlobalRefillRate:  5.0,
			GlobalInitBackoff: 2.0,
			GlobalMaxBackoff:  600.0,
			BackoffMultiplier: 2.0,
			BackoffStrategy:   "exponential",
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
			ProbeURL: "https://httpbin.org/ip",
		},
		Browser: BrowserConfig{
			MaxContexts:     3,
			ContextLifetime: 10 * time.Minute,
			CookieDir:       "cookies",
			NavTimeout:      45 * time.Second,
		},
		Storage: StorageConfig{
			Type:       "file",
			OutputPath: "./output/jobs.jsonl",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		MaxAgeDays: 7,
	}
}
