package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// No command-line flags are read here.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("JOBRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("jobradar")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".jobradar"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := loadProxiesFromEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// loadProxiesFromEnv folds PROXY_LIST / PROXY_LIST_PATH / ENABLE_PROXIES
// into the config, on top of whatever the YAML file already set. Env vars
// here follow the project's Python roots rather than the JOBRADAR_ prefix,
// since operators copy proxy lists straight from existing deployments.
func loadProxiesFromEnv(cfg *Config) error {
	if v := os.Getenv("ENABLE_PROXIES"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENABLE_PROXIES must be a bool: %w", err)
		}
		cfg.Proxy.Enabled = enabled
	}

	if v := os.Getenv("PROXY_LIST"); v != "" {
		for _, entry := range strings.Split(v, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.Proxy.URLs = append(cfg.Proxy.URLs, entry)
			}
		}
	}

	if path := os.Getenv("PROXY_LIST_PATH"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open PROXY_LIST_PATH: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			cfg.Proxy.URLs = append(cfg.Proxy.URLs, line)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read PROXY_LIST_PATH: %w", err)
		}
	}

	if v := os.Getenv("PROXY_USERNAME"); v != "" {
		cfg.Proxy.Username = v
	}
	if v := os.Getenv("PROXY_PASSWORD"); v != "" {
		cfg.Proxy.Password = v
	}

	return nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("filters.min_score", cfg.Filters.MinScore)

	v.SetDefault("rate_limit.source_max_tokens", cfg.RateLimit.SourceMaxTokens)
	v.SetDefault("rate_limit.source_refill_rate", cfg.RateLimit.SourceRefillRate)
	v.SetDefault("rate_limit.source_initial_backoff", cfg.RateLimit.SourceInitBackoff)
	v.SetDefault("rate_limit.source_max_backoff", cfg.RateLimit.SourceMaxBackoff)
	v.SetDefault("rate_limit.global_max_tokens", cfg.RateLimit.GlobalMaxTokens)
	v.SetDefault("rate_limit.global_refill_rate", cfg.RateLimit.GlobalRefillRate)
	v.SetDefault("rate_limit.global_initial_backoff", cfg.RateLimit.GlobalInitBackoff)
	v.SetDefault("rate_limit.global_max_backoff", cfg.RateLimit.GlobalMaxBackoff)
	v.SetDefault("rate_limit.backoff_multiplier", cfg.RateLimit.BackoffMultiplier)
	v.SetDefault("rate_limit.backoff_strategy", cfg.RateLimit.BackoffStrategy)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)
	v.SetDefault("proxy.probe_url", cfg.Proxy.ProbeURL)

	v.SetDefault("browser.max_contexts", cfg.Browser.MaxContexts)
	v.SetDefault("browser.context_lifetime", cfg.Browser.ContextLifetime)
	v.SetDefault("browser.cookie_dir", cfg.Browser.CookieDir)
	v.SetDefault("browser.nav_timeout", cfg.Browser.NavTimeout)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("max_age_days", cfg.MaxAgeDays)
}
