package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobradar/jobradar/internal/browser"
	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/fetcher"
	"github.com/jobradar/jobradar/internal/observability"
	"github.com/jobradar/jobradar/internal/orchestrator"
	"github.com/jobradar/jobradar/internal/parser"
	"github.com/jobradar/jobradar/internal/parser/sites"
	"github.com/jobradar/jobradar/internal/proxy"
	"github.com/jobradar/jobradar/internal/ratelimit"
	"github.com/jobradar/jobradar/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jobradar",
		Short: "jobradar — multi-source job posting aggregator",
		Long: `jobradar ingests job postings from configured RSS, JSON, HTML, and
headless-browser sources, normalizes them into a common Job shape,
deduplicates near-identical postings, and keeps only postings that
match the Smart Matcher's interest taxonomy.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateConfigCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion pass across all configured sources",
		RunE:  runIngestion,
	}
}

func runIngestion(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	orch, metrics, closeFn, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}
	defer closeFn()

	store, err := buildStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("build storage: %w", err)
	}
	defer store.Close()

	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	logger.Info("starting ingestion pass", "feeds", len(cfg.Feeds))
	start := time.Now()

	jobs, results, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("run orchestrator: %w", err)
	}

	if err := store.Store(jobs); err != nil {
		logger.Error("storage failed", "error", err)
	}

	elapsed := time.Since(start)
	var failures int
	for _, r := range results {
		if r.Err != nil {
			failures++
			logger.Warn("source failed", "source", r.Source, "attempts", r.Attempts, "error", r.Err)
		}
	}

	logger.Info("ingestion pass complete",
		"elapsed", elapsed,
		"sources", len(results),
		"source_failures", failures,
		"jobs_kept", len(jobs),
	)

	fmt.Printf("\nIngestion complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Sources:  %d run, %d failed\n", len(results), failures)
	fmt.Printf("  Jobs:     %d kept after dedup and matching\n", len(jobs))
	fmt.Printf("  Output:   %s\n", storageDestination(cfg))

	return nil
}

// validateConfigCmd creates the "validate-config" subcommand.
func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration file without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Printf("config valid: %d feeds, storage=%s, min_score=%d\n",
				len(cfg.Feeds), cfg.Storage.Type, cfg.Filters.MinScore)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jobradar %s\n", config.Version)
		},
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// buildOrchestrator wires the rate limiter, proxy pool, fetchers, and
// parser registry for cfg. The returned close function releases the
// proxy-backed fetchers and, if constructed, the browser pool.
func buildOrchestrator(cfg *config.Config, logger *slog.Logger) (*orchestrator.Orchestrator, *observability.Metrics, func(), error) {
	proxyPool := proxy.NewPool(cfg.Proxy, logger)
	if cfg.Proxy.Enabled {
		proxyPool.HealthCheck()
	}

	staticFetcher, err := fetcher.NewStaticFetcher(proxyPool, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create static fetcher: %w", err)
	}

	var headlessFetcher fetcher.Fetcher
	if needsHeadless(cfg.Feeds) {
		pool, err := browser.NewPool(cfg.Browser, proxyPool, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create browser pool: %w", err)
		}
		cookies := browser.NewCookieJar(cfg.Browser.CookieDir, logger)
		headlessFetcher = fetcher.NewHeadlessFetcher(pool, cookies, logger)
	}

	registry := parser.NewRegistry(logger)
	registry.Register("indeed", sites.NewIndeedParser(logger), nil)
	registry.Register("remoteok", sites.NewRemoteOKParser(logger), nil)
	registry.Register("snaphunt", sites.NewSnaphuntParser(logger), nil)

	limiter := ratelimit.NewLimiter(sourceBucketConfig(cfg), globalBucketConfig(cfg), logger)
	metrics := observability.NewMetrics(logger)

	orch := orchestrator.New(cfg, limiter, registry, staticFetcher, headlessFetcher, metrics, logger)

	closeFn := func() {
		staticFetcher.Close()
		if headlessFetcher != nil {
			headlessFetcher.Close()
		}
	}

	return orch, metrics, closeFn, nil
}

func needsHeadless(feeds []config.FeedConfig) bool {
	for _, f := range feeds {
		if f.Type == "headless" {
			return true
		}
	}
	return false
}

func sourceBucketConfig(cfg *config.Config) ratelimit.BucketConfig {
	return ratelimit.BucketConfig{
		MaxTokens:         cfg.RateLimit.SourceMaxTokens,
		RefillRate:        cfg.RateLimit.SourceRefillRate,
		InitialBackoff:    durationFromSeconds(cfg.RateLimit.SourceInitBackoff),
		MaxBackoff:        durationFromSeconds(cfg.RateLimit.SourceMaxBackoff),
		BackoffStrategy:   ratelimit.Strategy(cfg.RateLimit.BackoffStrategy),
		BackoffMultiplier: cfg.RateLimit.BackoffMultiplier,
	}
}

func globalBucketConfig(cfg *config.Config) ratelimit.BucketConfig {
	return ratelimit.BucketConfig{
		MaxTokens:         cfg.RateLimit.GlobalMaxTokens,
		RefillRate:        cfg.RateLimit.GlobalRefillRate,
		InitialBackoff:    durationFromSeconds(cfg.RateLimit.GlobalInitBackoff),
		MaxBackoff:        durationFromSeconds(cfg.RateLimit.GlobalMaxBackoff),
		BackoffStrategy:   ratelimit.Strategy(cfg.RateLimit.BackoffStrategy),
		BackoffMultiplier: cfg.RateLimit.BackoffMultiplier,
	}
}

func durationFromSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func buildStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "mongodb":
		return storage.NewMongoStorage(cfg.Storage.URI, cfg.Storage.Database, cfg.Storage.Collection, logger)
	default:
		return storage.NewFileStorage(cfg.Storage.OutputPath, logger)
	}
}

func storageDestination(cfg *config.Config) string {
	if cfg.Storage.Type == "mongodb" {
		return fmt.Sprintf("mongodb %s/%s", cfg.Storage.Database, cfg.Storage.Collection)
	}
	return cfg.Storage.OutputPath
}
