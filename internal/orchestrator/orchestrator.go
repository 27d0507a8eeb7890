// Package orchestrator drives one ingestion pass across every
// configured source: rate-limiter gated fetch dispatch with bounded
// retry, parser dispatch for transports that don't already produce
// jobs, and the fuzzy-dedup/smart-match stages before storage.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/dedup"
	"github.com/jobradar/jobradar/internal/fetcher"
	"github.com/jobradar/jobradar/internal/matcher"
	"github.com/jobradar/jobradar/internal/observability"
	"github.com/jobradar/jobradar/internal/parser"
	"github.com/jobradar/jobradar/internal/ratelimit"
	"github.com/jobradar/jobradar/internal/types"
)

// DefaultMaxConcurrentSources bounds how many sources the Orchestrator
// dispatches to at once, independent of each source's own retry loop.
const DefaultMaxConcurrentSources = 8

// SourceState is one source's runtime health, kept outside FeedConfig
// since it does not persist across process restarts.
type SourceState struct {
	ErrorCount  int
	LastError   error
	LastFetched time.Time
}

// SourceResult is one source's outcome from a single ingestion pass.
type SourceResult struct {
	Source   string
	Jobs     []*types.Job
	Err      error
	Attempts int
}

// Orchestrator runs the bounded-retry dispatch loop described in the
// component design: per source, acquire a rate-limiter token, dispatch
// to the transport the source's Type selects, and retry under the
// error Kind's policy until max_retries or a non-retryable outcome.
type Orchestrator struct {
	cfg                  *config.Config
	limiter              *ratelimit.Limiter
	registry             *parser.Registry
	static               fetcher.Fetcher
	headless             fetcher.Fetcher
	seen                 *SeenURLs
	dedup                *dedup.Deduplicator
	matcher              *matcher.Matcher
	metrics              *observability.Metrics
	logger               *slog.Logger
	maxConcurrentSources int

	mu     sync.Mutex
	states map[string]*SourceState
}

// New builds an Orchestrator. headless may be nil if no source in cfg
// requires a browser transport.
func New(
	cfg *config.Config,
	limiter *ratelimit.Limiter,
	registry *parser.Registry,
	static fetcher.Fetcher,
	headless fetcher.Fetcher,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:                  cfg,
		limiter:              limiter,
		registry:             registry,
		static:               static,
		headless:             headless,
		seen:                 NewSeenURLs(1024),
		dedup:                dedup.NewDeduplicator(dedup.DefaultThreshold),
		matcher:              matcher.New(cfg.Filters.MinScore),
		metrics:              metrics,
		logger:               logger.With("component", "orchestrator"),
		maxConcurrentSources: DefaultMaxConcurrentSources,
		states:               make(map[string]*SourceState),
	}
}

// Run dispatches every configured feed with bounded cross-source
// concurrency, then runs the combined job batch through the
// deduplicator and smart matcher before returning it for storage.
//
// Requests within one source are serialized: each source has its own
// rate-limiter bucket and its own sequential retry loop. The
// Orchestrator only bounds how many distinct sources run at once; two
// sources that share a domain are not serialized against each other.
func (o *Orchestrator) Run(ctx context.Context) ([]*types.Job, []SourceResult, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrentSources)

	results := make([]SourceResult, len(o.cfg.Feeds))
	var jobsMu sync.Mutex
	var allJobs []*types.Job

	for i, feed := range o.cfg.Feeds {
		i, feed := i, feed
		g.Go(func() error {
			res := o.runSource(ctx, feed)
			results[i] = res

			if len(res.Jobs) > 0 {
				jobsMu.Lock()
				allJobs = append(allJobs, res.Jobs...)
				jobsMu.Unlock()
			}
			return nil // per-source failures never abort the batch
		})
	}

	if err := g.Wait(); err != nil {
		return nil, results, fmt.Errorf("running sources: %w", err)
	}

	matched := make([]*types.Job, 0, len(allJobs))
	for _, job := range allJobs {
		if o.matcher.IsRelevant(job) {
			matched = append(matched, job)
		}
	}

	deduped := o.dedup.Deduplicate(matched)
	if dropped := len(matched) - len(deduped); dropped > 0 && o.metrics != nil {
		o.metrics.AddDuplicatesRemoved(int64(dropped))
	}

	fresh := make([]*types.Job, 0, len(deduped))
	maxAge := o.maxAge()
	for _, job := range deduped {
		if job.IsExpired(maxAge) {
			if o.metrics != nil {
				o.metrics.AddExpiredJobsRemoved(1)
			}
			continue
		}
		fresh = append(fresh, job)
	}

	return fresh, results, nil
}

func (o *Orchestrator) maxAge() time.Duration {
	if o.cfg.MaxAgeDays <= 0 {
		return types.DefaultFreshnessHorizon
	}
	return time.Duration(o.cfg.MaxAgeDays) * 24 * time.Hour
}

// runSource executes the bounded-retry loop for one feed:
//
//	while attempts < max_retries:
//	    rate_limiter.acquire(source)
//	    result = fetch(source)
//	    on success: return result
//	    on transient/rate-limited: record error, retry
//	    on permanent/challenge: record error, return what we have
func (o *Orchestrator) runSource(ctx context.Context, feed config.FeedConfig) SourceResult {
	maxRetries := feed.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		waited, err := o.limiter.Acquire(ctx, feed.Name, feedBucketOverride(feed))
		if err != nil {
			return SourceResult{Source: feed.Name, Err: err, Attempts: attempt + 1}
		}
		if waited && o.metrics != nil {
			o.metrics.IncRateLimitHits(feed.Name)
		}

		start := time.Now()
		jobs, err := o.dispatch(ctx, feed)
		if o.metrics != nil {
			o.metrics.ObserveResponseTime(time.Since(start))
		}

		o.recordState(feed.Name, err)

		if err == nil {
			o.limiter.RecordSuccess(feed.Name)
			if o.metrics != nil {
				o.metrics.IncJobsFetched(feed.Name, int64(len(jobs)))
			}
			return SourceResult{Source: feed.Name, Jobs: jobs, Attempts: attempt + 1}
		}

		lastErr = err
		kind := fetchErrorKind(err)
		if o.metrics != nil {
			o.metrics.IncFetchErrors(feed.Name, kind)
		}
		o.limiter.RecordError(feed.Name)

		if kind != types.KindTransient {
			o.logger.Warn("source fetch failed, not retrying",
				"source", feed.Name, "kind", kind, "error", err)
			return SourceResult{Source: feed.Name, Err: err, Attempts: attempt + 1}
		}

		o.logger.Info("transient fetch error, retrying",
			"source", feed.Name, "attempt", attempt+1, "max_retries", maxRetries, "error", err)
	}

	return SourceResult{Source: feed.Name, Err: lastErr, Attempts: maxRetries}
}

// dispatch fetches feed's URL over the transport its Type selects,
// returning jobs directly for rss/json (the StaticFetcher's own
// extraction) or running the Parser Registry over the raw body for
// html/headless.
func (o *Orchestrator) dispatch(ctx context.Context, feed config.FeedConfig) ([]*types.Job, error) {
	req, err := types.NewRequest(feed.URL)
	if err != nil {
		return nil, &types.FetchError{URL: feed.URL, Err: err, Kind: types.KindFatal}
	}
	req.Meta["transport"] = feed.Type
	req.Meta["source"] = feed.Name
	for k, v := range feed.Headers {
		req.Headers.Set(k, v)
	}

	transport := o.static
	if feed.Type == "headless" {
		transport = o.headless
	}
	if transport == nil {
		return nil, &types.FetchError{URL: feed.URL, Err: types.ErrNoFetcher, Kind: types.KindFatal}
	}

	resp, err := transport.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if jobs, ok := resp.Meta["jobs"].([]*types.Job); ok {
		return o.filterSeen(jobs), nil
	}

	jobs := o.registry.Parse(resp, feed)
	return o.filterSeen(jobs), nil
}

// filterSeen drops jobs whose URL has already been observed this run,
// so a posting listed on two different pages of the same feed is only
// emitted once.
func (o *Orchestrator) filterSeen(jobs []*types.Job) []*types.Job {
	kept := jobs[:0]
	for _, job := range jobs {
		if job.URL == "" {
			kept = append(kept, job)
			continue
		}
		if o.seen.IsSeen(job.URL) {
			continue
		}
		o.seen.MarkSeen(job.URL)
		kept = append(kept, job)
	}
	return kept
}

func (o *Orchestrator) recordState(source string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, ok := o.states[source]
	if !ok {
		state = &SourceState{}
		o.states[source] = state
	}
	state.LastFetched = time.Now()
	if err != nil {
		state.ErrorCount++
		state.LastError = err
	}
}

// State returns a copy of source's last recorded runtime state.
func (o *Orchestrator) State(source string) (SourceState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.states[source]
	if !ok {
		return SourceState{}, false
	}
	return *s, true
}

func feedBucketOverride(feed config.FeedConfig) *ratelimit.BucketConfig {
	if feed.RateLimit == nil {
		return nil
	}
	cfg := ratelimit.DefaultSourceConfig()
	if feed.RateLimit.RequestsPerMinute > 0 {
		cfg.RefillRate = float64(feed.RateLimit.RequestsPerMinute) / 60.0
		cfg.MaxTokens = feed.RateLimit.RequestsPerMinute
	}
	if feed.RateLimit.RetryAfterSeconds > 0 {
		cfg.InitialBackoff = time.Duration(feed.RateLimit.RetryAfterSeconds) * time.Second
	}
	return &cfg
}

// fetchErrorKind extracts the Kind carried by a FetchError, defaulting
// to KindFatal for any error the fetcher layer didn't classify — an
// unclassified error is a programming bug, not a transient condition
// safe to retry silently.
func fetchErrorKind(err error) types.Kind {
	var fe *types.FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return types.KindFatal
}
