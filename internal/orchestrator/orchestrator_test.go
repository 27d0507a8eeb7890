package orchestrator

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/observability"
	"github.com/jobradar/jobradar/internal/parser"
	"github.com/jobradar/jobradar/internal/ratelimit"
	"github.com/jobradar/jobradar/internal/types"
)

// stubFetcher returns a canned response or error regardless of request,
// optionally failing the first N calls to exercise the retry loop.
type stubFetcher struct {
	failCount int
	calls     int
	respond   func(req *types.Request) (*types.Response, error)
}

func (f *stubFetcher) Type() string { return "stub" }
func (f *stubFetcher) Close() error { return nil }

func (f *stubFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	f.calls++
	if f.calls <= f.failCount {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrTimeout, Kind: types.KindTransient}
	}
	return f.respond(req)
}

func newLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	return ratelimit.NewLimiter(ratelimit.DefaultSourceConfig(), ratelimit.DefaultGlobalConfig(), slog.Default())
}

func rssResponse(jobs []*types.Job) func(req *types.Request) (*types.Response, error) {
	return func(req *types.Request) (*types.Response, error) {
		resp := types.NewBrowserResponse(req, 200, []byte("<feed></feed>"), req.URLString(), 0)
		resp.Meta["jobs"] = jobs
		return resp, nil
	}
}

func mustJob(t *testing.T, id, title, company, url string) *types.Job {
	t.Helper()
	j, err := types.NewJob(id, title, company, url, "test")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return j
}

func TestRunSourceSucceedsOnFirstAttempt(t *testing.T) {
	job := mustJob(t, "1", "Customer Support Specialist", "Acme Corp", "https://example.com/1")
	static := &stubFetcher{respond: rssResponse([]*types.Job{job})}

	o := New(
		&config.Config{Filters: config.FilterConfig{MinScore: 1}},
		newLimiter(t),
		parser.NewRegistry(slog.Default()),
		static, nil,
		observability.NewMetrics(slog.Default()),
		slog.Default(),
	)

	res := o.runSource(context.Background(), config.FeedConfig{Name: "acme", URL: "https://example.com/feed", Type: "rss"})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(res.Jobs))
	}
	if res.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Attempts)
	}
}

func TestRunSourceRetriesTransientErrors(t *testing.T) {
	job := mustJob(t, "1", "Operations Analyst", "Acme Corp", "https://example.com/1")
	static := &stubFetcher{failCount: 2, respond: rssResponse([]*types.Job{job})}

	o := New(
		&config.Config{Filters: config.FilterConfig{MinScore: 1}},
		newLimiter(t),
		parser.NewRegistry(slog.Default()),
		static, nil,
		observability.NewMetrics(slog.Default()),
		slog.Default(),
	)

	res := o.runSource(context.Background(), config.FeedConfig{Name: "acme", URL: "https://example.com/feed", Type: "rss", MaxRetries: 5})
	if res.Err != nil {
		t.Fatalf("unexpected error after retries: %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Fatalf("expected success on 3rd attempt, got %d attempts", res.Attempts)
	}
}

func TestRunSourceStopsOnPermanentError(t *testing.T) {
	static := &stubFetcher{
		respond: func(req *types.Request) (*types.Response, error) {
			return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrInvalidURL, Kind: types.KindPermanent}
		},
	}

	o := New(
		&config.Config{Filters: config.FilterConfig{MinScore: 1}},
		newLimiter(t),
		parser.NewRegistry(slog.Default()),
		static, nil,
		observability.NewMetrics(slog.Default()),
		slog.Default(),
	)

	res := o.runSource(context.Background(), config.FeedConfig{Name: "acme", URL: "https://example.com/feed", Type: "rss", MaxRetries: 5})
	if res.Err == nil {
		t.Fatalf("expected permanent error to propagate")
	}
	if res.Attempts != 1 {
		t.Fatalf("expected no retries for a permanent error, got %d attempts", res.Attempts)
	}
}

func TestRunDeduplicatesAndFiltersByRelevance(t *testing.T) {
	supportJob := mustJob(t, "1", "Customer Support Specialist", "Acme Corp", "https://example.com/1")
	dupJob := mustJob(t, "2", "Customer Support Specialist!!", "Acme Corp", "https://example.com/2")
	irrelevantJob := mustJob(t, "3", "Warehouse Forklift Driver", "Acme Corp", "https://example.com/3")

	static := &stubFetcher{respond: rssResponse([]*types.Job{supportJob, dupJob, irrelevantJob})}

	o := New(
		&config.Config{
			Filters: config.FilterConfig{MinScore: 1},
			Feeds:   []config.FeedConfig{{Name: "acme", URL: "https://example.com/feed", Type: "rss"}},
		},
		newLimiter(t),
		parser.NewRegistry(slog.Default()),
		static, nil,
		observability.NewMetrics(slog.Default()),
		slog.Default(),
	)

	jobs, results, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || results[0].Source != "acme" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected dedup+relevance to leave 1 job, got %d: %+v", len(jobs), jobs)
	}
	if jobs[0].ID != "1" {
		t.Fatalf("expected first occurrence kept, got id %q", jobs[0].ID)
	}
}

func TestDispatchReturnsFatalWhenHeadlessTransportMissing(t *testing.T) {
	o := New(
		&config.Config{Filters: config.FilterConfig{MinScore: 1}},
		newLimiter(t),
		parser.NewRegistry(slog.Default()),
		&stubFetcher{respond: rssResponse(nil)}, nil,
		observability.NewMetrics(slog.Default()),
		slog.Default(),
	)

	_, err := o.dispatch(context.Background(), config.FeedConfig{Name: "js-heavy", URL: "https://example.com", Type: "headless"})
	if err == nil {
		t.Fatalf("expected error when headless transport is unset")
	}
}
