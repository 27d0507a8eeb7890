// Package observability exposes the ingestion pipeline's operational
// counters over a Prometheus text-format HTTP endpoint.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobradar/jobradar/internal/types"
)

// labelCounter is one atomic counter tracked per distinct label value
// (source, or source+kind).
type labelCounter struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Int64
}

func newLabelCounter() *labelCounter {
	return &labelCounter{counts: make(map[string]*atomic.Int64)}
}

func (lc *labelCounter) add(key string, n int64) {
	lc.mu.RLock()
	c, ok := lc.counts[key]
	lc.mu.RUnlock()
	if !ok {
		lc.mu.Lock()
		c, ok = lc.counts[key]
		if !ok {
			c = &atomic.Int64{}
			lc.counts[key] = c
		}
		lc.mu.Unlock()
	}
	c.Add(n)
}

func (lc *labelCounter) snapshot() map[string]int64 {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	out := make(map[string]int64, len(lc.counts))
	for k, c := range lc.counts {
		out[k] = c.Load()
	}
	return out
}

// Metrics tracks the five spec'd counters plus response-time and uptime
// gauges for the ingestion pipeline. All counts are additive; Metrics
// has no reset operation.
type Metrics struct {
	jobsFetched   *labelCounter // key: source
	fetchErrors   *labelCounter // key: source|kind
	rateLimitHits *labelCounter // key: source

	duplicatesRemoved  atomic.Int64
	expiredJobsRemoved atomic.Int64

	responseTimeCount atomic.Int64
	responseTimeSumNs atomic.Int64
	responseTimeLast  atomic.Int64 // nanoseconds

	startTime time.Time
	logger    *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		jobsFetched:   newLabelCounter(),
		fetchErrors:   newLabelCounter(),
		rateLimitHits: newLabelCounter(),
		startTime:     time.Now(),
		logger:        logger.With("component", "metrics"),
	}
}

// IncJobsFetched records n jobs successfully emitted for source.
func (m *Metrics) IncJobsFetched(source string, n int64) {
	m.jobsFetched.add(source, n)
}

// IncFetchErrors records one fetch failure of the given kind for source.
func (m *Metrics) IncFetchErrors(source string, kind types.Kind) {
	m.fetchErrors.add(source+"|"+string(kind), 1)
}

// IncRateLimitHits records one rate-limiter wait for source.
func (m *Metrics) IncRateLimitHits(source string) {
	m.rateLimitHits.add(source, 1)
}

// AddDuplicatesRemoved records n postings collapsed by the deduplicator.
func (m *Metrics) AddDuplicatesRemoved(n int64) {
	m.duplicatesRemoved.Add(n)
}

// AddExpiredJobsRemoved records n postings dropped for exceeding the
// freshness horizon.
func (m *Metrics) AddExpiredJobsRemoved(n int64) {
	m.expiredJobsRemoved.Add(n)
}

// ObserveResponseTime records one fetch's round-trip latency.
func (m *Metrics) ObserveResponseTime(d time.Duration) {
	m.responseTimeCount.Add(1)
	m.responseTimeSumNs.Add(d.Nanoseconds())
	m.responseTimeLast.Store(d.Nanoseconds())
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeLabeled(w, "jobradar_jobs_fetched_total", "Jobs successfully fetched, by source", "source", m.jobsFetched.snapshot())
	writeFetchErrors(w, m.fetchErrors.snapshot())
	writeLabeled(w, "jobradar_rate_limit_hits_total", "Rate limiter waits incurred, by source", "source", m.rateLimitHits.snapshot())

	fmt.Fprintf(w, "# HELP jobradar_duplicates_removed_total Postings collapsed by the deduplicator\n")
	fmt.Fprintf(w, "# TYPE jobradar_duplicates_removed_total counter\n")
	fmt.Fprintf(w, "jobradar_duplicates_removed_total %d\n", m.duplicatesRemoved.Load())

	fmt.Fprintf(w, "# HELP jobradar_expired_jobs_removed_total Postings dropped for exceeding the freshness horizon\n")
	fmt.Fprintf(w, "# TYPE jobradar_expired_jobs_removed_total counter\n")
	fmt.Fprintf(w, "jobradar_expired_jobs_removed_total %d\n", m.expiredJobsRemoved.Load())

	count := m.responseTimeCount.Load()
	var avgMs float64
	if count > 0 {
		avgMs = float64(m.responseTimeSumNs.Load()) / float64(count) / float64(time.Millisecond)
	}
	fmt.Fprintf(w, "# HELP jobradar_response_time_avg_ms Average fetch response time in milliseconds\n")
	fmt.Fprintf(w, "# TYPE jobradar_response_time_avg_ms gauge\n")
	fmt.Fprintf(w, "jobradar_response_time_avg_ms %f\n", avgMs)
	fmt.Fprintf(w, "# HELP jobradar_response_time_last_ms Most recent fetch response time in milliseconds\n")
	fmt.Fprintf(w, "# TYPE jobradar_response_time_last_ms gauge\n")
	fmt.Fprintf(w, "jobradar_response_time_last_ms %f\n", float64(m.responseTimeLast.Load())/float64(time.Millisecond))

	fmt.Fprintf(w, "# HELP jobradar_uptime_seconds Seconds since this process started\n")
	fmt.Fprintf(w, "# TYPE jobradar_uptime_seconds gauge\n")
	fmt.Fprintf(w, "jobradar_uptime_seconds %f\n", time.Since(m.startTime).Seconds())
}

func writeLabeled(w http.ResponseWriter, name, help, label string, values map[string]int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	for _, key := range sortedKeys(values) {
		fmt.Fprintf(w, "%s{%s=%q} %d\n", name, label, key, values[key])
	}
}

// writeFetchErrors unpacks the "source|kind" composite key into two
// Prometheus labels.
func writeFetchErrors(w http.ResponseWriter, values map[string]int64) {
	fmt.Fprintf(w, "# HELP jobradar_fetch_errors_total Fetch failures, by source and error kind\n")
	fmt.Fprintf(w, "# TYPE jobradar_fetch_errors_total counter\n")
	for _, key := range sortedKeys(values) {
		source, kind, _ := strings.Cut(key, "|")
		fmt.Fprintf(w, "jobradar_fetch_errors_total{source=%q,kind=%q} %d\n", source, kind, values[key])
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a flat map, for logging a run summary
// without scraping the HTTP endpoint.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"jobs_fetched":         m.jobsFetched.snapshot(),
		"fetch_errors":         m.fetchErrors.snapshot(),
		"rate_limit_hits":      m.rateLimitHits.snapshot(),
		"duplicates_removed":   m.duplicatesRemoved.Load(),
		"expired_jobs_removed": m.expiredJobsRemoved.Load(),
		"uptime":               time.Since(m.startTime).String(),
	}
}
