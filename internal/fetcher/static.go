package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/proxy"
	"github.com/jobradar/jobradar/internal/types"
)

// StaticFetcher implements Fetcher over plain HTTP(S) with three
// transports (rss, json, html), all synchronous requests.
type StaticFetcher struct {
	client     *http.Client
	logger     *slog.Logger
	userAgents []string
	uaIndex    atomic.Int64
	maxBody    int64
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
}

// NewStaticFetcher creates a new static HTTP fetcher.
func NewStaticFetcher(proxies *proxy.Pool, logger *slog.Logger) (*StaticFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{},
		DisableCompression:  true, // decompression handled manually, brotli included
	}

	if proxies != nil {
		transport.Proxy = proxies.ProxyFunc()
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   30 * time.Second,
	}

	return &StaticFetcher{
		client:     client,
		logger:     logger.With("component", "static_fetcher"),
		userAgents: defaultUserAgents,
		maxBody:    20 << 20, // 20MB
	}, nil
}

func (f *StaticFetcher) Type() string { return "static" }

func (f *StaticFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Fetch dispatches on req's Meta["transport"] (rss, json, html), doing
// the actual GET once and letting each transport handle the body.
func (f *StaticFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	transport, _ := req.Meta["transport"].(string)

	switch transport {
	case "rss":
		return f.fetchRSS(ctx, req)
	case "json":
		return f.fetchJSON(ctx, req)
	default:
		return f.fetchHTML(ctx, req)
	}
}

// fetchHTML performs a plain GET and returns the raw body, for dispatch
// to a Parser Registry entry.
func (f *StaticFetcher) fetchHTML(ctx context.Context, req *types.Request) (*types.Response, error) {
	body, httpResp, duration, err := f.get(ctx, req)
	if err != nil {
		return nil, err
	}
	return types.NewResponse(req, httpResp, body, duration), nil
}

// fetchRSS fetches and parses an RSS/Atom feed, emitting one Job per
// entry with the field resolution rules described in the specification.
func (f *StaticFetcher) fetchRSS(ctx context.Context, req *types.Request) (*types.Response, error) {
	body, httpResp, duration, err := f.get(ctx, req)
	if err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("parse feed: %w", err), Retryable: false, Kind: types.KindPermanent}
	}

	jobs := make([]*types.Job, 0, len(feed.Items))
	sourceName, _ := req.Meta["source"].(string)

	for i, item := range feed.Items {
		if item.Title == "" {
			f.logger.Warn("rss entry without title skipped", "url", req.URLString(), "index", i)
			continue
		}

		company := resolveRSSCompany(item, feed)
		postedAt := parseLenientDate(firstNonEmpty(item.Published, item.Updated))

		job, jerr := types.NewJob(rssEntryID(item, i), item.Title, company, item.Link, sourceName)
		if jerr != nil {
			f.logger.Warn("rss entry produced invalid job, skipped", "url", req.URLString(), "error", jerr)
			continue
		}
		job.PostedAt = postedAt
		if item.Description != "" {
			job.Description = item.Description
		}
		jobs = append(jobs, job)
	}

	resp := types.NewResponse(req, httpResp, body, duration)
	resp.Meta["jobs"] = jobs
	return resp, nil
}

// resolveRSSCompany tries, in order: an explicit <company> extension
// element (where the feed author declares one via item.Custom),
// the entry's author, then the source feed's channel title.
func resolveRSSCompany(item *gofeed.Item, feed *gofeed.Feed) string {
	if c := strings.TrimSpace(item.Custom["company"]); c != "" {
		return c
	}
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	if feed.Title != "" {
		return feed.Title
	}
	return "unknown"
}

func rssEntryID(item *gofeed.Item, ordinal int) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	return fmt.Sprintf("%s|%d", item.Title, ordinal)
}

// jsonListKeys is the prioritized list of object keys searched for the
// entries array when the top-level JSON value is an object.
var jsonListKeys = []string{"jobs", "results", "items", "data", "listings"}

// jsonFieldKeys is, per logical field, the prioritized list of object
// keys tried in order until one yields a non-empty value.
var jsonFieldKeys = map[string][]string{
	"id":      {"id", "job_id", "uuid", "guid"},
	"title":   {"title", "job_title", "name", "position"},
	"company": {"company", "company_name", "employer", "organization"},
	"url":     {"url", "link", "job_url", "apply_url"},
	"date":    {"date", "posted_at", "published", "created_at", "date_posted"},
}

// fetchJSON fetches (or reads, if url is a local path) a JSON document
// and extracts a Job per entry using the prioritized key lists above.
func (f *StaticFetcher) fetchJSON(ctx context.Context, req *types.Request) (*types.Response, error) {
	var body []byte
	var httpResp *http.Response
	var duration time.Duration

	if isLocalPath(req.URLString()) {
		data, err := os.ReadFile(req.URLString())
		if err != nil {
			return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false, Kind: types.KindPermanent}
		}
		body = data
	} else {
		var err error
		body, httpResp, duration, err = f.get(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	entries, err := extractJSONEntries(body)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false, Kind: types.KindPermanent}
	}

	base, _ := url.Parse(req.URLString())
	sourceName, _ := req.Meta["source"].(string)
	jobs := make([]*types.Job, 0, len(entries))

	for i, entry := range entries {
		title := firstStringField(entry, jsonFieldKeys["title"])
		if title == "" {
			f.logger.Warn("json entry without title skipped", "url", req.URLString(), "index", i)
			continue
		}

		id := firstStringField(entry, jsonFieldKeys["id"])
		if id == "" {
			id = fmt.Sprintf("%s|%d", title, i)
		}
		company := firstStringField(entry, jsonFieldKeys["company"])
		if company == "" {
			company = "unknown"
		}
		rawURL := firstStringField(entry, jsonFieldKeys["url"])
		rawURL = resolveRelativeURL(base, rawURL)

		job, jerr := types.NewJob(id, title, company, rawURL, sourceName)
		if jerr != nil {
			f.logger.Warn("json entry produced invalid job, skipped", "url", req.URLString(), "error", jerr)
			continue
		}
		job.PostedAt = parseLenientDate(firstStringField(entry, jsonFieldKeys["date"]))
		jobs = append(jobs, job)
	}

	var resp *types.Response
	if httpResp != nil {
		resp = types.NewResponse(req, httpResp, body, duration)
	} else {
		resp = types.NewBrowserResponse(req, 200, body, req.URLString(), duration)
	}
	resp.Meta["jobs"] = jobs
	return resp, nil
}

func extractJSONEntries(body []byte) ([]map[string]any, error) {
	var asArray []map[string]any
	if err := json.Unmarshal(body, &asArray); err == nil {
		return asArray, nil
	}

	var asObject map[string]any
	if err := json.Unmarshal(body, &asObject); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	for _, key := range jsonListKeys {
		raw, ok := asObject[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		entries := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
		return entries, nil
	}

	return nil, fmt.Errorf("no entries array found under any of %v", jsonListKeys)
}

func firstStringField(entry map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := entry[k]; ok {
			switch val := v.(type) {
			case string:
				if val != "" {
					return val
				}
			case float64:
				return strconv.FormatFloat(val, 'f', -1, 64)
			}
		}
	}
	return ""
}

func resolveRelativeURL(base *url.URL, raw string) string {
	if raw == "" || base == nil {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.IsAbs() {
		return raw
	}
	resolved := base.ResolveReference(parsed)
	return resolved.String()
}

func isLocalPath(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	return u.Scheme != "http" && u.Scheme != "https"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseLenientDate parses a date string leniently (ISO-8601 preferred,
// RFC-822 as a fallback). On failure it returns the zero time; the raw
// string is not kept anywhere, so an unparseable date is lost.
func parseLenientDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// get performs the shared GET path: user-agent rotation, standard
// headers, 429/5xx handling, and decompression.
func (f *StaticFetcher) get(ctx context.Context, req *types.Request) ([]byte, *http.Response, time.Duration, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URLString(), nil)
	if err != nil {
		return nil, nil, 0, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false, Kind: types.KindPermanent}
	}

	httpReq.Header.Set("User-Agent", f.nextUserAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml,application/json;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, nil, duration, &types.FetchError{URL: req.URLString(), Err: err, Retryable: isRetryableError(err), Kind: types.KindTransient}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == 429 {
		retryAfter := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, nil, duration, &types.FetchError{
			URL: req.URLString(), StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP 429: rate limited: %s", strings.TrimSpace(string(body))),
			Retryable:  true, RetryAfter: retryAfter, Kind: types.KindTransient,
		}
	}
	if httpResp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, nil, duration, &types.FetchError{
			URL: req.URLString(), StatusCode: httpResp.StatusCode,
			Err: fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(body)), Retryable: true, Kind: types.KindTransient,
		}
	}
	if httpResp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, nil, duration, &types.FetchError{
			URL: req.URLString(), StatusCode: httpResp.StatusCode,
			Err: fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(body)), Retryable: false, Kind: types.KindPermanent,
		}
	}

	var reader io.Reader = io.LimitReader(httpResp.Body, f.maxBody)
	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, nil, duration, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false, Kind: types.KindPermanent}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, duration, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true, Kind: types.KindTransient}
	}

	f.logger.Debug("fetch complete", "url", req.URLString(), "status", httpResp.StatusCode, "size", len(body), "duration", duration)
	return body, httpResp, duration, nil
}

func (f *StaticFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return "jobradar/" + config.Version
	}
	idx := f.uaIndex.Add(1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

// decompressReader wraps a reader with the appropriate decompressor
// based on Content-Encoding (gzip, deflate, brotli).
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry: timeouts,
// connection resets, connection refused. Context cancellation never is.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) || errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header (seconds or HTTP-date),
// capped at two minutes.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}

// RandomDelay returns a random delay around base (±25% jitter), used to
// avoid lockstep request timing across sources.
func RandomDelay(base time.Duration) time.Duration {
	jitter := float64(base) * 0.25
	return base + time.Duration(rand.Float64()*2*jitter-jitter)
}
