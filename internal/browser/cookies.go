package browser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// cookieSaveRequest asks the cookie worker to persist one domain's
// cookies. Save is fire-and-forget from the caller's perspective — the
// worker drops a request rather than block the fetch path if it's busy.
type cookieSaveRequest struct {
	domain  string
	cookies []*proto.NetworkCookie
}

// CookieJar serializes cookie persistence through a single worker
// goroutine, so concurrent fetches across domains never contend on the
// same file lock. A full queue drops the request instead of blocking —
// cookie persistence is best-effort, never load-bearing for a fetch.
type CookieJar struct {
	dir    string
	queue  chan cookieSaveRequest
	done   chan struct{}
	logger *slog.Logger
}

// NewCookieJar starts the serializing save worker, writing to dir.
func NewCookieJar(dir string, logger *slog.Logger) *CookieJar {
	if dir == "" {
		dir = "cookies"
	}
	j := &CookieJar{
		dir:    dir,
		queue:  make(chan cookieSaveRequest, 32),
		done:   make(chan struct{}),
		logger: logger.With("component", "cookie_jar"),
	}
	go j.run()
	return j
}

func (j *CookieJar) run() {
	defer close(j.done)
	for req := range j.queue {
		if err := j.writeCookies(req.domain, req.cookies); err != nil {
			j.logger.Warn("failed to save cookies", "domain", req.domain, "error", err)
		}
	}
}

func (j *CookieJar) writeCookies(domain string, cookies []*proto.NetworkCookie) error {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}

	path := filepath.Join(j.dir, domain+".json")
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}

	j.logger.Info("saved cookies", "domain", domain, "count", len(cookies))
	return nil
}

// Save enqueues domain's cookies for persistence. It never blocks: if the
// worker is behind, the save is skipped and logged at debug level,
// mirroring the original's "don't let cookie persistence stall a fetch"
// intent but without the lock-acquire-with-timeout hack.
func (j *CookieJar) Save(domain string, cookies []*proto.NetworkCookie) {
	select {
	case j.queue <- cookieSaveRequest{domain: domain, cookies: cookies}:
	default:
		j.logger.Debug("cookie save queue full, dropping", "domain", domain)
	}
}

// Load reads a previously saved cookie set for domain, if any.
func (j *CookieJar) Load(domain string) ([]*proto.NetworkCookie, error) {
	path := filepath.Join(j.dir, domain+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("unmarshal cookies: %w", err)
	}
	return cookies, nil
}

// Close stops accepting new saves and waits up to 1s for the in-flight
// queue to drain.
func (j *CookieJar) Close() {
	close(j.queue)
	select {
	case <-j.done:
	case <-time.After(1 * time.Second):
		j.logger.Warn("cookie jar shutdown timed out waiting for pending saves")
	}
}
