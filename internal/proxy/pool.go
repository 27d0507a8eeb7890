// Package proxy manages rotation and health checking of outbound HTTP
// proxies used by the static fetcher and the browser pool.
package proxy

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobradar/jobradar/internal/config"
)

// Pool handles proxy rotation and health checking. A disabled or empty
// pool falls back to a direct connection, per the spec's no-op semantics.
type Pool struct {
	enabled  bool
	proxies  []*entry
	rotation string
	probeURL string
	index    atomic.Int64
	mu       sync.RWMutex
	logger   *slog.Logger
}

type entry struct {
	URL     *url.URL
	Healthy bool
	LastErr error
	LastUse time.Time
	mu      sync.Mutex
}

// NewPool creates a Pool from configuration. Username/password, if set,
// are folded into each proxy URL's userinfo.
func NewPool(cfg config.ProxyConfig, logger *slog.Logger) *Pool {
	p := &Pool{
		enabled:  cfg.Enabled,
		proxies:  make([]*entry, 0, len(cfg.URLs)),
		rotation: cfg.Rotation,
		probeURL: cfg.ProbeURL,
		logger:   logger.With("component", "proxy_pool"),
	}

	for _, rawURL := range cfg.URLs {
		u, err := url.Parse(rawURL)
		if err != nil {
			logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		if cfg.Username != "" {
			u.User = url.UserPassword(cfg.Username, cfg.Password)
		}
		p.proxies = append(p.proxies, &entry{URL: u, Healthy: true})
	}

	logger.Info("proxy pool initialized", "count", len(p.proxies), "enabled", p.enabled, "rotation", cfg.Rotation)
	return p
}

// ProxyFunc returns an http.Transport-compatible proxy function. When the
// pool is disabled or exhausted, it returns (nil, nil) — direct connection.
func (p *Pool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		return p.Next(), nil
	}
}

// Next returns the next proxy URL per the rotation strategy, or nil for a
// direct connection if proxying is disabled or no healthy proxy remains.
func (p *Pool) Next() *url.URL {
	if !p.enabled {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	healthy := p.healthyEntries()
	if len(healthy) == 0 {
		return nil
	}

	var chosen *entry
	switch p.rotation {
	case "random":
		chosen = healthy[rand.Intn(len(healthy))]
	default: // round_robin
		idx := p.index.Add(1) % int64(len(healthy))
		chosen = healthy[idx]
	}

	chosen.mu.Lock()
	chosen.LastUse = time.Now()
	chosen.mu.Unlock()
	return chosen.URL
}

// MarkFailed marks a proxy as unhealthy.
func (p *Pool) MarkFailed(proxyURL *url.URL, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.proxies {
		if e.URL.String() == proxyURL.String() {
			e.mu.Lock()
			e.Healthy = false
			e.LastErr = err
			e.mu.Unlock()
			p.logger.Warn("proxy marked unhealthy", "proxy", proxyURL.Host, "error", err)
			break
		}
	}
}

// MarkHealthy marks a proxy as healthy again.
func (p *Pool) MarkHealthy(proxyURL *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.proxies {
		if e.URL.String() == proxyURL.String() {
			e.mu.Lock()
			e.Healthy = true
			e.LastErr = nil
			e.mu.Unlock()
			break
		}
	}
}

// DefaultWorkingAttempts bounds how many candidates Working() probes
// before giving up.
const DefaultWorkingAttempts = 3

// Test probes proxyURL against the pool's probe URL, succeeding iff the
// response is 2xx within a short timeout.
func (p *Pool) Test(proxyURL *url.URL) bool {
	probe := p.probeURL
	if probe == "" {
		probe = "https://httpbin.org/ip"
	}

	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}

	resp, err := client.Get(probe)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Working walks next() up to maxAttempts times, testing each candidate,
// and returns the first one that passes Test. It returns nil if every
// attempt fails or the pool is disabled/empty. Proxies that fail the
// probe are marked unhealthy so Next() skips them afterward.
func (p *Pool) Working(maxAttempts int) *url.URL {
	if !p.enabled {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultWorkingAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := p.Next()
		if candidate == nil {
			return nil
		}
		if p.Test(candidate) {
			p.MarkHealthy(candidate)
			return candidate
		}
		p.MarkFailed(candidate, fmt.Errorf("probe failed"))
	}
	return nil
}

// HealthCheck pings all proxies against probeURL and updates their status.
func (p *Pool) HealthCheck() {
	if !p.enabled {
		return
	}

	p.mu.RLock()
	entries := make([]*entry, len(p.proxies))
	copy(entries, p.proxies)
	p.mu.RUnlock()

	probe := p.probeURL
	if probe == "" {
		probe = "https://httpbin.org/ip"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for _, e := range entries {
		client.Transport = &http.Transport{Proxy: http.ProxyURL(e.URL)}
		if _, err := client.Get(probe); err != nil {
			p.MarkFailed(e.URL, err)
		} else {
			p.MarkHealthy(e.URL)
		}
	}
}

// Count returns the total number of configured proxies.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.proxies)
}

// HealthyCount returns the number of currently healthy proxies.
func (p *Pool) HealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.healthyEntries())
}

// AddProxy adds a new proxy URL at runtime.
func (p *Pool) AddProxy(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.proxies = append(p.proxies, &entry{URL: u, Healthy: true})
	return nil
}

func (p *Pool) healthyEntries() []*entry {
	healthy := make([]*entry, 0, len(p.proxies))
	for _, e := range p.proxies {
		e.mu.Lock()
		if e.Healthy {
			healthy = append(healthy, e)
		}
		e.mu.Unlock()
	}
	return healthy
}
