// Package browser manages a small set of rotating headless-browser
// contexts (one per active domain), recreating and evicting them the
// way a stealthy scraper does to avoid a single long-lived fingerprint.
package browser

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/proxy"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.212 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.77 Safari/537.36 Edg/91.0.864.41",
}

// contextEntry is one pooled per-domain browser context.
type contextEntry struct {
	page      *rod.Page
	userAgent string
	createdAt time.Time
	lastUsed  time.Time
}

// Pool manages per-domain rod.Page contexts, evicting the
// least-recently-used one when max_contexts is exceeded, and
// recycling a context once its lifetime has elapsed.
type Pool struct {
	mu       sync.Mutex
	browser  *rod.Browser
	contexts map[string]*contextEntry

	maxContexts int
	lifetime    time.Duration
	navTimeout  time.Duration

	proxies *proxy.Pool
	logger  *slog.Logger
}

// NewPool launches a headless Chromium instance and returns a Pool ready
// to hand out per-domain contexts.
func NewPool(cfg config.BrowserConfig, proxies *proxy.Pool, logger *slog.Logger) (*Pool, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-features", "IsolateOrigins,site-per-process").
		Set("disable-site-isolation-trials").
		Set("disable-web-security").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-setuid-sandbox").
		Set("disable-accelerated-2d-canvas").
		Set("no-first-run").
		Set("no-zygote").
		Set("disable-gpu")

	if proxies != nil {
		if proxyURL := proxies.Working(proxy.DefaultWorkingAttempts); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
		}
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(launchURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	lifetime := cfg.ContextLifetime
	if lifetime <= 0 {
		lifetime = 10 * time.Minute
	}
	maxContexts := cfg.MaxContexts
	if maxContexts <= 0 {
		maxContexts = 3
	}
	navTimeout := cfg.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 45 * time.Second
	}

	logger.Info("browser pool started", "max_contexts", maxContexts, "context_lifetime", lifetime)

	return &Pool{
		browser:     b,
		contexts:    make(map[string]*contextEntry),
		maxContexts: maxContexts,
		lifetime:    lifetime,
		navTimeout:  navTimeout,
		proxies:     proxies,
		logger:      logger.With("component", "browser_pool"),
	}, nil
}

// Context returns the page for domain, creating or rotating it if it
// doesn't exist or has expired.
func (p *Pool) Context(domain string) (*rod.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.contexts[domain]; ok && time.Since(e.createdAt) <= p.lifetime {
		e.lastUsed = time.Now()
		return e.page, nil
	}

	return p.createOrRotateLocked(domain)
}

// NavTimeout returns the configured navigation timeout.
func (p *Pool) NavTimeout() time.Duration { return p.navTimeout }

func (p *Pool) createOrRotateLocked(domain string) (*rod.Page, error) {
	if old, ok := p.contexts[domain]; ok {
		if err := old.page.Close(); err != nil {
			p.logger.Error("error closing browser context", "domain", domain, "error", err)
		}
		delete(p.contexts, domain)
	}

	if len(p.contexts) >= p.maxContexts {
		var lruDomain string
		var lruTime time.Time
		for d, e := range p.contexts {
			if lruDomain == "" || e.lastUsed.Before(lruTime) {
				lruDomain, lruTime = d, e.lastUsed
			}
		}
		if lruDomain != "" {
			if err := p.contexts[lruDomain].page.Close(); err != nil {
				p.logger.Error("error closing least-recently-used browser context", "domain", lruDomain, "error", err)
			}
			delete(p.contexts, lruDomain)
		}
	}

	ua := userAgents[rand.Intn(len(userAgents))]

	page, err := p.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create browser context for %s: %w", domain, err)
	}

	stealthPage, err := stealth.Page(p.browser)
	if err == nil {
		_ = page.Close()
		page = stealthPage
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		p.logger.Warn("failed to set user agent", "domain", domain, "error", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  1024 + rand.Intn(256),
		Height: 768 + rand.Intn(132),
	}); err != nil {
		p.logger.Warn("failed to set viewport", "domain", domain, "error", err)
	}

	p.logger.Info("browser context created", "domain", domain, "user_agent", ua)

	now := time.Now()
	p.contexts[domain] = &contextEntry{
		page:      page,
		userAgent: ua,
		createdAt: now,
		lastUsed:  now,
	}
	return page, nil
}

// Shutdown closes every pooled context and the underlying browser.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for domain, e := range p.contexts {
		if err := e.page.Close(); err != nil {
			p.logger.Error("error closing browser context on shutdown", "domain", domain, "error", err)
		}
	}
	p.contexts = make(map[string]*contextEntry)

	if p.browser != nil {
		return p.browser.Close()
	}
	return nil
}
