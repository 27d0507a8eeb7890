package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/jobradar/jobradar/internal/browser"
	"github.com/jobradar/jobradar/internal/types"
)

// challengePatterns match against iframe src, form action, and script
// src attributes to catch the common anti-bot/CAPTCHA providers.
var challengePatterns = []string{
	"captcha", "recaptcha", "hcaptcha", "challenge", "cloudflare", "imperva", "distil", "akamai",
}

// challengeKeywords are phrases whose presence in the page title or body
// text indicates a challenge even when no known selector matched.
var challengeKeywords = []string{
	"just a moment", "checking your browser", "security check", "captcha",
	"prove you are human", "verify you are human", "robot check", "unusual traffic", "cloudflare", "access denied",
}

// continueWords identify buttons/links likely to dismiss a challenge.
var continueWords = []string{"continue", "proceed", "verify", "submit"}

// HeadlessFetcher fetches pages via a pooled headless browser context,
// detecting and attempting to clear anti-bot challenges before handing
// back the rendered HTML.
type HeadlessFetcher struct {
	pool   *browser.Pool
	cookies *browser.CookieJar
	logger *slog.Logger
}

// NewHeadlessFetcher wraps a browser.Pool and optional cookie jar.
func NewHeadlessFetcher(pool *browser.Pool, cookies *browser.CookieJar, logger *slog.Logger) *HeadlessFetcher {
	return &HeadlessFetcher{
		pool:    pool,
		cookies: cookies,
		logger:  logger.With("component", "headless_fetcher"),
	}
}

func (hf *HeadlessFetcher) Type() string { return "headless" }

func (hf *HeadlessFetcher) Close() error {
	if hf.cookies != nil {
		hf.cookies.Close()
	}
	return hf.pool.Shutdown()
}

// Fetch navigates to req's URL in the per-domain pooled context,
// detects and attempts to clear anti-bot challenges, then returns the
// rendered HTML.
func (hf *HeadlessFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()
	domain := req.Domain()

	page, err := hf.pool.Context(domain)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false, Kind: types.KindFatal}
	}

	if hf.cookies != nil {
		if saved, err := hf.cookies.Load(domain); err == nil && len(saved) > 0 {
			params := make([]*proto.NetworkCookieParam, 0, len(saved))
			for _, c := range saved {
				params = append(params, &proto.NetworkCookieParam{
					Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path,
				})
			}
			if err := page.SetCookies(params); err != nil {
				hf.logger.Warn("failed to restore cookies", "domain", domain, "error", err)
			}
		}
	}

	timeout := hf.pool.NavTimeout()
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	pageCtx := page.Context(ctx).Timeout(timeout)
	if err := pageCtx.Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true, Kind: types.KindTransient}
	}
	if err := pageCtx.WaitIdle(5 * time.Second); err != nil {
		hf.logger.Debug("networkidle wait timed out, falling back to DOM ready", "url", req.URLString(), "error", err)
		if err := pageCtx.WaitLoad(); err != nil {
			hf.logger.Debug("DOM ready wait timed out, continuing", "url", req.URLString(), "error", err)
		}
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		hf.logger.Debug("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	if hf.detectChallenge(page) {
		hf.logger.Warn("security challenge detected", "url", req.URLString())
		if !hf.handleChallenge(page) {
			hf.logger.Error("failed to clear security challenge", "url", req.URLString())
			return nil, &types.FetchError{
				URL: req.URLString(), Err: fmt.Errorf("security challenge not cleared"),
				Retryable: false, Kind: types.KindChallenge,
			}
		}
	}

	hf.simulateHumanBehavior(page)
	time.Sleep(2 * time.Second)
	hf.handleDynamicLoading(page, req.URLString())

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true, Kind: types.KindTransient}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	if hf.cookies != nil {
		if cookies, err := page.Cookies(nil); err == nil {
			hf.cookies.Save(domain, cookies)
		}
	}

	duration := time.Since(start)
	resp := types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration)

	hf.logger.Debug("headless fetch complete", "url", req.URLString(), "final_url", finalURL, "size", len(html), "duration", duration)
	return resp, nil
}

// detectChallenge reports whether the current page looks like an
// anti-bot challenge rather than real content.
func (hf *HeadlessFetcher) detectChallenge(page *rod.Page) bool {
	time.Sleep(500 * time.Millisecond)

	if hf.matchesChallengePattern(page, "iframe", "src") ||
		hf.matchesChallengePattern(page, "form", "action") ||
		hf.matchesChallengePattern(page, "script", "src") {
		return true
	}

	info, err := page.Info()
	if err == nil && info != nil {
		if kw, ok := matchChallengeKeyword(info.Title); ok {
			hf.logger.Info("challenge keyword matched in title", "keyword", kw)
			return true
		}
	}

	bodyEl, err := page.Element("body")
	if err == nil {
		text, err := bodyEl.Text()
		if err == nil {
			if kw, ok := matchChallengeKeyword(text); ok {
				hf.logger.Info("challenge keyword matched in body text", "keyword", kw)
				return true
			}
		}
	}

	return false
}

// matchChallengeKeyword reports whether text contains any challengeKeywords
// phrase, case-insensitively, and which one matched first.
func matchChallengeKeyword(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range challengeKeywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

// matchesChallengePattern reports whether any element matching tag has
// an attr value containing one of the challenge patterns.
func (hf *HeadlessFetcher) matchesChallengePattern(page *rod.Page, tag, attr string) bool {
	elements, err := page.Elements(tag)
	if err != nil {
		return false
	}
	for _, el := range elements {
		val, err := el.Attribute(attr)
		if err != nil || val == nil {
			continue
		}
		lower := strings.ToLower(*val)
		for _, pattern := range challengePatterns {
			if strings.Contains(lower, pattern) {
				hf.logger.Info("challenge pattern matched", "tag", tag, "attr", attr, "pattern", pattern)
				return true
			}
		}
	}
	return false
}

// handleChallenge attempts the three mitigation tiers in order:
// Cloudflare wait-and-recheck, click a continue/verify/submit button, or
// a final long wait-and-give-up.
func (hf *HeadlessFetcher) handleChallenge(page *rod.Page) bool {
	if has, cf, _ := page.Has(".cf-challenge"); has && cf != nil {
		hf.logger.Info("cloudflare challenge detected, waiting for automatic resolution")
		time.Sleep(10 * time.Second)
		if has, _, _ := page.Has(".cf-challenge"); !has {
			hf.logger.Info("cloudflare challenge resolved")
			return true
		}
	}

	elements, err := page.Elements(`button, input[type="submit"], a`)
	if err == nil {
		for _, el := range elements {
			text, err := el.Text()
			if err != nil {
				continue
			}
			lower := strings.ToLower(text)
			for _, word := range continueWords {
				if strings.Contains(lower, word) {
					hf.logger.Info("attempting to click continue button", "text", text)
					if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
						time.Sleep(3 * time.Second)
						if !hf.detectChallenge(page) {
							hf.logger.Info("challenge resolved by clicking continue button")
							return true
						}
					}
					break
				}
			}
		}
	}

	hf.logger.Info("waiting for challenge to resolve automatically")
	time.Sleep(15 * time.Second)
	return !hf.detectChallenge(page)
}

// simulateHumanBehavior performs small randomized mouse/scroll actions to
// blend in with real traffic before scraping content.
func (hf *HeadlessFetcher) simulateHumanBehavior(page *rod.Page) {
	moves := 2 + rand.Intn(4)
	for i := 0; i < moves; i++ {
		x, y := float64(100+rand.Intn(700)), float64(100+rand.Intn(500))
		_ = page.Mouse.MoveTo(proto.Point{X: x, Y: y})
		time.Sleep(time.Duration(100+rand.Intn(400)) * time.Millisecond)
	}

	scrollDistance := 200 + rand.Intn(600)
	_, _ = page.Eval(fmt.Sprintf("window.scrollTo(0, %d)", scrollDistance))
	time.Sleep(time.Duration(500+rand.Intn(1000)) * time.Millisecond)

	scrollUp := rand.Intn(scrollDistance/2 + 1)
	_, _ = page.Eval(fmt.Sprintf("window.scrollTo(0, %d)", scrollDistance-scrollUp))
	time.Sleep(time.Duration(300+rand.Intn(700)) * time.Millisecond)
}

// handleDynamicLoading clicks a visible "load more" affordance if one
// exists, and scrolls repeatedly for known infinite-scroll sources.
func (hf *HeadlessFetcher) handleDynamicLoading(page *rod.Page, pageURL string) {
	loadMoreSelectors := []string{
		`.load-more`, `.show-more`, `[data-testid*="load"]`,
	}
	for _, sel := range loadMoreSelectors {
		el, err := page.Element(sel)
		if err != nil {
			continue
		}
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		hf.logger.Info("clicking load more button", "selector", sel)
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			time.Sleep(3 * time.Second)
		}
		break
	}

	u, err := url.Parse(pageURL)
	if err == nil && (strings.Contains(u.Host, "indeed.com") || strings.Contains(u.Host, "linkedin.com")) {
		hf.logger.Info("handling infinite scroll", "host", u.Host)
		for i := 0; i < 3; i++ {
			_, _ = page.Eval("window.scrollTo(0, document.body.scrollHeight)")
			time.Sleep(2 * time.Second)
		}
	}
}
