package proxy

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jobradar/jobradar/internal/config"
)

var errProbeFailed = errors.New("probe failed")

func TestPoolDisabledNextReturnsNil(t *testing.T) {
	p := NewPool(config.ProxyConfig{Enabled: false, URLs: []string{"http://10.0.0.1:8080"}}, slog.Default())
	if got := p.Next(); got != nil {
		t.Errorf("expected nil from a disabled pool, got %v", got)
	}
}

func TestPoolNextSkipsUnhealthyEntries(t *testing.T) {
	p := NewPool(config.ProxyConfig{
		Enabled:  true,
		Rotation: "round_robin",
		URLs:     []string{"http://p1.invalid:8080", "http://p2.invalid:8080"},
	}, slog.Default())

	bad, _ := url.Parse("http://p1.invalid:8080")
	p.MarkFailed(bad, errProbeFailed)

	for i := 0; i < 5; i++ {
		got := p.Next()
		if got == nil {
			t.Fatal("expected a healthy proxy, got nil")
		}
		if got.String() == bad.String() {
			t.Fatalf("expected unhealthy proxy %s to be skipped", bad)
		}
	}
}

func TestPoolHealthyCountReflectsFailures(t *testing.T) {
	p := NewPool(config.ProxyConfig{
		Enabled: true,
		URLs:    []string{"http://p1.invalid:8080", "http://p2.invalid:8080"},
	}, slog.Default())

	if p.HealthyCount() != 2 {
		t.Fatalf("expected 2 healthy proxies at start, got %d", p.HealthyCount())
	}

	bad, _ := url.Parse("http://p1.invalid:8080")
	p.MarkFailed(bad, errProbeFailed)
	if p.HealthyCount() != 1 {
		t.Fatalf("expected 1 healthy proxy after a failure, got %d", p.HealthyCount())
	}

	p.MarkHealthy(bad)
	if p.HealthyCount() != 2 {
		t.Fatalf("expected 2 healthy proxies after recovery, got %d", p.HealthyCount())
	}
}

func TestTestReturnsFalseForUnreachableProxy(t *testing.T) {
	p := NewPool(config.ProxyConfig{Enabled: true, ProbeURL: "https://example.com"}, slog.Default())
	unreachable, _ := url.Parse("http://127.0.0.1:1")
	if p.Test(unreachable) {
		t.Error("expected Test to fail against an unreachable proxy")
	}
}

func TestWorkingReturnsNilWhenAllCandidatesFail(t *testing.T) {
	p := NewPool(config.ProxyConfig{
		Enabled:  true,
		Rotation: "round_robin",
		ProbeURL: "https://example.com",
		URLs:     []string{"http://127.0.0.1:1", "http://127.0.0.1:2"},
	}, slog.Default())

	if got := p.Working(2); got != nil {
		t.Errorf("expected Working to return nil when every candidate fails its probe, got %v", got)
	}
}

func TestWorkingReturnsFirstPassingCandidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewPool(config.ProxyConfig{
		Enabled:  true,
		Rotation: "round_robin",
		ProbeURL: server.URL,
		URLs:     []string{server.URL},
	}, slog.Default())

	got := p.Working(1)
	if got == nil {
		t.Fatal("expected a working proxy candidate, got nil")
	}
}

func TestPoolDisabledWorkingReturnsNil(t *testing.T) {
	p := NewPool(config.ProxyConfig{Enabled: false, URLs: []string{"http://10.0.0.1:8080"}}, slog.Default())
	if got := p.Working(3); got != nil {
		t.Errorf("expected nil from a disabled pool, got %v", got)
	}
}
