package browser

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

func TestCookieJarSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cookies")
	jar := NewCookieJar(dir, slog.Default())

	saved := []*proto.NetworkCookie{
		{Name: "session", Value: "abc123", Domain: "example.com", Path: "/"},
		{Name: "theme", Value: "dark", Domain: "example.com", Path: "/"},
	}

	jar.Save("example.com", saved)
	jar.Close()

	loaded, err := NewCookieJar(dir, slog.Default()).Load("example.com")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded) != len(saved) {
		t.Fatalf("expected %d cookies, got %d", len(saved), len(loaded))
	}
	for i, c := range saved {
		if loaded[i].Name != c.Name || loaded[i].Value != c.Value || loaded[i].Domain != c.Domain {
			t.Errorf("cookie %d mismatch: saved %+v, loaded %+v", i, c, loaded[i])
		}
	}
}

func TestCookieJarLoadMissingDomainReturnsNil(t *testing.T) {
	jar := NewCookieJar(t.TempDir(), slog.Default())
	defer jar.Close()

	loaded, err := jar.Load("never-saved.example.com")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for a domain with no saved cookies, got %v", loaded)
	}
}

func TestCookieJarSaveDropsOnFullQueueWithoutBlocking(t *testing.T) {
	jar := &CookieJar{
		dir:    t.TempDir(),
		queue:  make(chan cookieSaveRequest),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	close(jar.done)

	done := make(chan struct{})
	go func() {
		jar.Save("example.com", []*proto.NetworkCookie{{Name: "a", Value: "b"}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Save blocked on a full queue instead of dropping the request")
	}
}
