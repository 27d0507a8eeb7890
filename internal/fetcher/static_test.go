package fetcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobradar/jobradar/internal/types"
)

func TestIsLocalPath(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"https://example.com/jobs.json", false},
		{"http://example.com/jobs.json", false},
		{"/var/data/jobs.json", true},
		{"./fixtures/jobs.json", true},
		{"jobs.json", true},
	}
	for _, c := range cases {
		if got := isLocalPath(c.raw); got != c.want {
			t.Errorf("isLocalPath(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestExtractJSONEntriesFromArray(t *testing.T) {
	body := []byte(`[{"title":"Engineer"},{"title":"Designer"}]`)
	entries, err := extractJSONEntries(body)
	if err != nil {
		t.Fatalf("extractJSONEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestExtractJSONEntriesFromWrappedObject(t *testing.T) {
	body := []byte(`{"results":[{"title":"Engineer"}],"meta":{"page":1}}`)
	entries, err := extractJSONEntries(body)
	if err != nil {
		t.Fatalf("extractJSONEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry under 'results', got %d", len(entries))
	}
}

func TestExtractJSONEntriesNoKnownKeyErrors(t *testing.T) {
	body := []byte(`{"foo":"bar"}`)
	if _, err := extractJSONEntries(body); err == nil {
		t.Fatal("expected an error when no known list key is present")
	}
}

func TestFetchJSONReadsLocalFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")

	payload := []map[string]any{
		{"title": "Support Specialist", "company": "Acme", "id": "job-1"},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f, err := NewStaticFetcher(nil, slog.Default())
	if err != nil {
		t.Fatalf("NewStaticFetcher: %v", err)
	}
	defer f.Close()

	req, err := types.NewRequest(path)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Meta["transport"] = "json"
	req.Meta["source"] = "local-test"

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	jobs, ok := resp.Meta["jobs"].([]*types.Job)
	if !ok {
		t.Fatalf("expected resp.Meta[\"jobs\"] to be []*types.Job, got %T", resp.Meta["jobs"])
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Title != "Support Specialist" || jobs[0].Company != "Acme" {
		t.Errorf("unexpected job: %+v", jobs[0])
	}
}

func TestFetchJSONOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobs":[{"title":"Backend Engineer","company":"RemoteCo"}]}`))
	}))
	defer server.Close()

	f, err := NewStaticFetcher(nil, slog.Default())
	if err != nil {
		t.Fatalf("NewStaticFetcher: %v", err)
	}
	defer f.Close()

	req, err := types.NewRequest(server.URL)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Meta["transport"] = "json"

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	jobs := resp.Meta["jobs"].([]*types.Job)
	if len(jobs) != 1 || jobs[0].Title != "Backend Engineer" {
		t.Errorf("unexpected jobs: %+v", jobs)
	}
}
