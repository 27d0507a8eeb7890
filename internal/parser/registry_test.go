package parser

import (
	"log/slog"
	"testing"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/types"
)

type stubParser struct{ jobs []*types.Job }

func (s *stubParser) Parse(resp *types.Response, source config.FeedConfig) []*types.Job {
	return s.jobs
}

func TestRegistryDispatchesByParserID(t *testing.T) {
	job, err := types.NewJob("1", "Engineer", "Acme", "", "custom")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	r := NewRegistry(slog.Default())
	r.Register("custom_site", &stubParser{jobs: []*types.Job{job}}, nil)

	resp := testResponse(t, "https://example.com", "<html></html>")
	jobs := r.Parse(resp, config.FeedConfig{Name: "custom", Parser: "custom_site"})

	if len(jobs) != 1 || jobs[0].ID != "1" {
		t.Fatalf("expected dispatch to registered parser, got %+v", jobs)
	}
}

func TestRegistryFallsBackToGenericForUnknownParser(t *testing.T) {
	r := NewRegistry(slog.Default())
	resp := testResponse(t, "https://example.com", `<div class="job-card"><h3>Engineer</h3><span class="company">Acme</span></div>`)

	jobs := r.Parse(resp, config.FeedConfig{Name: "custom", Parser: "does_not_exist"})
	if len(jobs) != 1 {
		t.Fatalf("expected generic fallback to find one job, got %d", len(jobs))
	}
}

func TestRegistryAppliesPostFilter(t *testing.T) {
	keep, _ := types.NewJob("1", "Keep Me", "Acme", "", "custom")
	drop, _ := types.NewJob("2", "Drop Me", "Acme", "", "custom")

	r := NewRegistry(slog.Default())
	r.Register("filtered", &stubParser{jobs: []*types.Job{keep, drop}}, func(j *types.Job) bool {
		return j.Title == "Keep Me"
	})

	resp := testResponse(t, "https://example.com", "<html></html>")
	jobs := r.Parse(resp, config.FeedConfig{Name: "custom", Parser: "filtered"})

	if len(jobs) != 1 || jobs[0].Title != "Keep Me" {
		t.Fatalf("expected post-filter to drop one job, got %+v", jobs)
	}
}
