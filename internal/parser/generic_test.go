package parser

import (
	"log/slog"
	"testing"
	"time"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/types"
)

func testResponse(t *testing.T, rawURL, html string) *types.Response {
	t.Helper()
	req, err := types.NewRequest(rawURL)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return types.NewBrowserResponse(req, 200, []byte(html), rawURL, time.Millisecond)
}

func TestGenericHTMLParserExtractsCards(t *testing.T) {
	html := `
	<html><body>
	<div class="job-card">
		<h3>Backend Engineer</h3>
		<span class="company">Acme Corp</span>
		<a href="/jobs/1">view</a>
	</div>
	<div class="job-card">
		<h3>Support Specialist</h3>
		<span class="company">Widgets Inc</span>
		<a href="/jobs/2">view</a>
	</div>
	</body></html>`

	resp := testResponse(t, "https://boards.example.com/listing", html)
	p := NewGenericHTMLParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "example"})

	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Title != "Backend Engineer" || jobs[0].Company != "Acme Corp" {
		t.Fatalf("unexpected first job: %+v", jobs[0])
	}
	if jobs[0].URL != "https://boards.example.com/jobs/1" {
		t.Fatalf("expected resolved relative URL, got %q", jobs[0].URL)
	}
	if jobs[0].ID == jobs[1].ID {
		t.Fatalf("expected distinct ids, got %q for both", jobs[0].ID)
	}
}

func TestGenericHTMLParserSkipsCardsWithoutTitle(t *testing.T) {
	html := `<html><body>
	<div class="job-card"><span class="company">Acme Corp</span></div>
	</body></html>`

	resp := testResponse(t, "https://boards.example.com/listing", html)
	p := NewGenericHTMLParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "example"})

	if len(jobs) != 0 {
		t.Fatalf("expected no jobs for title-less card, got %d", len(jobs))
	}
}

func TestGenericHTMLParserReturnsEmptyOnNoCards(t *testing.T) {
	resp := testResponse(t, "https://boards.example.com/listing", "<html><body>no jobs here</body></html>")
	p := NewGenericHTMLParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "example"})

	if jobs != nil {
		t.Fatalf("expected nil jobs, got %v", jobs)
	}
}

func TestGenericHTMLParserTableFallback(t *testing.T) {
	html := `<html><body><table>
	<tr><td><a data-tn-element="jobTitle" href="/viewjob?jk=1">Legacy Engineer</a></td>
	<td><span data-tn-component="companyName">Old Co</span></td></tr>
	</table></body></html>`

	resp := testResponse(t, "https://boards.example.com/listing", html)
	p := NewGenericHTMLParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "example"})

	if len(jobs) != 1 {
		t.Fatalf("expected 1 job from table fallback, got %d", len(jobs))
	}
	if jobs[0].Title != "Legacy Engineer" || jobs[0].Company != "Old Co" {
		t.Fatalf("unexpected job: %+v", jobs[0])
	}
}

func TestGenericHTMLParserFiftyIdenticalCards(t *testing.T) {
	html := "<html><body>"
	for i := 0; i < 50; i++ {
		html += `<div class="job-card"><h3>Same Title</h3><span class="company">Same Co</span></div>`
	}
	html += "</body></html>"

	resp := testResponse(t, "https://boards.example.com/listing", html)
	p := NewGenericHTMLParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "example"})

	if len(jobs) != 50 {
		t.Fatalf("expected 50 jobs, got %d", len(jobs))
	}
	seen := make(map[string]bool)
	for _, j := range jobs {
		if seen[j.ID] {
			t.Fatalf("duplicate id %q among identical cards", j.ID)
		}
		seen[j.ID] = true
	}
}
