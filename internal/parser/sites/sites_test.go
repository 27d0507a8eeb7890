package sites

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

func TestIndeedParserExtractsJK(t *testing.T) {
	html := `<html><body>
	<div class="job_seen_beacon" data-jk="abc123">
		<h2 class="jobTitle"><span>Site Reliability Engineer</span></h2>
		<span class="companyName">Acme Corp</span>
	</div>
	</body></html>`

	resp := testResponse(t, "https://www.indeed.com/jobs", html)
	p := NewIndeedParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "indeed"})

	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].ID != "abc123" {
		t.Fatalf("expected native jk id, got %q", jobs[0].ID)
	}
	if jobs[0].URL != "https://www.indeed.com/viewjob?jk=abc123" {
		t.Fatalf("unexpected url: %q", jobs[0].URL)
	}
}

func TestRemoteOKParserUsesMicrodata(t *testing.T) {
	html := `<html><body><table>
	<tr class="job" data-id="9"><td>
		<h2 itemprop="title">Platform Engineer</h2>
		<h3 itemprop="name">Remote Co</h3>
		<a href="/remote-jobs/9-platform-engineer">view</a>
	</td></tr>
	</table></body></html>`

	resp := testResponse(t, "https://remoteok.com/remote-jobs", html)
	p := NewRemoteOKParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "remoteok"})

	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].ID != "9" {
		t.Fatalf("expected native data-id, got %q", jobs[0].ID)
	}
}

func TestSnaphuntParserPreloadedState(t *testing.T) {
	html := `<html><body><script>
	window.__PRELOADED_STATE__ = {"jobs":{"jobs":[{"jobId":"j1","jobTitle":"QA Analyst","companyName":"Snap Co"}]},"seoJobManager":{"seoJob":null}};
	</script></body></html>`

	resp := testResponse(t, "https://snaphunt.com/jobs", html)
	p := NewSnaphuntParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "snaphunt"})

	if len(jobs) != 1 {
		t.Fatalf("expected 1 job from preloaded state, got %d", len(jobs))
	}
	if jobs[0].ID != "j1" || jobs[0].Title != "QA Analyst" {
		t.Fatalf("unexpected job: %+v", jobs[0])
	}
}

func TestSnaphuntParserFallsBackToCards(t *testing.T) {
	html := `<html><body>
	<div class="job-card">
		<h2 class="job-title">Operations Associate</h2>
		<div class="company-name">Fallback Co</div>
		<a class="job-link" href="/jobs/op-assoc">view</a>
	</div>
	</body></html>`

	resp := testResponse(t, "https://snaphunt.com/jobs", html)
	p := NewSnaphuntParser(slog.Default())
	jobs := p.Parse(resp, config.FeedConfig{Name: "snaphunt"})

	if len(jobs) != 1 {
		t.Fatalf("expected 1 job from card fallback, got %d", len(jobs))
	}
	if jobs[0].Title != "Operations Associate" {
		t.Fatalf("unexpected job: %+v", jobs[0])
	}
}
