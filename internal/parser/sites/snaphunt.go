package sites

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/parser"
	"github.com/jobradar/jobradar/internal/types"
)

const preloadedStateMarker = "window.__PRELOADED_STATE__"

var snaphuntCardSelectors = []string{".job-card", "[class*='job']", "article[class*='job']", "li[class*='job']"}

var snaphuntTitleSelectors = []parser.FieldSelector{
	{Expr: "h2.job-title", Attr: "text"},
	{Expr: "h3.job-title", Attr: "text"},
	{Expr: "[class*='title']", Attr: "text"},
	{Expr: "a[class*='title']", Attr: "text"},
}

var snaphuntCompanySelectors = []parser.FieldSelector{
	{Expr: "div.company-name", Attr: "text"},
	{Expr: "span.company-name", Attr: "text"},
	{Expr: "[class*='company']", Attr: "text"},
	{Expr: "div.employer", Attr: "text"},
}

// SnaphuntParser handles the React-SPA job board's embedded preloaded
// state first, falling back to a traditional card scrape when that
// script tag isn't present — the listing page is sometimes served
// server-rendered and sometimes client-rendered depending on the
// headless fetcher's wait behavior.
type SnaphuntParser struct {
	logger *slog.Logger
}

// NewSnaphuntParser builds a Snaphunt parser.
func NewSnaphuntParser(logger *slog.Logger) *SnaphuntParser {
	return &SnaphuntParser{logger: logger.With("component", "snaphunt_parser")}
}

type preloadedState struct {
	Jobs struct {
		Jobs []preloadedJob `json:"jobs"`
	} `json:"jobs"`
	SeoJobManager struct {
		SeoJob *preloadedJob `json:"seoJob"`
	} `json:"seoJobManager"`
}

type preloadedJob struct {
	JobID       string `json:"jobId"`
	JobTitle    string `json:"jobTitle"`
	CompanyName string `json:"companyName"`
}

// Parse implements parser.Parser.
func (p *SnaphuntParser) Parse(resp *types.Response, source config.FeedConfig) []*types.Job {
	if jobs := p.parsePreloadedState(resp, source); len(jobs) > 0 {
		return jobs
	}
	return p.parseCards(resp, source)
}

func (p *SnaphuntParser) parsePreloadedState(resp *types.Response, source config.FeedConfig) []*types.Job {
	body := string(resp.Body)
	idx := strings.Index(body, preloadedStateMarker)
	if idx == -1 {
		return nil
	}

	assignStart := idx + len(preloadedStateMarker)
	eq := strings.Index(body[assignStart:], "=")
	if eq == -1 {
		return nil
	}
	jsonStart := assignStart + eq + 1
	jsonEnd := strings.Index(body[jsonStart:], ";\n")
	if jsonEnd == -1 {
		jsonEnd = strings.Index(body[jsonStart:], ";")
	}
	if jsonEnd == -1 {
		return nil
	}

	raw := strings.TrimSpace(body[jsonStart : jsonStart+jsonEnd])
	var state preloadedState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		p.logger.Warn("failed to parse Snaphunt preloaded state", "source", source.Name, "error", err)
		return nil
	}

	assigner := parser.NewIDAssigner()
	var jobs []*types.Job
	ordinal := 0

	appendJob := func(pj preloadedJob) {
		if pj.JobTitle == "" {
			return
		}
		company := pj.CompanyName
		if company == "" {
			company = "unknown"
		}
		jobURL := "https://snaphunt.com/jobs/" + pj.JobID
		id := assigner.Assign(pj.JobID, jobURL, pj.JobTitle, company, ordinal)
		ordinal++
		job, err := types.NewJob(id, pj.JobTitle, company, jobURL, source.Name)
		if err != nil {
			p.logger.Warn("skipping invalid Snaphunt state job", "error", err)
			return
		}
		jobs = append(jobs, job)
	}

	for _, pj := range state.Jobs.Jobs {
		appendJob(pj)
	}
	if state.SeoJobManager.SeoJob != nil {
		appendJob(*state.SeoJobManager.SeoJob)
	}

	return jobs
}

func (p *SnaphuntParser) parseCards(resp *types.Response, source config.FeedConfig) []*types.Job {
	doc, err := resp.Document()
	if err != nil {
		p.logger.Warn("failed to parse document", "source", source.Name, "error", err)
		return nil
	}

	cards := parser.FindCards(doc, snaphuntCardSelectors)
	if cards.Length() == 0 {
		p.logger.Warn("no Snaphunt job cards found", "source", source.Name)
		return nil
	}

	assigner := parser.NewIDAssigner()
	var jobs []*types.Job

	cards.Each(func(i int, card *goquery.Selection) {
		title := parser.FirstNonEmpty(card, snaphuntTitleSelectors)
		if title == "" || len(title) < 3 {
			return
		}
		company := parser.FirstNonEmpty(card, snaphuntCompanySelectors)
		if company == "" {
			company = "unknown"
		}

		href, _ := card.Find("a[href]").First().Attr("href")
		jobURL := ""
		switch {
		case href == "":
			jobURL = ""
		case strings.HasPrefix(href, "/"):
			jobURL = "https://snaphunt.com" + href
		case strings.HasPrefix(href, "http"):
			jobURL = href
		default:
			jobURL = "https://snaphunt.com/" + href
		}

		id := assigner.Assign("", jobURL, title, company, i)
		job, err := types.NewJob(id, title, company, jobURL, source.Name)
		if err != nil {
			p.logger.Warn("skipping invalid Snaphunt card", "ordinal", i, "error", err)
			return
		}
		jobs = append(jobs, job)
	})

	return jobs
}
