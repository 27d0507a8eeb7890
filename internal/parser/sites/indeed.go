// Package sites holds the concrete per-site parsers registered at
// startup, standing in for the wider per-site catalog a production
// deployment would carry.
package sites

import (
	"log/slog"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/parser"
	"github.com/jobradar/jobradar/internal/types"
)

var indeedJKPattern = regexp.MustCompile(`jk=([a-zA-Z0-9]+)`)

var indeedCardSelectors = []string{
	".job_seen_beacon", ".jobsearch-SerpJobCard", "li.jobsearch-ResultsList-item",
}

var indeedTitleSelectors = []parser.FieldSelector{
	{Expr: "h2.jobTitle", Attr: "text"},
	{Expr: "a.jobtitle", Attr: "text"},
	{Expr: "h2 span", Attr: "text"},
	{Expr: "h2", Attr: "text"},
}

var indeedCompanySelectors = []parser.FieldSelector{
	{Expr: "span.companyName", Attr: "text"},
	{Expr: "[class*='company']", Attr: "text"},
	{Expr: "span.company", Attr: "text"},
	{Expr: "a.company", Attr: "text"},
}

// IndeedParser extracts job cards from an Indeed search-results page,
// grounded on the several title/company/id fallback chains Indeed's
// markup churn has required historically.
type IndeedParser struct {
	logger *slog.Logger
}

// NewIndeedParser builds an Indeed card parser.
func NewIndeedParser(logger *slog.Logger) *IndeedParser {
	return &IndeedParser{logger: logger.With("component", "indeed_parser")}
}

// Parse implements parser.Parser.
func (p *IndeedParser) Parse(resp *types.Response, source config.FeedConfig) []*types.Job {
	doc, err := resp.Document()
	if err != nil {
		p.logger.Warn("failed to parse document", "source", source.Name, "error", err)
		return nil
	}

	cards := parser.FindCards(doc, indeedCardSelectors)
	if cards.Length() == 0 {
		p.logger.Warn("no Indeed job cards found, site markup may have changed", "source", source.Name)
		return nil
	}

	assigner := parser.NewIDAssigner()
	var jobs []*types.Job

	cards.Each(func(i int, card *goquery.Selection) {
		title := parser.FirstNonEmpty(card, indeedTitleSelectors)
		company := parser.FirstNonEmpty(card, indeedCompanySelectors)
		if title == "" || company == "" {
			return
		}

		jk, _ := card.Attr("data-jk")
		if jk == "" {
			if href, ok := card.Find("a[href*='jk=']").Attr("href"); ok {
				if m := indeedJKPattern.FindStringSubmatch(href); len(m) == 2 {
					jk = m[1]
				}
			}
		}

		jobURL := ""
		if jk != "" {
			jobURL = "https://www.indeed.com/viewjob?jk=" + jk
		}

		id := assigner.Assign(jk, jobURL, title, company, i)
		job, err := types.NewJob(id, title, company, jobURL, source.Name)
		if err != nil {
			p.logger.Warn("skipping invalid Indeed card", "ordinal", i, "error", err)
			return
		}
		jobs = append(jobs, job)
	})

	return jobs
}
