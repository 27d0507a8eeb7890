package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/types"
)

// cardCandidates are the listing-page container selectors tried, in
// order, for sites with no dedicated parser. Sourced from the common
// job-board markup patterns (Indeed's "job_seen_beacon"/"jobsearch-SerpJobCard"
// family, and the generic "job-card"/"job-listing" classes most
// aggregator-style boards converge on).
var cardCandidates = []string{
	".job_seen_beacon", ".jobsearch-SerpJobCard", ".resultContent",
	".job-card", ".job-listing", ".job-item", ".job-result",
	"[data-testid*='job-card']", "article.job",
}

var titleSelectors = []FieldSelector{
	{Expr: "h2.jobTitle", Attr: "text"},
	{Expr: "a.jobtitle", Attr: "text"},
	{Expr: "h2 span", Attr: "text"},
	{Expr: "h2", Attr: "text"},
	{Expr: ".job-title", Attr: "text"},
	{Expr: "h3", Attr: "text"},
	{Expr: "a", Attr: "text"},
}

var companySelectors = []FieldSelector{
	{Expr: "span.companyName", Attr: "text"},
	{Expr: ".company", Attr: "text"},
	{Expr: "[class*='company']", Attr: "text"},
	{Expr: ".job-company", Attr: "text"},
}

var locationSelectors = []FieldSelector{
	{Expr: "[class*='location']", Attr: "text"},
	{Expr: ".job-location", Attr: "text"},
}

var urlSelectors = []FieldSelector{
	{Expr: "a", Attr: "href"},
}

// GenericHTMLParser is the Parser Registry's fallback for feeds that
// name no parser_id, or one that isn't registered: a best-effort
// job-card scrape using the prioritized selector chains above.
type GenericHTMLParser struct {
	logger *slog.Logger
}

// NewGenericHTMLParser builds the fallback parser.
func NewGenericHTMLParser(logger *slog.Logger) *GenericHTMLParser {
	return &GenericHTMLParser{logger: logger.With("component", "generic_html_parser")}
}

// Parse implements Parser.
func (p *GenericHTMLParser) Parse(resp *types.Response, source config.FeedConfig) []*types.Job {
	doc, err := resp.Document()
	if err != nil {
		p.logger.Warn("failed to parse HTML document", "source", source.Name, "error", err)
		return nil
	}

	cards := FindCards(doc, cardCandidates)
	if cards.Length() == 0 {
		p.logger.Warn("no job cards found with any known selector, trying table fallback", "source", source.Name, "url", resp.FinalURL)
		return p.parseTableFallback(resp, source)
	}

	assigner := NewIDAssigner()
	var jobs []*types.Job

	cards.Each(func(i int, card *goquery.Selection) {
		title := FirstNonEmpty(card, titleSelectors)
		if title == "" {
			return
		}
		company := FirstNonEmpty(card, companySelectors)
		if company == "" {
			company = "unknown"
		}

		rawURL := FirstNonEmpty(card, urlSelectors)
		jobURL := resolveCardURL(resp.FinalURL, rawURL)
		nativeID := FirstAttr(card, []string{"[data-jk]", "[data-id]"}, "data-jk")
		if nativeID == "" {
			nativeID = FirstAttr(card, []string{"[data-id]"}, "data-id")
		}

		id := assigner.Assign(nativeID, jobURL, title, company, i)

		job, err := types.NewJob(id, title, company, jobURL, source.Name)
		if err != nil {
			p.logger.Warn("skipping invalid job card", "source", source.Name, "ordinal", i, "error", err)
			return
		}
		job.Location = FirstNonEmpty(card, locationSelectors)
		jobs = append(jobs, job)
	})

	return jobs
}

// tableTitleExprs and tableCompanyExprs are XPath candidates for the
// legacy server-rendered table layout some older boards still use,
// grounded on the "data-tn-element"/"data-tn-component" attributes a
// generic-extraction fallback has to reach for when no CSS job-card
// class exists at all.
var tableTitleExprs = []string{
	".//a[@data-tn-element='jobTitle']",
	".//a[contains(@class,'jobtitle')]",
}

var tableCompanyExprs = []string{
	".//*[@data-tn-component='companyName']",
	".//*[contains(@class,'company')]",
}

// parseTableFallback is the last-resort extraction path for pages with
// no recognizable job-card container at all: it walks every table row
// for a title-bearing cell via XPath.
func (p *GenericHTMLParser) parseTableFallback(resp *types.Response, source config.FeedConfig) []*types.Job {
	root, err := htmlquery.Parse(strings.NewReader(string(resp.Body)))
	if err != nil {
		p.logger.Warn("table fallback: failed to parse document", "source", source.Name, "error", err)
		return nil
	}

	rows := htmlquery.Find(root, "//table//tr")
	if len(rows) == 0 {
		p.logger.Warn("no job content found by any extraction strategy", "source", source.Name, "url", resp.FinalURL)
		return nil
	}

	assigner := NewIDAssigner()
	var jobs []*types.Job

	for i, row := range rows {
		title := xpathFirstNonEmpty(row, tableTitleExprs)
		if title == "" {
			continue
		}
		company := xpathFirstNonEmpty(row, tableCompanyExprs)
		if company == "" {
			company = "unknown"
		}

		var jobURL string
		if a := htmlquery.FindOne(row, ".//a[@href]"); a != nil {
			jobURL = resolveCardURL(resp.FinalURL, htmlquery.SelectAttr(a, "href"))
		}

		id := assigner.Assign("", jobURL, title, company, i)
		job, err := types.NewJob(id, title, company, jobURL, source.Name)
		if err != nil {
			p.logger.Warn("skipping invalid table row", "source", source.Name, "ordinal", i, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs
}
