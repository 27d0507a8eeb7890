package sites

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/parser"
	"github.com/jobradar/jobradar/internal/types"
)

var remoteOKCardSelectors = []string{"tr.job", "div[class*='job']", "article[class*='job']"}

var remoteOKTitleSelectors = []parser.FieldSelector{
	{Expr: "h2[itemprop='title']", Attr: "text"},
	{Expr: "h3[itemprop='title']", Attr: "text"},
	{Expr: "[class*='position']", Attr: "text"},
	{Expr: "h2", Attr: "text"},
	{Expr: "h3", Attr: "text"},
}

var remoteOKCompanySelectors = []parser.FieldSelector{
	{Expr: "h3[itemprop='name']", Attr: "text"},
	{Expr: "span[itemprop='name']", Attr: "text"},
	{Expr: "[class*='company']", Attr: "text"},
}

var trailingSlugPattern = regexp.MustCompile(`/([^/]+)$`)

// RemoteOKParser extracts job cards from remoteok.com, grounded on its
// itemprop-annotated title/company microdata with class-name fallbacks
// for layout variants.
type RemoteOKParser struct {
	logger *slog.Logger
}

// NewRemoteOKParser builds a RemoteOK card parser.
func NewRemoteOKParser(logger *slog.Logger) *RemoteOKParser {
	return &RemoteOKParser{logger: logger.With("component", "remoteok_parser")}
}

// Parse implements parser.Parser.
func (p *RemoteOKParser) Parse(resp *types.Response, source config.FeedConfig) []*types.Job {
	doc, err := resp.Document()
	if err != nil {
		p.logger.Warn("failed to parse document", "source", source.Name, "error", err)
		return nil
	}

	cards := parser.FindCards(doc, remoteOKCardSelectors)
	if cards.Length() == 0 {
		p.logger.Warn("no RemoteOK job cards found", "source", source.Name)
		return nil
	}

	assigner := parser.NewIDAssigner()
	var jobs []*types.Job

	cards.Each(func(i int, card *goquery.Selection) {
		title := parser.FirstNonEmpty(card, remoteOKTitleSelectors)
		if title == "" {
			return
		}
		company := parser.FirstNonEmpty(card, remoteOKCompanySelectors)
		if company == "" {
			company = "unknown"
		}

		nativeID, _ := card.Attr("data-id")
		href, _ := card.Find("a[href]").First().Attr("href")

		jobURL := ""
		switch {
		case nativeID != "":
			jobURL = "https://remoteok.com/remote-jobs/" + nativeID
		case href != "":
			if strings.HasPrefix(href, "/") {
				jobURL = "https://remoteok.com" + href
			} else {
				jobURL = href
			}
		}

		if nativeID == "" && href != "" {
			if m := trailingSlugPattern.FindStringSubmatch(href); len(m) == 2 {
				nativeID = m[1]
			}
		}

		id := assigner.Assign(nativeID, jobURL, title, company, i)
		job, err := types.NewJob(id, title, company, jobURL, source.Name)
		if err != nil {
			p.logger.Warn("skipping invalid RemoteOK card", "ordinal", i, "error", err)
			return
		}
		jobs = append(jobs, job)
	})

	return jobs
}
