package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// FieldSelector names one candidate place to look for a field's value
// within a job card. Attr is "" (or "text") for element text, otherwise
// the name of an HTML attribute to read.
type FieldSelector struct {
	Expr string
	Attr string
}

// FirstNonEmpty tries each selector against card in order and returns
// the first non-empty result, tolerating the minor markup drift a
// site redesign introduces. This is the registry's "first selector
// whose result is non-empty wins" combinator.
func FirstNonEmpty(card *goquery.Selection, chain []FieldSelector) string {
	for _, sel := range chain {
		target := card
		if sel.Expr != "" {
			found := card.Find(sel.Expr).First()
			if found.Length() == 0 {
				continue
			}
			target = found
		}

		var val string
		switch sel.Attr {
		case "", "text":
			val = strings.TrimSpace(target.Text())
		default:
			attrVal, exists := target.Attr(sel.Attr)
			if !exists {
				continue
			}
			val = strings.TrimSpace(attrVal)
		}

		if val != "" {
			return val
		}
	}
	return ""
}

// FirstAttr tries each selector's attribute across card's descendants
// (rather than just the first match) and returns the first non-empty
// value found — useful for ID-bearing attributes that may sit on any
// of several ancestor elements.
func FirstAttr(card *goquery.Selection, exprs []string, attr string) string {
	for _, expr := range exprs {
		var found string
		card.Find(expr).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, exists := s.Attr(attr); exists && strings.TrimSpace(v) != "" {
				found = strings.TrimSpace(v)
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// FindCards locates the repeated job-card elements on a listing page,
// trying each candidate selector in order and using the first one that
// matches anything — the same tolerant, try-in-priority-order approach
// FirstNonEmpty uses for fields, just applied to card discovery.
func FindCards(doc *goquery.Document, candidates []string) *goquery.Selection {
	for _, sel := range candidates {
		found := doc.Find(sel)
		if found.Length() > 0 {
			return found
		}
	}
	// No candidate matched: return a genuinely empty selection (not nil)
	// so callers can range over it without a nil check.
	return doc.Selection.Find("body").Slice(0, 0)
}

// xpathFirstNonEmpty is the XPath-expression equivalent of
// FirstNonEmpty, used by parsers whose source markup resists CSS
// selection (nested tables, attribute-less wrapper divs).
func xpathFirstNonEmpty(node *html.Node, exprs []string) string {
	for _, expr := range exprs {
		n, err := htmlquery.Query(node, expr)
		if err != nil || n == nil {
			continue
		}
		val := strings.TrimSpace(htmlquery.InnerText(n))
		if val != "" {
			return val
		}
	}
	return ""
}
