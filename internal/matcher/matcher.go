// Package matcher implements the Smart Matcher: a fixed-taxonomy keyword
// scorer that decides whether a job posting is worth keeping, independent
// of per-operator keyword filters. Categories and their phrase lists are
// not configurable — they encode a curated definition of "support and
// compliance adjacent roles" that the rest of the pipeline filters on.
package matcher

import (
	"regexp"
	"strings"

	"github.com/jobradar/jobradar/internal/types"
)

// Category names the six fixed interest buckets a title/company/description
// is scored against.
type Category string

const (
	CustomerSupport    Category = "customer_support"
	SupportRoles       Category = "support_roles"
	TechnicalSupport   Category = "technical_support"
	SpecialistRoles    Category = "specialist_roles"
	ComplianceAnalysis Category = "compliance_analysis"
	Operations         Category = "operations"
)

// taxonomy lists the exact phrases that count toward each category. Order
// and membership are part of the contract — this is not meant to grow
// without a deliberate decision to widen what counts as "relevant".
var taxonomy = map[Category][]string{
	CustomerSupport: {
		"customer service", "customer support", "customer experience",
		"customer operations", "client services", "customer happiness",
		"client relations", "customer success", "customer advocate",
		"customer onboarding", "customer solutions",
	},
	SupportRoles: {
		"support", "support specialist", "support representative",
		"support analyst", "support technician", "customer care",
	},
	TechnicalSupport: {
		"technical support", "product support", "support engineer",
		"application support", "it support", "escalation support",
		"helpdesk technician", "helpdesk", "technical account manager",
		"l1 support", "l2 support", "l3 support",
	},
	SpecialistRoles: {
		"integration specialist", "onboarding specialist",
		"client implementation", "implementation engineer",
		"solutions engineer", "partner solutions", "pre-sales engineer",
		"technical account manager", "account manager",
	},
	ComplianceAnalysis: {
		"aml analyst", "compliance analyst", "fraud analyst",
		"transaction monitoring", "compliance operations",
		"financial crime analyst", "risk compliance officer",
		"crypto compliance", "kyc analyst", "edd analyst",
		"compliance officer", "risk officer", "risk analyst",
	},
	Operations: {
		"operations", "operations specialist", "operations analyst",
		"business operations", "client operations",
	},
}

// excludeKeywords disqualify a job outright regardless of how it scores
// against the taxonomy above — mostly software-engineering and other
// product-org titles that share vocabulary with the support/compliance
// categories ("support engineer" vs. "software engineer") but are not
// what this matcher is meant to surface.
var excludeKeywords = []string{
	"software engineer", "software developer", "full stack", "frontend", "backend",
	"devops", "data scientist", "machine learning", "ai engineer", "web developer",
	"mobile developer", "ios developer", "android developer", "ui/ux designer",
	"product manager", "project manager", "scrum master", "engineering manager",
}

// componentAllowList are the individual words from multi-word keywords
// that also count as standalone matches. A word only qualifies if it is
// longer than 4 characters and not one of the generic role suffixes in
// componentDenyList — "engineer" and "analyst" appear in nearly every
// category and would make the allow-list meaningless otherwise.
var componentAllowList = map[string]bool{
	"support": true, "customer": true, "compliance": true,
	"operations": true, "implementation": true, "onboarding": true,
}

var componentDenyList = map[string]bool{
	"analyst": true, "engineer": true, "specialist": true,
}

// Matcher scores jobs against the fixed taxonomy using patterns compiled
// once at construction. An instance holds no mutable state and is safe
// for concurrent use.
type Matcher struct {
	categoryPatterns map[Category][]*regexp.Regexp
	excludePatterns  []*regexp.Regexp
	minScore         int
}

// New builds a Matcher. minScore is the minimum summed category score
// for IsRelevant to report true; a non-positive value falls back to 1,
// matching the taxonomy's own default.
func New(minScore int) *Matcher {
	if minScore <= 0 {
		minScore = 1
	}

	m := &Matcher{
		categoryPatterns: make(map[Category][]*regexp.Regexp, len(taxonomy)),
		minScore:         minScore,
	}

	for category, keywords := range taxonomy {
		m.categoryPatterns[category] = compilePatternsForCategory(keywords)
	}
	for _, kw := range excludeKeywords {
		m.excludePatterns = append(m.excludePatterns, wordBoundaryPattern(kw))
	}

	return m
}

// compilePatternsForCategory compiles one exact-phrase pattern per
// keyword, plus one pattern per qualifying component word of any
// multi-word keyword (see componentAllowList).
func compilePatternsForCategory(keywords []string) []*regexp.Regexp {
	var patterns []*regexp.Regexp
	seen := make(map[string]bool)

	addPattern := func(phrase string) {
		if seen[phrase] {
			return
		}
		seen[phrase] = true
		patterns = append(patterns, wordBoundaryPattern(phrase))
	}

	for _, keyword := range keywords {
		addPattern(keyword)

		words := strings.Fields(keyword)
		if len(words) < 2 {
			continue
		}
		for _, word := range words {
			lower := strings.ToLower(word)
			if len(word) > 4 && !componentDenyList[lower] && componentAllowList[lower] {
				addPattern(lower)
			}
		}
	}

	return patterns
}

func wordBoundaryPattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
}

// Score returns the number of distinct matching patterns per category
// for a job's title, company, and description combined. If any exclude
// keyword matches, every category scores zero — the job is disqualified
// outright regardless of how strongly it would otherwise match.
func (m *Matcher) Score(job *types.Job) map[Category]int {
	text := job.Title + " " + job.Company
	if job.Description != "" {
		text = text + " " + job.Description
	}

	scores := make(map[Category]int, len(taxonomy))
	for category := range taxonomy {
		scores[category] = 0
	}

	for _, p := range m.excludePatterns {
		if p.MatchString(text) {
			return scores
		}
	}

	for category, patterns := range m.categoryPatterns {
		count := 0
		for _, p := range patterns {
			if p.MatchString(text) {
				count++
			}
		}
		scores[category] = count
	}

	return scores
}

// IsRelevant reports whether the summed score across all categories
// meets the Matcher's configured minimum.
func (m *Matcher) IsRelevant(job *types.Job) bool {
	total := 0
	for _, score := range m.Score(job) {
		total += score
	}
	return total >= m.minScore
}
