package matcher

import (
	"testing"

	"github.com/jobradar/jobradar/internal/types"
)

func mustJob(t *testing.T, title, company string) *types.Job {
	t.Helper()
	j, err := types.NewJob("1", title, company, "", "test")
	if err != nil {
		t.Fatalf("NewJob(%q): %v", title, err)
	}
	return j
}

func TestIsRelevantMatchesCustomerSupportPhrase(t *testing.T) {
	m := New(1)
	j := mustJob(t, "Customer Support Specialist", "Acme Corp")
	if !m.IsRelevant(j) {
		t.Fatalf("expected job to be relevant, scores=%v", m.Score(j))
	}
}

func TestIsRelevantRejectsExcludedSoftwareEngineerTitle(t *testing.T) {
	m := New(1)
	j := mustJob(t, "Senior Software Engineer, Support Tools", "Acme Corp")
	if m.IsRelevant(j) {
		t.Fatalf("expected excluded title to score zero, scores=%v", m.Score(j))
	}
}

func TestScoreComponentWordCountsStandaloneMatch(t *testing.T) {
	m := New(1)
	j := mustJob(t, "Operations Coordinator", "Acme Corp")
	scores := m.Score(j)
	if scores[Operations] == 0 {
		t.Fatalf("expected operations component word to score, got %v", scores)
	}
}

func TestScoreComponentDenyListExcludesEngineerAndAnalyst(t *testing.T) {
	m := New(1)
	// "account manager" should not also add a standalone "manager" pattern,
	// and "analyst"/"engineer" components must never be added even though
	// they're common words across multiple categories.
	j := mustJob(t, "Generic Analyst Engineer Role", "Acme Corp")
	scores := m.Score(j)
	total := 0
	for _, s := range scores {
		total += s
	}
	if total != 0 {
		t.Fatalf("expected bare analyst/engineer words to score zero, got %v", scores)
	}
}

func TestScoreIsCaseInsensitive(t *testing.T) {
	m := New(1)
	j := mustJob(t, "COMPLIANCE OFFICER", "Acme Corp")
	if !m.IsRelevant(j) {
		t.Fatalf("expected case-insensitive match, scores=%v", m.Score(j))
	}
}

func TestScoreDedupesRepeatedPatternWithinCategory(t *testing.T) {
	m := New(1)
	j := mustJob(t, "Support Support Support", "Acme Corp")
	scores := m.Score(j)
	if scores[SupportRoles] != 1 {
		t.Fatalf("expected repeated phrase to count once per pattern, got %d", scores[SupportRoles])
	}
}

func TestIsRelevantRespectsMinScoreThreshold(t *testing.T) {
	j := mustJob(t, "Support Specialist", "Acme Corp")

	lenient := New(1)
	if !lenient.IsRelevant(j) {
		t.Fatalf("expected job relevant at min score 1")
	}

	strict := New(10)
	if strict.IsRelevant(j) {
		t.Fatalf("expected job not relevant at min score 10")
	}
}

func TestIsRelevantFalseOnEmptyScores(t *testing.T) {
	m := New(1)
	j := mustJob(t, "Warehouse Forklift Driver", "Acme Corp")
	if m.IsRelevant(j) {
		t.Fatalf("expected unrelated title to score below threshold, scores=%v", m.Score(j))
	}
}

func TestNewMinScoreDefaultsToOneWhenNonPositive(t *testing.T) {
	m := New(0)
	if m.minScore != 1 {
		t.Fatalf("expected default min score 1, got %d", m.minScore)
	}
}
