package parser

import "testing"

func TestIDAssignerPrefersNativeID(t *testing.T) {
	a := NewIDAssigner()
	id := a.Assign("abc123", "https://example.com/jobs/1", "Engineer", "Acme", 0)
	if id != "abc123" {
		t.Fatalf("expected native id to win, got %q", id)
	}
}

func TestIDAssignerFallsBackToURL(t *testing.T) {
	a := NewIDAssigner()
	id := a.Assign("", "https://example.com/jobs/1", "Engineer", "Acme", 0)
	if id != "https://example.com/jobs/1" {
		t.Fatalf("expected url fallback, got %q", id)
	}
}

func TestIDAssignerFallsBackToContentHash(t *testing.T) {
	a := NewIDAssigner()
	id := a.Assign("", "", "Engineer", "Acme", 3)
	if len(id) != 16 {
		t.Fatalf("expected 16-hex-digit hash, got %q (len %d)", id, len(id))
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Fatalf("expected hash to be lowercase hex, got %q", id)
		}
	}
}

func TestIDAssignerResolvesCollisionsWithSuffix(t *testing.T) {
	a := NewIDAssigner()
	first := a.Assign("dup", "", "Engineer", "Acme", 0)
	second := a.Assign("dup", "", "Engineer", "Acme", 1)
	third := a.Assign("dup", "", "Engineer", "Acme", 2)

	if first != "dup" {
		t.Fatalf("first occurrence should keep the plain id, got %q", first)
	}
	if second != "dup_0" {
		t.Fatalf("second occurrence should get the smallest free suffix, got %q", second)
	}
	if third != "dup_1" {
		t.Fatalf("third occurrence should get the next free suffix, got %q", third)
	}
}

func TestIDAssignerFiftyIdenticalCards(t *testing.T) {
	a := NewIDAssigner()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := a.Assign("same-id", "", "Same Title", "Same Co", i)
		if seen[id] {
			t.Fatalf("duplicate id assigned at ordinal %d: %q", i, id)
		}
		seen[id] = true
	}
	if len(seen) != 50 {
		t.Fatalf("expected 50 unique ids, got %d", len(seen))
	}
}

func TestContentHashStableAcrossCalls(t *testing.T) {
	h1 := ContentHash("Engineer", "Acme", 0)
	h2 := ContentHash("Engineer", "Acme", 0)
	if h1 != h2 {
		t.Fatalf("content hash should be deterministic, got %q and %q", h1, h2)
	}
	if ContentHash("Engineer", "Acme", 1) == h1 {
		t.Fatalf("different ordinal should produce a different hash")
	}
}
