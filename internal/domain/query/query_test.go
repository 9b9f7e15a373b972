package query

import (
	"testing"

	"github.com/kailas-cloud/layoutdex/internal/domain/viewtype"
)

func TestNew_EmptyPrimaryRejected(t *testing.T) {
	if _, err := New("", nil, viewtype.None); err == nil {
		t.Fatal("expected error for empty primary")
	}
}

func TestNew_DefaultsVariationsToPrimary(t *testing.T) {
	q, err := New("loan summary", nil, viewtype.Card)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vars := q.Variations()
	if len(vars) != 1 || vars[0] != "loan summary" {
		t.Errorf("expected primary as sole variation, got %v", vars)
	}
}

func TestNew_ClampsVariations(t *testing.T) {
	q, err := New("p", []string{"a", "", "b", "c", "d"}, viewtype.None)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vars := q.Variations()
	if len(vars) != MaxVariations {
		t.Fatalf("expected %d variations, got %d", MaxVariations, len(vars))
	}
	// Empty entries are dropped before clamping.
	for i, want := range []string{"a", "b", "c"} {
		if vars[i] != want {
			t.Errorf("variation %d: got %q, want %q", i, vars[i], want)
		}
	}
}

func TestAnalysisNormalize_ClampsConfidence(t *testing.T) {
	if got := (Analysis{Confidence: 1.4}).Normalize().Confidence; got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := (Analysis{Confidence: -0.2}).Normalize().Confidence; got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}
