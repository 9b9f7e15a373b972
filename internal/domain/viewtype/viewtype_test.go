package viewtype

import (
	"testing"

	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
)

func TestRequiredComponents(t *testing.T) {
	tests := []struct {
		view ViewType
		want []layout.Kind
	}{
		{Table, []layout.Kind{layout.KindTable}},
		{List, []layout.Kind{layout.KindList, layout.KindListCard}},
		{Card, []layout.Kind{layout.KindCard, layout.KindMetric, layout.KindDashlet}},
		{None, nil},
	}
	for _, tt := range tests {
		got := tt.view.RequiredComponents()
		if len(got) != len(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.view, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s[%d]: got %s, want %s", tt.view, i, got[i], tt.want[i])
			}
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want ViewType
	}{
		{"show branch-wise loan summary", Card},
		{"customer table with filters", Table},
		{"list recent payments", List},
		{"show all customers", Table},
		{"open the account", None},
	}
	for _, tt := range tests {
		if got := Detect(tt.text); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestFromPattern(t *testing.T) {
	// LIST_SIMPLE resolves to table regardless of query wording.
	if got := FromPattern("LIST_SIMPLE", "show all customers"); got != Table {
		t.Errorf("LIST_SIMPLE: got %q, want table", got)
	}
	if got := FromPattern("DASHBOARD", "anything"); got != Card {
		t.Errorf("DASHBOARD: got %q, want card", got)
	}
	// Unknown pattern falls back to keyword detection.
	if got := FromPattern("CUSTOM", "payments list"); got != List {
		t.Errorf("CUSTOM fallback: got %q, want list", got)
	}
}
