package pipeline

import (
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
)

// fallbackConfidence is reported when a stage substitutes its documented
// default for a failed result.
const fallbackConfidence = 0.3

// defaultAnalysis stands in when the analyzer fails: generic intent, a crude
// object-type guess from the query tail.
func defaultAnalysis(normalized string) query.Analysis {
	return query.Analysis{
		Intent:      "view_data",
		ObjectType:  guessObject(normalized),
		PatternType: "LIST_SIMPLE",
		Complexity:  "simple",
		Confidence:  fallbackConfidence,
	}
}

// guessObject takes the last query token, singularized. Wrong often enough,
// but it only feeds the fallback layout title.
func guessObject(normalized string) string {
	last := ""
	start := 0
	for i := 0; i <= len(normalized); i++ {
		if i == len(normalized) || normalized[i] == ' ' {
			if i > start {
				last = normalized[start:i]
			}
			start = i + 1
		}
	}
	if len(last) > 1 && last[len(last)-1] == 's' {
		last = last[:len(last)-1]
	}
	return last
}

// defaultRows is the corpus-independent fallback layout: a header plus a
// plain table for the detected object type.
func defaultRows(objectType string) []layout.Row {
	if objectType == "" {
		objectType = "records"
	}
	return []layout.Row{
		{
			PatternType: "HEADER",
			Components: []layout.Component{{
				Kind:  layout.KindHeader,
				Props: map[string]any{},
				Value: map[string]any{"title": objectType},
			}},
		},
		{
			PatternType: "LIST_SIMPLE",
			Components: []layout.Component{{
				Kind:  layout.KindTable,
				Props: map[string]any{"object_type": objectType},
				Value: map[string]any{},
			}},
		},
	}
}
