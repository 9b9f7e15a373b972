// Package query holds the analyzer output and the reformulated search query
// passed into retrieval.
package query

import (
	"fmt"

	"github.com/kailas-cloud/layoutdex/internal/domain/viewtype"
)

// Analysis is the structured result of query understanding. Produced once
// per request by the external analyzer, read-only afterward.
type Analysis struct {
	Intent          string
	ObjectType      string
	Objects         []string
	PatternType     string
	Complexity      string
	AggregationType string
	GroupByField    string
	HasConditions   bool
	HasSorting      bool
	Confidence      float64
}

// Normalize clamps confidence into [0,1].
func (a Analysis) Normalize() Analysis {
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return a
}

// MaxVariations bounds how many query-text variations fan out to the index.
const MaxVariations = 3

// SearchQuery is a validated retrieval input: a primary query text plus up
// to MaxVariations variations, and an optional required view type.
type SearchQuery struct {
	primary          string
	variations       []string
	requiredViewType viewtype.ViewType
}

// New validates and normalizes a search query. An empty variation list
// defaults to the primary text; longer lists are clamped to MaxVariations.
func New(primary string, variations []string, view viewtype.ViewType) (SearchQuery, error) {
	if primary == "" {
		return SearchQuery{}, fmt.Errorf("primary query is required")
	}
	if !view.IsValid() {
		return SearchQuery{}, fmt.Errorf("invalid view type: %q", view)
	}

	kept := make([]string, 0, MaxVariations)
	for _, v := range variations {
		if v == "" {
			continue
		}
		kept = append(kept, v)
		if len(kept) == MaxVariations {
			break
		}
	}
	if len(kept) == 0 {
		kept = append(kept, primary)
	}

	return SearchQuery{primary: primary, variations: kept, requiredViewType: view}, nil
}

// Primary returns the primary query text scored by the reranker.
func (q *SearchQuery) Primary() string { return q.primary }

// Variations returns the query texts fanned out to the vector index.
func (q *SearchQuery) Variations() []string { return q.variations }

// RequiredViewType returns the view type driving the component boost.
func (q *SearchQuery) RequiredViewType() viewtype.ViewType { return q.requiredViewType }
