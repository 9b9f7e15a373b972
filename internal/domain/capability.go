package domain

import (
	"context"

	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
)

// Normalizer rewrites a raw user query into canonical text.
type Normalizer interface {
	Normalize(ctx context.Context, raw string) (string, error)
}

// Analyzer extracts structured intent from a normalized query.
type Analyzer interface {
	Analyze(ctx context.Context, normalized string) (query.Analysis, error)
}

// Reformulator derives the retrieval query from the normalized text and its
// analysis: up to query.MaxVariations variations plus the required view type.
type Reformulator interface {
	Reformulate(ctx context.Context, normalized string, analysis query.Analysis) (query.SearchQuery, error)
}

// Reranker scores (query, text) pairs with a pairwise relevance model.
// Scores are returned parallel to texts; higher means more relevant, and
// values are comparable only within one call.
type Reranker interface {
	Rerank(ctx context.Context, queryText string, texts []string) ([]float64, error)
}

// SelectorCandidate is the view of a ranked candidate handed to the selector.
// It carries a copy of the rows so the selector never touches corpus records.
type SelectorCandidate struct {
	ID         string
	QueryText  string
	ObjectType string
	LayoutType string
	Score      float64
	Rows       []layout.Row
}

// AdaptationOp enumerates the add-only operations a selector may request.
type AdaptationOp string

const (
	// OpAddRow appends a row to the selected layout.
	OpAddRow AdaptationOp = "add_row"
	// OpAddComponent appends a component to an existing row.
	OpAddComponent AdaptationOp = "add_component"
)

// Adaptation is one add-only change to the selected layout. Removal is not
// expressible: the core applies adaptations itself.
type Adaptation struct {
	Op        AdaptationOp
	RowIndex  int
	Row       *layout.Row
	Component *layout.Component
}

// Selection is the selector's answer: the id of one supplied candidate plus
// optional add-only adaptations.
type Selection struct {
	SelectedID  string
	Adaptations []Adaptation
}

// SelectionContext gives the selector the query context alongside candidates.
type SelectionContext struct {
	Query    string
	Analysis query.Analysis
}

// Selector picks one candidate from the supplied list and may adapt it.
// The returned id must reference a supplied candidate; the core enforces
// this and substitutes the top-ranked candidate on violation.
type Selector interface {
	SelectAndAdapt(ctx context.Context, candidates []SelectorCandidate, sctx SelectionContext) (Selection, error)
}
