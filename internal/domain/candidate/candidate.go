// Package candidate holds the per-request retrieval candidate: a corpus
// record id plus the scores each retrieval phase attaches to it. Candidates
// are created during aggregation, enriched by the booster, the reranker and
// fusion, and discarded when the request completes.
package candidate

import "github.com/kailas-cloud/layoutdex/internal/domain/layout"

// Candidate is one corpus record under consideration for a request.
type Candidate struct {
	// RecordID references the corpus record; the full structure is not
	// copied until final selection.
	RecordID string
	// VectorScore is the cosine similarity in [-1,1] (inner product of
	// unit vectors) of the best-matching variation.
	VectorScore float64
	// MatchedVariation is the index of the variation that produced
	// VectorScore, for traceability.
	MatchedVariation int
	// HasRequiredComponents is true when no required component is missing
	// (vacuously true for an empty required set).
	HasRequiredComponents bool
	// MissingComponents lists required kinds absent from the layout.
	MissingComponents []layout.Kind
	// ComponentBoost is the heuristic reward in [0,0.3].
	ComponentBoost float64
	// RerankScore is the pairwise relevance-model score; only meaningful
	// when Reranked is true.
	RerankScore float64
	// Reranked reports whether the relevance model scored this candidate.
	Reranked bool
	// FinalScore is the fused diagnostic score. It is not the sort key of
	// the returned order when reranking is enabled.
	FinalScore float64
}
