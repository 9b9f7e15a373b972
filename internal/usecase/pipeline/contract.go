package pipeline

import (
	"context"

	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
)

// Retriever runs the candidate search. Implemented by retrieval.Service.
type Retriever interface {
	Search(ctx context.Context, sq query.SearchQuery, topK int, rerank bool, finalK int) ([]candidate.Candidate, error)
}

// CorpusReader resolves candidate ids to layout records.
type CorpusReader interface {
	Get(id string) (layout.Record, bool)
}
