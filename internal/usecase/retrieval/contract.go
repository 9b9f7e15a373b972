package retrieval

import (
	"context"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/index"
)

// Index is the vector-index contract consumed by retrieval.
type Index interface {
	Search(vec []float32, k int) ([]index.Hit, error)
	Stats() index.Stats
	Build(ctx context.Context, records []layout.Record, embedder domain.Embedder) error
	Persist(ctx context.Context, store index.BlobStore) error
}

// CorpusReader resolves candidate record ids against the loaded corpus.
type CorpusReader interface {
	Get(id string) (layout.Record, bool)
	All() []layout.Record
	Len() int
}

// Embedder vectorizes query variations.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Reranker scores (query, text) pairs with a pairwise relevance model.
type Reranker interface {
	Rerank(ctx context.Context, queryText string, texts []string) ([]float64, error)
}
