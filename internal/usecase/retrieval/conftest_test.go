package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/layoutdex/internal/corpus"
	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
	"github.com/kailas-cloud/layoutdex/internal/domain/viewtype"
	"github.com/kailas-cloud/layoutdex/internal/index"
)

// --- Mocks ---

// mockEmbedder maps each text to a one-dimensional key vector the mock
// index resolves hit lists by.
type mockEmbedder struct {
	keys  map[string]float32
	errOn map[string]bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.errOn[text] {
		return domain.EmbeddingResult{}, errors.New("provider down")
	}
	return domain.EmbeddingResult{Embedding: []float32{m.keys[text]}}, nil
}

type mockIndex struct {
	hitsByKey    map[float32][]index.Hit
	stats        index.Stats
	buildErr     error
	buildCalls   int
	persistCalls int
}

func (m *mockIndex) Search(vec []float32, k int) ([]index.Hit, error) {
	hits := m.hitsByKey[vec[0]]
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]index.Hit, len(hits))
	copy(out, hits)
	return out, nil
}

func (m *mockIndex) Stats() index.Stats { return m.stats }

func (m *mockIndex) Build(_ context.Context, _ []layout.Record, _ domain.Embedder) error {
	m.buildCalls++
	return m.buildErr
}

func (m *mockIndex) Persist(_ context.Context, _ index.BlobStore) error {
	m.persistCalls++
	return nil
}

type mockReranker struct {
	scores map[string]float64
	err    error
	calls  int
}

func (m *mockReranker) Rerank(_ context.Context, _ string, texts []string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = m.scores[t]
	}
	return out, nil
}

// --- Builders ---

func record(t *testing.T, id, queryText string, kinds ...layout.Kind) layout.Record {
	t.Helper()
	components := make([]layout.Component, len(kinds))
	for i, k := range kinds {
		components[i] = layout.Component{Kind: k, Props: map[string]any{}, Value: map[string]any{}}
	}
	rec, err := layout.NewRecord(id, queryText, "customer", "list", nil,
		[]layout.Row{{PatternType: "ROW", Components: components}},
		layout.Metadata{NumRows: 1, NumComponents: len(kinds)})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return rec
}

func corpusOf(t *testing.T, records ...layout.Record) *corpus.Store {
	t.Helper()
	store, err := corpus.FromRecords(records)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return store
}

func searchQuery(t *testing.T, primary string, variations []string, view viewtype.ViewType) query.SearchQuery {
	t.Helper()
	sq, err := query.New(primary, variations, view)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return sq
}

func newService(t *testing.T, c *corpus.Store, ix *mockIndex, emb *mockEmbedder, rr *mockReranker) *Service {
	t.Helper()
	return New(c, ix, emb, rr, nil, zap.NewNop())
}

func zapNop() *zap.Logger { return zap.NewNop() }
