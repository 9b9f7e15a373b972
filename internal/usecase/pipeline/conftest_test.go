package pipeline

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
)

// --- Mocks ---

type mockNormalizer struct {
	err error
}

func (m *mockNormalizer) Normalize(_ context.Context, raw string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "normalized:" + raw, nil
}

type mockAnalyzer struct {
	analysis query.Analysis
	err      error
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ string) (query.Analysis, error) {
	if m.err != nil {
		return query.Analysis{}, m.err
	}
	return m.analysis, nil
}

type mockReformulator struct {
	sq  query.SearchQuery
	err error
}

func (m *mockReformulator) Reformulate(_ context.Context, _ string, _ query.Analysis) (query.SearchQuery, error) {
	if m.err != nil {
		return query.SearchQuery{}, m.err
	}
	return m.sq, nil
}

type mockRetriever struct {
	candidates []candidate.Candidate
	err        error
	gotQuery   query.SearchQuery
}

func (m *mockRetriever) Search(_ context.Context, sq query.SearchQuery, _ int, _ bool, _ int) ([]candidate.Candidate, error) {
	m.gotQuery = sq
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

type mockSelector struct {
	selection domain.Selection
	err       error
	got       []domain.SelectorCandidate
}

func (m *mockSelector) SelectAndAdapt(_ context.Context, cands []domain.SelectorCandidate, _ domain.SelectionContext) (domain.Selection, error) {
	m.got = cands
	if m.err != nil {
		return domain.Selection{}, m.err
	}
	return m.selection, nil
}

type mockCorpus struct {
	records map[string]layout.Record
}

func (m *mockCorpus) Get(id string) (layout.Record, bool) {
	rec, ok := m.records[id]
	return rec, ok
}

// --- Builders ---

func record(t *testing.T, id, queryText, objectType string, kinds ...layout.Kind) layout.Record {
	t.Helper()
	components := make([]layout.Component, len(kinds))
	for i, k := range kinds {
		components[i] = layout.Component{Kind: k, Props: map[string]any{}, Value: map[string]any{}}
	}
	rec, err := layout.NewRecord(id, queryText, objectType, "list", nil,
		[]layout.Row{{PatternType: "ROW", Components: components}},
		layout.Metadata{NumRows: 1, NumComponents: len(kinds)})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return rec
}

func corpusOf(t *testing.T, records ...layout.Record) *mockCorpus {
	t.Helper()
	m := &mockCorpus{records: make(map[string]layout.Record, len(records))}
	for _, r := range records {
		m.records[r.ID()] = r
	}
	return m
}

func analysisFixture() query.Analysis {
	return query.Analysis{
		Intent:      "view_data",
		ObjectType:  "customer",
		PatternType: "LIST_SIMPLE",
		Complexity:  "simple",
		Confidence:  0.9,
	}
}

func searchQueryFixture(t *testing.T) query.SearchQuery {
	t.Helper()
	sq, err := query.New("normalized:q", nil, "")
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return sq
}

type deps struct {
	normalizer   *mockNormalizer
	analyzer     *mockAnalyzer
	reformulator *mockReformulator
	retriever    *mockRetriever
	selector     *mockSelector
	corpus       *mockCorpus
}

func happyDeps(t *testing.T) deps {
	t.Helper()
	rec := record(t, "a", "show all customers", "customer", layout.KindTable)
	return deps{
		normalizer:   &mockNormalizer{},
		analyzer:     &mockAnalyzer{analysis: analysisFixture()},
		reformulator: &mockReformulator{sq: searchQueryFixture(t)},
		retriever: &mockRetriever{candidates: []candidate.Candidate{
			{RecordID: "a", VectorScore: 0.8, FinalScore: 0.7},
		}},
		selector: &mockSelector{selection: domain.Selection{SelectedID: "a"}},
		corpus:   corpusOf(t, rec),
	}
}

func newService(t *testing.T, d deps) *Service {
	t.Helper()
	return New(d.normalizer, d.analyzer, d.reformulator, d.retriever, d.selector, d.corpus,
		Options{TopK: 10, FinalK: 3}, zap.NewNop())
}
