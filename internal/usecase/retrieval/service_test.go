package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/viewtype"
	"github.com/kailas-cloud/layoutdex/internal/index"
)

func TestFuse_WeightsAndBonus(t *testing.T) {
	c := candidate.Candidate{
		VectorScore:           0.8,
		RerankScore:           2.0,
		ComponentBoost:        0.3,
		HasRequiredComponents: true,
	}
	want := 0.3*0.8 + 0.5*2.0 + 0.2*0.3 + 0.1
	if got := fuse(c); math.Abs(got-want) > 1e-9 {
		t.Errorf("fuse = %v, want %v", got, want)
	}

	// Bonus requires hasRequiredComponents AND empty missing set.
	c.MissingComponents = []layout.Kind{layout.KindMetric}
	want -= 0.1
	if got := fuse(c); math.Abs(got-want) > 1e-9 {
		t.Errorf("fuse with missing = %v, want %v", got, want)
	}
}

func TestSearch_NoRerank_SortedByVectorPlusBoost(t *testing.T) {
	// b wins on raw vector score, a wins once the table boost lands.
	c := corpusOf(t,
		record(t, "a", "customer table", layout.KindTable),
		record(t, "b", "customer text", layout.KindText),
	)
	emb := &mockEmbedder{keys: map[string]float32{"q": 1}}
	ix := &mockIndex{hitsByKey: map[float32][]index.Hit{
		1: {{RecordID: "b", Score: 0.75}, {RecordID: "a", Score: 0.6}},
	}}
	rr := &mockReranker{}
	svc := newService(t, c, ix, emb, rr)

	sq := searchQuery(t, "q", []string{"q"}, viewtype.Table)
	got, err := svc.Search(context.Background(), sq, 10, false, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	// a: 0.6 + 0.3 = 0.9 beats b: 0.75 + 0.
	if got[0].RecordID != "a" {
		t.Errorf("expected a first after boost, got %s", got[0].RecordID)
	}
	if rr.calls != 0 {
		t.Error("reranker must not be called with rerank disabled")
	}
}

func TestSearch_Rerank_OrderByRerankScore(t *testing.T) {
	c := corpusOf(t,
		record(t, "a", "loans by branch", layout.KindTable),
		record(t, "b", "branch loan summary", layout.KindTable),
		record(t, "c", "customer list", layout.KindTable),
	)
	emb := &mockEmbedder{keys: map[string]float32{"branch loans": 1}}
	ix := &mockIndex{hitsByKey: map[float32][]index.Hit{
		1: {{RecordID: "a", Score: 0.9}, {RecordID: "b", Score: 0.8}, {RecordID: "c", Score: 0.7}},
	}}
	rr := &mockReranker{scores: map[string]float64{
		"loans by branch":     1.2,
		"branch loan summary": 3.4,
		"customer list":       -0.5,
	}}
	svc := newService(t, c, ix, emb, rr)

	sq := searchQuery(t, "branch loans", []string{"branch loans"}, viewtype.Table)
	got, err := svc.Search(context.Background(), sq, 10, true, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected finalK=2 candidates, got %d", len(got))
	}
	if got[0].RecordID != "b" || got[1].RecordID != "a" {
		t.Errorf("expected rerank order [b a], got [%s %s]", got[0].RecordID, got[1].RecordID)
	}
	if !got[0].Reranked {
		t.Error("expected Reranked=true")
	}
	// The returned order is by rerankScore even though finalScore carries
	// different weights.
	if got[0].RerankScore < got[1].RerankScore {
		t.Error("not sorted by rerank score")
	}
	if got[0].FinalScore == 0 {
		t.Error("finalScore must be retained for diagnostics")
	}
}

func TestSearch_RerankFailure_FallsBackToVectorBoostOrder(t *testing.T) {
	c := corpusOf(t,
		record(t, "a", "qa", layout.KindTable),
		record(t, "b", "qb", layout.KindTable),
	)
	emb := &mockEmbedder{keys: map[string]float32{"q": 1}}
	ix := &mockIndex{hitsByKey: map[float32][]index.Hit{
		1: {{RecordID: "a", Score: 0.9}, {RecordID: "b", Score: 0.8}},
	}}
	rr := &mockReranker{err: errors.New("model unavailable")}
	svc := newService(t, c, ix, emb, rr)

	sq := searchQuery(t, "q", []string{"q"}, viewtype.None)
	got, err := svc.Search(context.Background(), sq, 10, true, 2)
	if err != nil {
		t.Fatalf("rerank failure must not fail the request: %v", err)
	}
	if len(got) != 2 || got[0].RecordID != "a" {
		t.Errorf("expected vector+boost fallback order, got %v", got)
	}
	if got[0].Reranked {
		t.Error("fallback candidates must not be marked reranked")
	}
}

func TestSearch_EmptyOutcomeIsValid(t *testing.T) {
	c := corpusOf(t)
	emb := &mockEmbedder{keys: map[string]float32{"q": 1}}
	svc := newService(t, c, &mockIndex{}, emb, &mockReranker{})

	sq := searchQuery(t, "q", []string{"q"}, viewtype.None)
	got, err := svc.Search(context.Background(), sq, 5, true, 3)
	if err != nil {
		t.Fatalf("empty corpus must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %v", got)
	}
}

func TestSearch_Idempotent(t *testing.T) {
	c := corpusOf(t,
		record(t, "a", "qa", layout.KindTable),
		record(t, "b", "qb", layout.KindList),
	)
	emb := &mockEmbedder{keys: map[string]float32{"q": 1}}
	ix := &mockIndex{hitsByKey: map[float32][]index.Hit{
		1: {{RecordID: "a", Score: 0.9}, {RecordID: "b", Score: 0.8}},
	}}
	rr := &mockReranker{scores: map[string]float64{"qa": 1, "qb": 2}}
	svc := newService(t, c, ix, emb, rr)

	sq := searchQuery(t, "q", []string{"q"}, viewtype.Table)
	first, err := svc.Search(context.Background(), sq, 10, true, 10)
	if err != nil {
		t.Fatalf("first Search: %v", err)
	}
	second, err := svc.Search(context.Background(), sq, 10, true, 10)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].RecordID != second[i].RecordID || first[i].FinalScore != second[i].FinalScore {
			t.Errorf("result %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSearch_InvalidArguments(t *testing.T) {
	svc := newService(t, corpusOf(t), &mockIndex{}, &mockEmbedder{}, &mockReranker{})
	sq := searchQuery(t, "q", nil, viewtype.None)

	if _, err := svc.Search(context.Background(), sq, 0, false, 1); err == nil {
		t.Error("expected error for topK=0")
	}
	if _, err := svc.Search(context.Background(), sq, 5, false, 0); err == nil {
		t.Error("expected error for finalK=0")
	}
}

func TestReindex_BuildsAndPersists(t *testing.T) {
	c := corpusOf(t, record(t, "a", "qa", layout.KindTable))
	ix := &mockIndex{}
	svc := New(c, ix, &mockEmbedder{}, &mockReranker{}, &nopBlobs{}, zapNop())

	if err := svc.Reindex(context.Background()); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if ix.buildCalls != 1 || ix.persistCalls != 1 {
		t.Errorf("expected 1 build and 1 persist, got %d/%d", ix.buildCalls, ix.persistCalls)
	}
}

func TestReindex_BuildFailurePropagates(t *testing.T) {
	c := corpusOf(t, record(t, "a", "qa", layout.KindTable))
	ix := &mockIndex{buildErr: errors.New("embed failed")}
	svc := New(c, ix, &mockEmbedder{}, &mockReranker{}, &nopBlobs{}, zapNop())

	if err := svc.Reindex(context.Background()); err == nil {
		t.Fatal("expected build error to propagate")
	}
	if ix.persistCalls != 0 {
		t.Error("must not persist after failed build")
	}
}

type nopBlobs struct{}

func (*nopBlobs) Get(_ context.Context, _ string) ([]byte, error) { return nil, errors.New("empty") }
func (*nopBlobs) Set(_ context.Context, _ string, _ []byte) error { return nil }
