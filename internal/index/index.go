// Package index implements nearest-neighbor search over unit-normalized
// embeddings. The active snapshot is swapped atomically: searches read
// whichever snapshot they started with, and a failed build leaves the
// previous snapshot active.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
)

// Hit is one nearest-neighbor result.
type Hit struct {
	RecordID string
	// Score is the inner product of unit vectors, i.e. cosine similarity.
	Score float64
}

// Stats describes the active snapshot.
type Stats struct {
	TotalDocuments int
	IndexName      string
	EmbeddingDim   int
}

// snapshot is an immutable build of the index. ids and vectors are parallel
// arrays in record insertion order.
type snapshot struct {
	dim     int
	ids     []string
	vectors [][]float32
}

// Index holds the atomically swappable active snapshot.
type Index struct {
	name   string
	active atomic.Pointer[snapshot]
}

// New creates an empty index with the given name key.
func New(name string) *Index {
	return &Index{name: name}
}

// Name returns the index name key used for persisted artifacts.
func (ix *Index) Name() string { return ix.name }

// Build embeds every record's composite document text, normalizes the
// vectors and swaps the result in atomically. Any embedding failure aborts
// the whole build and keeps the previous snapshot active.
func (ix *Index) Build(ctx context.Context, records []layout.Record, embedder domain.Embedder) error {
	snap := &snapshot{
		ids:     make([]string, 0, len(records)),
		vectors: make([][]float32, 0, len(records)),
	}

	for i := range records {
		rec := &records[i]
		res, err := embedder.Embed(ctx, rec.DocumentText())
		if err != nil {
			return fmt.Errorf("embed record %q: %v: %w", rec.ID(), err, domain.ErrIndexBuild)
		}
		vec := res.Embedding
		if len(vec) == 0 {
			return fmt.Errorf("empty embedding for record %q: %w", rec.ID(), domain.ErrIndexBuild)
		}
		if snap.dim == 0 {
			snap.dim = len(vec)
		}
		if len(vec) != snap.dim {
			return fmt.Errorf("embedding dim %d for record %q, want %d: %w",
				len(vec), rec.ID(), snap.dim, domain.ErrIndexBuild)
		}
		snap.ids = append(snap.ids, rec.ID())
		snap.vectors = append(snap.vectors, normalize(vec))
	}

	ix.active.Store(snap)
	return nil
}

// Search returns up to k neighbors by inner product, descending, ties broken
// by record insertion order. Fewer than k results only when the corpus holds
// fewer than k records.
func (ix *Index) Search(vec []float32, k int) ([]Hit, error) {
	snap := ix.active.Load()
	if snap == nil || len(snap.ids) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != snap.dim {
		return nil, fmt.Errorf("query dim %d, index dim %d", len(vec), snap.dim)
	}

	q := normalize(vec)
	ord := make([]int, len(snap.ids))
	scores := make([]float64, len(snap.ids))
	for i := range snap.ids {
		ord[i] = i
		scores[i] = dot(q, snap.vectors[i])
	}

	// Stable sort over insertion order gives the tie-break for free.
	sort.SliceStable(ord, func(a, b int) bool {
		return scores[ord[a]] > scores[ord[b]]
	})

	if k > len(ord) {
		k = len(ord)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = Hit{RecordID: snap.ids[ord[i]], Score: scores[ord[i]]}
	}
	return hits, nil
}

// Stats reports the active snapshot's size and dimensionality.
func (ix *Index) Stats() Stats {
	snap := ix.active.Load()
	st := Stats{IndexName: ix.name}
	if snap != nil {
		st.TotalDocuments = len(snap.ids)
		st.EmbeddingDim = snap.dim
	}
	return st
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
