package retrieval

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
	"github.com/kailas-cloud/layoutdex/internal/logger"
)

// variationResult is one variation's search outcome. completed stays false
// when the variation's embedding or search failed or was cancelled; that
// variation then contributes nothing to the merge.
type variationResult struct {
	hits      []searchHit
	completed bool
}

type searchHit struct {
	recordID string
	score    float64
}

// aggregate fans the query variations out to the index concurrently and
// merges the results into one deduplicated candidate list.
//
// The merge runs at a single point after every worker returns, iterating
// variations in input order with a strict > comparison, so the candidate set
// and max-scores are identical regardless of completion order. Each
// variation fetches min(2*topK, corpusLen) hits to compensate for overlap
// before the final truncation to topK.
func (s *Service) aggregate(ctx context.Context, sq query.SearchQuery, topK int) []candidate.Candidate {
	variations := sq.Variations()
	fetchK := 2 * topK
	if n := s.corpus.Len(); fetchK > n {
		fetchK = n
	}

	results := make([]variationResult, len(variations))
	var wg sync.WaitGroup
	for i, text := range variations {
		wg.Add(1)
		go func(slot int, text string) {
			defer wg.Done()
			results[slot] = s.searchVariation(ctx, slot, text, fetchK)
		}(i, text)
	}
	wg.Wait()

	// Single serialization point: reduce in variation order.
	position := make(map[string]int)
	merged := make([]candidate.Candidate, 0, fetchK)
	for vi := range results {
		if !results[vi].completed {
			continue
		}
		for _, h := range results[vi].hits {
			if h.recordID == "" {
				continue // index sentinel slot
			}
			if j, seen := position[h.recordID]; seen {
				if h.score > merged[j].VectorScore {
					merged[j].VectorScore = h.score
					merged[j].MatchedVariation = vi
				}
				continue
			}
			position[h.recordID] = len(merged)
			merged = append(merged, candidate.Candidate{
				RecordID:         h.recordID,
				VectorScore:      h.score,
				MatchedVariation: vi,
			})
		}
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].VectorScore > merged[b].VectorScore
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// searchVariation embeds one variation and searches the index under the
// per-call timeout. A failure degrades this variation to an empty result
// instead of failing the request.
func (s *Service) searchVariation(ctx context.Context, slot int, text string, fetchK int) variationResult {
	vctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	log := logger.FromContext(ctx)

	emb, err := s.embedder.Embed(vctx, text)
	if err != nil {
		log.Warn("variation embedding failed, degrading to empty result",
			zap.Int("variation", slot), zap.Error(err))
		return variationResult{}
	}

	hits, err := s.index.Search(emb.Embedding, fetchK)
	if err != nil {
		log.Warn("variation search failed, degrading to empty result",
			zap.Int("variation", slot), zap.Error(err))
		return variationResult{}
	}

	out := variationResult{hits: make([]searchHit, len(hits)), completed: true}
	for i, h := range hits {
		out.hits[i] = searchHit{recordID: h.RecordID, score: h.Score}
	}
	return out
}
