package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
)

// Score fusion weights. The fused score is diagnostic: when reranking is
// enabled the returned order is by rerank score, not by finalScore.
const (
	vectorWeight   = 0.3
	rerankWeight   = 0.5
	boostWeight    = 0.2
	fullMatchBonus = 0.1
)

// fuse computes the final diagnostic score for one candidate.
func fuse(c candidate.Candidate) float64 {
	score := vectorWeight*c.VectorScore + rerankWeight*c.RerankScore + boostWeight*c.ComponentBoost
	if c.HasRequiredComponents && len(c.MissingComponents) == 0 {
		score += fullMatchBonus
	}
	return score
}

// rerank scores each (primary, candidate queryText) pair with the relevance
// model and reorders by rerank score descending, truncated to finalK.
// Returns ErrRerankFailed when the model call fails or answers with the
// wrong shape; the caller falls back to vector+boost ordering.
func (s *Service) rerank(ctx context.Context, primary string, cands []candidate.Candidate, finalK int) ([]candidate.Candidate, error) {
	texts := make([]string, len(cands))
	for i := range cands {
		rec, ok := s.corpus.Get(cands[i].RecordID)
		if !ok {
			return nil, fmt.Errorf("candidate %q not in corpus: %w", cands[i].RecordID, domain.ErrRerankFailed)
		}
		texts[i] = rec.QueryText()
	}

	rctx, cancel := context.WithTimeout(ctx, s.rerankTimeout)
	defer cancel()

	scores, err := s.reranker.Rerank(rctx, primary, texts)
	if err != nil {
		return nil, fmt.Errorf("rerank: %v: %w", err, domain.ErrRerankFailed)
	}
	if len(scores) != len(cands) {
		return nil, fmt.Errorf("rerank returned %d scores for %d candidates: %w",
			len(scores), len(cands), domain.ErrRerankFailed)
	}

	out := make([]candidate.Candidate, len(cands))
	copy(out, cands)
	for i := range out {
		out[i].RerankScore = scores[i]
		out[i].Reranked = true
		out[i].FinalScore = fuse(out[i])
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].RerankScore > out[b].RerankScore
	})
	if len(out) > finalK {
		out = out[:finalK]
	}
	return out, nil
}
