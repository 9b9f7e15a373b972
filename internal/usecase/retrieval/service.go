// Package retrieval implements the candidate pipeline: concurrent
// multi-variation vector search, component-match boosting, pairwise
// reranking and score fusion.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
	"github.com/kailas-cloud/layoutdex/internal/index"
	"github.com/kailas-cloud/layoutdex/internal/logger"
	"github.com/kailas-cloud/layoutdex/internal/metrics"
)

// Default per-call timeouts for the slow external calls.
const (
	defaultSearchTimeout = 5 * time.Second
	defaultRerankTimeout = 10 * time.Second
)

// Service handles layout candidate retrieval and ranking.
type Service struct {
	corpus   CorpusReader
	index    Index
	embedder Embedder
	reranker Reranker
	blobs    index.BlobStore
	logger   *zap.Logger

	searchTimeout time.Duration
	rerankTimeout time.Duration
}

// New creates a retrieval service. blobs may be nil; Reindex then skips
// persisting artifacts.
func New(corpus CorpusReader, ix Index, embedder Embedder, reranker Reranker, blobs index.BlobStore, log *zap.Logger) *Service {
	return &Service{
		corpus:        corpus,
		index:         ix,
		embedder:      embedder,
		reranker:      reranker,
		blobs:         blobs,
		logger:        log,
		searchTimeout: defaultSearchTimeout,
		rerankTimeout: defaultRerankTimeout,
	}
}

// WithTimeouts overrides the per-call timeouts.
func (s *Service) WithTimeouts(search, rerank time.Duration) *Service {
	if search > 0 {
		s.searchTimeout = search
	}
	if rerank > 0 {
		s.rerankTimeout = rerank
	}
	return s
}

// Search runs aggregation, boosting and (optionally) reranking.
//
// With rerank disabled the returned list is sorted by vectorScore +
// componentBoost descending and truncated to finalK. With rerank enabled it
// is sorted by rerankScore descending; on relevance-model failure the stage
// is skipped and the vector+boost order is returned instead. An empty result
// is a valid outcome, never an error.
func (s *Service) Search(ctx context.Context, sq query.SearchQuery, topK int, rerank bool, finalK int) ([]candidate.Candidate, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be >= 1, got %d", topK)
	}
	if finalK < 1 {
		return nil, fmt.Errorf("finalK must be >= 1, got %d", finalK)
	}
	if finalK > topK {
		finalK = topK
	}

	cands := s.aggregate(ctx, sq, topK)
	if len(cands) == 0 {
		metrics.SearchCandidatesReturned.Observe(0)
		return nil, nil
	}

	required := sq.RequiredViewType().RequiredComponents()
	for i := range cands {
		rec, ok := s.corpus.Get(cands[i].RecordID)
		if !ok {
			continue // index ahead of corpus; skip boost, keep vector score
		}
		boostCandidate(rec, required, &cands[i])
	}

	// Default order before any reranking: vector score + boost.
	sort.SliceStable(cands, func(a, b int) bool {
		return cands[a].VectorScore+cands[a].ComponentBoost > cands[b].VectorScore+cands[b].ComponentBoost
	})
	for i := range cands {
		cands[i].FinalScore = fuse(cands[i])
	}

	if !rerank {
		if len(cands) > finalK {
			cands = cands[:finalK]
		}
		metrics.SearchCandidatesReturned.Observe(float64(len(cands)))
		return cands, nil
	}

	reranked, err := s.rerank(ctx, sq.Primary(), cands, finalK)
	if err != nil {
		// Rerank is skipped, not the whole request.
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Warn("rerank failed, falling back to vector+boost order", zap.Error(err))
		if len(cands) > finalK {
			cands = cands[:finalK]
		}
		metrics.SearchCandidatesReturned.Observe(float64(len(cands)))
		return cands, nil
	}

	metrics.RerankRequestsTotal.WithLabelValues("success").Inc()
	metrics.SearchCandidatesReturned.Observe(float64(len(reranked)))
	return reranked, nil
}

// Stats reports the active index snapshot.
func (s *Service) Stats() index.Stats {
	return s.index.Stats()
}

// Reindex rebuilds the index out-of-band and swaps it in atomically, then
// persists the new artifacts. In-flight searches keep their snapshot.
func (s *Service) Reindex(ctx context.Context) error {
	if err := s.index.Build(ctx, s.corpus.All(), s.embedder); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	if s.blobs != nil {
		if err := s.index.Persist(ctx, s.blobs); err != nil {
			return fmt.Errorf("persist reindexed artifacts: %w", err)
		}
	}
	s.logger.Info("index rebuilt", zap.Int("documents", s.index.Stats().TotalDocuments))
	return nil
}
