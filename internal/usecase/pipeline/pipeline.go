// Package pipeline orchestrates the query-to-layout run as a linear chain
// of stages. Every stage has a documented fallback; a run always reaches the
// terminal result, degraded rather than failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
	"github.com/kailas-cloud/layoutdex/internal/domain/viewtype"
	"github.com/kailas-cloud/layoutdex/internal/logger"
	"github.com/kailas-cloud/layoutdex/internal/metrics"
)

// Options tunes the retrieval stage.
type Options struct {
	TopK   int
	FinalK int
	Rerank bool
}

// ApplyDefaults fills zero fields.
func (o *Options) ApplyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 10
	}
	if o.FinalK <= 0 {
		o.FinalK = 3
	}
}

// Service runs the pipeline: Normalize -> Analyze -> Reformulate ->
// Retrieve -> Select -> Validate.
type Service struct {
	normalizer   domain.Normalizer
	analyzer     domain.Analyzer
	reformulator domain.Reformulator
	retriever    Retriever
	selector     domain.Selector
	corpus       CorpusReader
	logger       *zap.Logger
	opts         Options
}

// New creates a pipeline service.
func New(
	normalizer domain.Normalizer,
	analyzer domain.Analyzer,
	reformulator domain.Reformulator,
	retriever Retriever,
	selector domain.Selector,
	corpus CorpusReader,
	opts Options,
	log *zap.Logger,
) *Service {
	opts.ApplyDefaults()
	return &Service{
		normalizer:   normalizer,
		analyzer:     analyzer,
		reformulator: reformulator,
		retriever:    retriever,
		selector:     selector,
		corpus:       corpus,
		logger:       log,
		opts:         opts,
	}
}

// Run executes the pipeline for one raw query. It never returns an error:
// per-stage failures are absorbed by their fallbacks and surface in
// Result.Fallbacks.
func (s *Service) Run(ctx context.Context, raw string) Result {
	st := State{RequestID: uuid.NewString(), RawQuery: raw}

	st = s.normalize(ctx, st)
	st = s.analyze(ctx, st)
	st = s.reformulate(ctx, st)
	st = s.retrieve(ctx, st)
	st = s.selectLayout(ctx, st)
	st = s.validate(ctx, st)

	logger.FromContext(ctx).Info("pipeline run",
		zap.String("request_id", st.RequestID),
		zap.String("selected_id", st.SelectedID),
		zap.Float64("confidence", st.Confidence),
		zap.Int("fallbacks", len(st.Fallbacks)),
		zap.Bool("default_layout", st.UsedDefaultLayout),
	)

	return Result{
		RequestID:         st.RequestID,
		Success:           len(st.Rows) > 0,
		Confidence:        st.Confidence,
		SelectedID:        st.SelectedID,
		ObjectType:        st.ObjectType,
		Rows:              st.Rows,
		UsedDefaultLayout: st.UsedDefaultLayout,
		Fallbacks:         st.Fallbacks,
	}
}

func (s *Service) normalize(ctx context.Context, st State) State {
	defer observe(StageNormalize, time.Now())

	normalized, err := s.normalizer.Normalize(ctx, st.RawQuery)
	if err != nil {
		st = s.absorb(ctx, st, StageNormalize, err)
		st.Normalized = st.RawQuery
		return st
	}
	st.Normalized = normalized
	return st
}

func (s *Service) analyze(ctx context.Context, st State) State {
	defer observe(StageAnalyze, time.Now())

	a, err := s.analyzer.Analyze(ctx, st.Normalized)
	if err != nil {
		st = s.absorb(ctx, st, StageAnalyze, err)
		a = defaultAnalysis(st.Normalized)
	}
	st.Analysis = a.Normalize()
	st.Confidence = st.Analysis.Confidence
	return st
}

func (s *Service) reformulate(ctx context.Context, st State) State {
	defer observe(StageReformulate, time.Now())

	sq, err := s.reformulator.Reformulate(ctx, st.Normalized, st.Analysis)
	if err == nil {
		st.Query = sq
		return st
	}
	st = s.absorb(ctx, st, StageReformulate, err)

	// Single-variation query straight from the normalized text.
	fallback, ferr := query.New(st.Normalized, nil, viewtype.Detect(st.Normalized))
	if ferr != nil {
		// Empty query; leave the zero query, retrieval yields no candidates.
		return st
	}
	st.Query = fallback
	return st
}

func (s *Service) retrieve(ctx context.Context, st State) State {
	defer observe(StageRetrieve, time.Now())

	cands, err := s.retriever.Search(ctx, st.Query, s.opts.TopK, s.opts.Rerank, s.opts.FinalK)
	if err != nil {
		// Empty candidate set is the documented substitute; selection then
		// falls through to the default layout.
		return s.absorb(ctx, st, StageRetrieve, err)
	}
	st.Candidates = cands
	return st
}

func (s *Service) selectLayout(ctx context.Context, st State) State {
	defer observe(StageSelect, time.Now())

	sel := s.selectorCandidates(st.Candidates)
	if len(sel) == 0 {
		st.Rows = defaultRows(st.Analysis.ObjectType)
		st.ObjectType = st.Analysis.ObjectType
		st.UsedDefaultLayout = true
		st.Confidence = fallbackConfidence
		return st
	}

	selection, err := s.selector.SelectAndAdapt(ctx, sel, domain.SelectionContext{
		Query:    st.Normalized,
		Analysis: st.Analysis,
	})
	if err != nil {
		st = s.absorb(ctx, st, StageSelect, err)
		selection = domain.Selection{SelectedID: sel[0].ID}
	}

	chosen := -1
	for i := range sel {
		if sel[i].ID == selection.SelectedID {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		st = s.absorb(ctx, st, StageSelect,
			fmt.Errorf("selector returned id %q not in candidate list: %w",
				selection.SelectedID, domain.ErrSelectionContract))
		chosen = 0
		selection.Adaptations = nil
	}

	st.SelectedID = sel[chosen].ID
	st.ObjectType = sel[chosen].ObjectType
	st.Rows = applyAdaptations(sel[chosen].Rows, selection.Adaptations)
	return st
}

func (s *Service) validate(ctx context.Context, st State) State {
	defer observe(StageValidate, time.Now())

	if err := layout.ValidateRows(st.Rows); err != nil {
		st = s.absorb(ctx, st, StageValidate, fmt.Errorf("%s: %w", err, domain.ErrLayoutInvalid))
		st.Confidence *= 0.5
	}
	return st
}

// selectorCandidates converts ranked candidates into the selector view,
// copying rows so the selector never touches corpus records. Candidates
// whose record is missing from the corpus are dropped.
func (s *Service) selectorCandidates(cands []candidate.Candidate) []domain.SelectorCandidate {
	out := make([]domain.SelectorCandidate, 0, len(cands))
	for _, c := range cands {
		rec, ok := s.corpus.Get(c.RecordID)
		if !ok {
			continue
		}
		out = append(out, domain.SelectorCandidate{
			ID:         rec.ID(),
			QueryText:  rec.QueryText(),
			ObjectType: rec.ObjectType(),
			LayoutType: rec.LayoutType(),
			Score:      c.FinalScore,
			Rows:       layout.CloneRows(rec.Rows()),
		})
	}
	return out
}

// applyAdaptations applies add-only selection adaptations. Out-of-range or
// malformed operations are ignored rather than failing the run.
func applyAdaptations(rows []layout.Row, adaptations []domain.Adaptation) []layout.Row {
	for _, a := range adaptations {
		switch a.Op {
		case domain.OpAddRow:
			if a.Row != nil {
				rows = append(rows, a.Row.Clone())
			}
		case domain.OpAddComponent:
			if a.Component != nil && a.RowIndex >= 0 && a.RowIndex < len(rows) {
				rows[a.RowIndex].Components = append(rows[a.RowIndex].Components, a.Component.Clone())
			}
		}
	}
	return rows
}

func (s *Service) absorb(ctx context.Context, st State, stage Stage, err error) State {
	metrics.PipelineFallbacksTotal.WithLabelValues(string(stage), errorKind(err)).Inc()
	logger.FromContext(ctx).Warn("stage fallback",
		zap.String("request_id", st.RequestID),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	st.Fallbacks = append(st.Fallbacks, StageError{Stage: stage, Err: err})
	return st
}

func observe(stage Stage, start time.Time) {
	metrics.PipelineStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrSelectionContract):
		return "selection_contract"
	case errors.Is(err, domain.ErrLayoutInvalid):
		return "layout_invalid"
	case errors.Is(err, domain.ErrAnalysisFailed):
		return "analysis_failed"
	case errors.Is(err, domain.ErrRerankFailed):
		return "rerank_failed"
	default:
		return "error"
	}
}
