// Package chi is the HTTP front door: a thin JSON layer over the retrieval
// and pipeline services.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
	"github.com/kailas-cloud/layoutdex/internal/domain/viewtype"
	"github.com/kailas-cloud/layoutdex/internal/index"
	healthuc "github.com/kailas-cloud/layoutdex/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/layoutdex/internal/usecase/pipeline"
)

// Error response codes.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeNotFound          = "not_found"
	codeEmbeddingProvider = "embedding_provider_error"
	codeIndexBuildFailed  = "index_build_failed"
	codeInternalError     = "internal_error"
)

// ErrorResponse is the uniform JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchService runs candidate retrieval and index maintenance.
type SearchService interface {
	Search(ctx context.Context, sq query.SearchQuery, topK int, rerank bool, finalK int) ([]candidate.Candidate, error)
	Stats() index.Stats
	Reindex(ctx context.Context) error
}

// PipelineRunner runs the full query-to-layout pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, raw string) pipelineuc.Result
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP API.
type Server struct {
	search        SearchService
	pipeline      PipelineRunner
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search SearchService, pipeline PipelineRunner, health HealthService, logger *zap.Logger) *Server {
	s := &Server{
		search:   search,
		pipeline: pipeline,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrCorpusInvalid, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrIndexBuild, http.StatusInternalServerError, codeIndexBuildFailed),
	}
	return s
}

// Register mounts the API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/search", s.SearchCandidates)
	r.Post("/v1/layout", s.GenerateLayout)
	r.Get("/v1/stats", s.GetStats)
	r.Post("/v1/reindex", s.Reindex)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// searchRequest accepts query as either a string or a list of variations.
type searchRequest struct {
	Query    json.RawMessage `json:"query"`
	TopK     int             `json:"top_k"`
	FinalK   int             `json:"final_k"`
	Rerank   bool            `json:"rerank"`
	ViewType string          `json:"view_type"`
}

type candidateItem struct {
	RecordID              string   `json:"record_id"`
	VectorScore           float64  `json:"vector_score"`
	MatchedVariation      int      `json:"matched_variation"`
	ComponentBoost        float64  `json:"component_boost"`
	HasRequiredComponents bool     `json:"has_required_components"`
	MissingComponents     []string `json:"missing_components,omitempty"`
	RerankScore           *float64 `json:"rerank_score,omitempty"`
	FinalScore            float64  `json:"final_score"`
}

type searchResponse struct {
	Items []candidateItem `json:"items"`
	Total int             `json:"total"`
}

// SearchCandidates handles POST /v1/search.
func (s *Server) SearchCandidates(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	primary, variations, err := parseQueryField(req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	view := viewtype.ViewType(req.ViewType)
	if !view.IsValid() {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("view_type must be one of table, list, card; got %q", req.ViewType))
		return
	}

	sq, err := query.New(primary, variations, view)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = 10
	}
	finalK := req.FinalK
	if finalK == 0 {
		finalK = topK
	}

	cands, err := s.search.Search(r.Context(), sq, topK, req.Rerank, finalK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]candidateItem, len(cands))
	for i := range cands {
		items[i] = candidateToItem(&cands[i])
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

// parseQueryField accepts "query": "text" or "query": ["v1", "v2"].
func parseQueryField(raw json.RawMessage) (string, []string, error) {
	if len(raw) == 0 {
		return "", nil, errors.New("query is required")
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return "", nil, errors.New("query must not be empty")
		}
		return single, nil, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return "", nil, errors.New("query must be a string or an array of strings")
	}
	if len(many) == 0 || many[0] == "" {
		return "", nil, errors.New("query list must start with a non-empty primary")
	}
	return many[0], many, nil
}

func candidateToItem(c *candidate.Candidate) candidateItem {
	item := candidateItem{
		RecordID:              c.RecordID,
		VectorScore:           c.VectorScore,
		MatchedVariation:      c.MatchedVariation,
		ComponentBoost:        c.ComponentBoost,
		HasRequiredComponents: c.HasRequiredComponents,
		FinalScore:            c.FinalScore,
	}
	if len(c.MissingComponents) > 0 {
		item.MissingComponents = make([]string, len(c.MissingComponents))
		for i, k := range c.MissingComponents {
			item.MissingComponents[i] = string(k)
		}
	}
	if c.Reranked {
		score := c.RerankScore
		item.RerankScore = &score
	}
	return item
}

type layoutRequest struct {
	Query string `json:"query"`
}

type stageErrorItem struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type layoutResponse struct {
	RequestID         string           `json:"request_id"`
	Success           bool             `json:"success"`
	Confidence        float64          `json:"confidence"`
	SelectedID        string           `json:"selected_id,omitempty"`
	ObjectType        string           `json:"object_type,omitempty"`
	UsedDefaultLayout bool             `json:"used_default_layout"`
	Rows              []layout.Row     `json:"rows"`
	Fallbacks         []stageErrorItem `json:"fallbacks,omitempty"`
}

// GenerateLayout handles POST /v1/layout: the full pipeline run.
func (s *Server) GenerateLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	res := s.pipeline.Run(r.Context(), req.Query)

	resp := layoutResponse{
		RequestID:         res.RequestID,
		Success:           res.Success,
		Confidence:        res.Confidence,
		SelectedID:        res.SelectedID,
		ObjectType:        res.ObjectType,
		UsedDefaultLayout: res.UsedDefaultLayout,
		Rows:              res.Rows,
	}
	for _, f := range res.Fallbacks {
		resp.Fallbacks = append(resp.Fallbacks, stageErrorItem{
			Stage: string(f.Stage),
			Error: f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	TotalDocuments int    `json:"total_documents"`
	IndexName      string `json:"index_name"`
	EmbeddingDim   int    `json:"embedding_dim"`
}

// GetStats handles GET /v1/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	st := s.search.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		TotalDocuments: st.TotalDocuments,
		IndexName:      st.IndexName,
		EmbeddingDim:   st.EmbeddingDim,
	})
}

// Reindex handles POST /v1/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	if err := s.search.Reindex(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	st := s.search.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": st.TotalDocuments,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrCorpusInvalid,
		domain.ErrEmbeddingProvider,
		domain.ErrIndexBuild,
		domain.ErrIndexLoadMismatch,
		domain.ErrRerankFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
