package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
	"github.com/kailas-cloud/layoutdex/internal/domain/viewtype"
)

// Client implements the language-model capabilities (normalize, analyze,
// reformulate, rerank, select) over an OpenAI-compatible chat API with
// JSON-mode responses.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ClientConfig holds the LLM provider settings.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewClient creates an OpenAI-compatible LLM capability client.
func NewClient(cfg *ClientConfig) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

const (
	normalizeSystem = "Rewrite the user's UI request into one canonical lowercase sentence. " +
		`Respond with JSON: {"normalized": "..."}`

	analyzeSystem = "Extract structured intent from a UI layout request. Respond with JSON: " +
		`{"intent": "...", "object_type": "...", "objects": [...], "pattern_type": "LIST_SIMPLE|LIST_DETAILED|LIST_CARDS|DASHBOARD|SUMMARY|DETAIL", ` +
		`"complexity": "simple|medium|complex", "aggregation_type": "", "group_by_field": "", ` +
		`"has_conditions": false, "has_sorting": false, "confidence": 0.0}`

	reformulateSystem = "Produce up to 3 short search-query variations for retrieving UI layouts, " +
		`plus the required view type. Respond with JSON: {"variations": ["..."], "view_type": "table|list|card|"}`

	rerankSystem = "Score how well each numbered layout description answers the query, higher is better. " +
		`Respond with JSON: {"scores": [..]} with exactly one number per description, in order.`

	selectSystem = "Pick the best layout candidate for the query. You must return the id of one " +
		"supplied candidate. Optionally request add-only adaptations. Respond with JSON: " +
		`{"selected_id": "...", "adaptations": [{"op": "add_row|add_component", "row_index": 0, "row": {...}, "component": {...}}]}`
)

// Normalize implements domain.Normalizer.
func (c *Client) Normalize(ctx context.Context, raw string) (string, error) {
	var out struct {
		Normalized string `json:"normalized"`
	}
	if err := c.completeJSON(ctx, normalizeSystem, raw, &out); err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}
	if out.Normalized == "" {
		return "", fmt.Errorf("normalize: empty model response")
	}
	return out.Normalized, nil
}

// Analyze implements domain.Analyzer.
func (c *Client) Analyze(ctx context.Context, normalized string) (query.Analysis, error) {
	var out struct {
		Intent          string   `json:"intent"`
		ObjectType      string   `json:"object_type"`
		Objects         []string `json:"objects"`
		PatternType     string   `json:"pattern_type"`
		Complexity      string   `json:"complexity"`
		AggregationType string   `json:"aggregation_type"`
		GroupByField    string   `json:"group_by_field"`
		HasConditions   bool     `json:"has_conditions"`
		HasSorting      bool     `json:"has_sorting"`
		Confidence      float64  `json:"confidence"`
	}
	if err := c.completeJSON(ctx, analyzeSystem, normalized, &out); err != nil {
		return query.Analysis{}, fmt.Errorf("analyze: %s: %w", err, domain.ErrAnalysisFailed)
	}
	if out.Intent == "" {
		return query.Analysis{}, fmt.Errorf("analyze: empty intent: %w", domain.ErrAnalysisFailed)
	}

	a := query.Analysis{
		Intent:          out.Intent,
		ObjectType:      out.ObjectType,
		Objects:         out.Objects,
		PatternType:     out.PatternType,
		Complexity:      out.Complexity,
		AggregationType: out.AggregationType,
		GroupByField:    out.GroupByField,
		HasConditions:   out.HasConditions,
		HasSorting:      out.HasSorting,
		Confidence:      out.Confidence,
	}
	return a.Normalize(), nil
}

// Reformulate implements domain.Reformulator. An unknown view type from the
// model falls back to pattern/keyword resolution.
func (c *Client) Reformulate(ctx context.Context, normalized string, a query.Analysis) (query.SearchQuery, error) {
	var out struct {
		Variations []string `json:"variations"`
		ViewType   string   `json:"view_type"`
	}
	user := fmt.Sprintf("query: %s\nintent: %s\nobject type: %s\npattern: %s",
		normalized, a.Intent, a.ObjectType, a.PatternType)
	if err := c.completeJSON(ctx, reformulateSystem, user, &out); err != nil {
		return query.SearchQuery{}, fmt.Errorf("reformulate: %w", err)
	}

	view := viewtype.ViewType(out.ViewType)
	if !view.IsValid() {
		view = viewtype.FromPattern(a.PatternType, normalized)
	}

	sq, err := query.New(normalized, out.Variations, view)
	if err != nil {
		return query.SearchQuery{}, fmt.Errorf("reformulate: %w", err)
	}
	return sq, nil
}

// Rerank implements domain.Reranker. A score-count mismatch is a reranker
// failure: the caller falls back to vector+boost ordering.
func (c *Client) Rerank(ctx context.Context, queryText string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	user := "query: " + queryText + "\n"
	for i, t := range texts {
		user += fmt.Sprintf("%d. %s\n", i+1, t)
	}

	var out struct {
		Scores []float64 `json:"scores"`
	}
	if err := c.completeJSON(ctx, rerankSystem, user, &out); err != nil {
		return nil, fmt.Errorf("rerank: %s: %w", err, domain.ErrRerankFailed)
	}
	if len(out.Scores) != len(texts) {
		return nil, fmt.Errorf("rerank: got %d scores for %d texts: %w",
			len(out.Scores), len(texts), domain.ErrRerankFailed)
	}
	return out.Scores, nil
}

// selectionWire is the JSON shape the selection prompt asks for. Rows and
// components reuse the corpus wire format.
type selectionWire struct {
	SelectedID  string `json:"selected_id"`
	Adaptations []struct {
		Op        string            `json:"op"`
		RowIndex  int               `json:"row_index"`
		Row       *layout.Row       `json:"row"`
		Component *layout.Component `json:"component"`
	} `json:"adaptations"`
}

// SelectAndAdapt implements domain.Selector. The id contract is enforced by
// the pipeline, not here; this method only translates the model response.
func (c *Client) SelectAndAdapt(ctx context.Context, candidates []domain.SelectorCandidate, sctx domain.SelectionContext) (domain.Selection, error) {
	if len(candidates) == 0 {
		return domain.Selection{}, fmt.Errorf("select: no candidates")
	}

	user := fmt.Sprintf("query: %s\nintent: %s\n\ncandidates:\n", sctx.Query, sctx.Analysis.Intent)
	for _, cand := range candidates {
		user += fmt.Sprintf("- id=%s score=%.3f object=%s layout=%s query=%q\n",
			cand.ID, cand.Score, cand.ObjectType, cand.LayoutType, cand.QueryText)
	}

	var out selectionWire
	if err := c.completeJSON(ctx, selectSystem, user, &out); err != nil {
		return domain.Selection{}, fmt.Errorf("select: %w", err)
	}

	sel := domain.Selection{SelectedID: out.SelectedID}
	for _, a := range out.Adaptations {
		switch a.Op {
		case string(domain.OpAddRow):
			sel.Adaptations = append(sel.Adaptations, domain.Adaptation{
				Op:  domain.OpAddRow,
				Row: a.Row,
			})
		case string(domain.OpAddComponent):
			sel.Adaptations = append(sel.Adaptations, domain.Adaptation{
				Op:        domain.OpAddComponent,
				RowIndex:  a.RowIndex,
				Component: a.Component,
			})
		}
		// Unknown ops are dropped: the contract is add-only.
	}
	return sel, nil
}

// completeJSON runs one JSON-mode chat completion and unmarshals the reply.
func (c *Client) completeJSON(ctx context.Context, system, user string, out any) error {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("empty chat response")
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("parse model JSON: %w", err)
	}
	return nil
}
