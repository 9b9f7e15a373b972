// Package stub provides deterministic, dependency-free implementations of
// the capability interfaces: lexical normalization, keyword analysis,
// rule-based reformulation, token-overlap reranking, top-ranked selection
// and a hashed bag-of-words embedder. They back tests and deployments that
// run without an LLM provider.
package stub

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/kailas-cloud/layoutdex/internal/domain"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
	"github.com/kailas-cloud/layoutdex/internal/domain/viewtype"
)

// analysisConfidence is reported by the keyword analyzer: heuristics are
// useful but weaker than a real language model.
const analysisConfidence = 0.75

// Normalizer lowercases and collapses whitespace.
type Normalizer struct{}

// Normalize implements domain.Normalizer.
func (Normalizer) Normalize(_ context.Context, raw string) (string, error) {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty query")
	}
	return strings.Join(fields, " "), nil
}

// stopwords are skipped when guessing the object type from query tokens.
var stopwords = map[string]struct{}{
	"show": {}, "display": {}, "view": {}, "get": {}, "give": {}, "find": {},
	"me": {}, "all": {}, "the": {}, "a": {}, "an": {}, "of": {}, "for": {},
	"list": {}, "table": {}, "grid": {}, "card": {}, "cards": {},
	"dashboard": {}, "summary": {}, "my": {}, "in": {}, "with": {},
}

var aggregationWords = map[string]string{
	"count":   "count",
	"total":   "sum",
	"sum":     "sum",
	"average": "avg",
	"avg":     "avg",
}

var conditionWords = []string{"where", "filter", "greater", "less", "above", "below", "between", "active", "pending", "overdue"}

var sortingWords = []string{"sort", "order by", "top ", "latest", "newest", "recent", "highest", "lowest"}

// Analyzer extracts structured intent with keyword heuristics over the
// normalized query text.
type Analyzer struct{}

// Analyze implements domain.Analyzer.
func (Analyzer) Analyze(_ context.Context, normalized string) (query.Analysis, error) {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return query.Analysis{}, fmt.Errorf("empty query: %w", domain.ErrAnalysisFailed)
	}

	a := query.Analysis{
		Intent:     "view_data",
		Complexity: "simple",
		Confidence: analysisConfidence,
	}

	for _, t := range tokens {
		if agg, ok := aggregationWords[t]; ok {
			a.Intent = "aggregate"
			a.AggregationType = agg
			break
		}
	}
	for _, w := range conditionWords {
		if strings.Contains(normalized, w) {
			a.HasConditions = true
			break
		}
	}
	for _, w := range sortingWords {
		if strings.Contains(normalized, w) {
			a.HasSorting = true
			break
		}
	}
	if a.HasConditions || a.HasSorting || a.AggregationType != "" {
		a.Complexity = "medium"
	}

	// "loans by branch" -> group by branch.
	for i, t := range tokens {
		if t == "by" && i+1 < len(tokens) {
			a.GroupByField = strings.TrimSuffix(tokens[i+1], "s")
			break
		}
	}

	a.ObjectType = guessObjectType(tokens)
	if a.ObjectType != "" {
		a.Objects = []string{a.ObjectType}
	}
	a.PatternType = guessPatternType(normalized)

	return a.Normalize(), nil
}

// guessObjectType takes the first non-stopword token, singularized.
func guessObjectType(tokens []string) string {
	for _, t := range tokens {
		if _, skip := stopwords[t]; skip {
			continue
		}
		if _, isAgg := aggregationWords[t]; isAgg {
			continue
		}
		return strings.TrimSuffix(t, "s")
	}
	return ""
}

func guessPatternType(normalized string) string {
	if strings.Contains(normalized, "detail") || strings.Contains(normalized, "profile") {
		return "DETAIL"
	}
	switch viewtype.Detect(normalized) {
	case viewtype.Card:
		return "DASHBOARD"
	case viewtype.List:
		return "LIST_CARDS"
	default:
		return "LIST_SIMPLE"
	}
}

// Reformulator builds the search query by rule: the normalized text plus up
// to two paraphrases derived from the analysis, and the view type resolved
// from the pattern type.
type Reformulator struct{}

// Reformulate implements domain.Reformulator.
func (Reformulator) Reformulate(_ context.Context, normalized string, a query.Analysis) (query.SearchQuery, error) {
	variations := []string{normalized}
	if a.ObjectType != "" {
		v := a.ObjectType + " " + strings.ToLower(a.PatternType)
		variations = append(variations, strings.TrimSpace(v))
		if a.GroupByField != "" {
			variations = append(variations, a.ObjectType+" by "+a.GroupByField)
		}
	}

	view := viewtype.FromPattern(a.PatternType, normalized)
	sq, err := query.New(normalized, variations, view)
	if err != nil {
		return query.SearchQuery{}, fmt.Errorf("reformulate: %w", err)
	}
	return sq, nil
}

// Reranker scores texts by token overlap with the query (Jaccard).
type Reranker struct{}

// Rerank implements domain.Reranker.
func (Reranker) Rerank(_ context.Context, queryText string, texts []string) ([]float64, error) {
	queryTokens := tokenSet(queryText)
	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = jaccard(queryTokens, tokenSet(text))
	}
	return scores, nil
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(text)) {
		set[t] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// Selector always takes the top-ranked candidate, unmodified.
type Selector struct{}

// SelectAndAdapt implements domain.Selector.
func (Selector) SelectAndAdapt(_ context.Context, candidates []domain.SelectorCandidate, _ domain.SelectionContext) (domain.Selection, error) {
	if len(candidates) == 0 {
		return domain.Selection{}, fmt.Errorf("no candidates to select from")
	}
	return domain.Selection{SelectedID: candidates[0].ID}, nil
}

// embeddingDim is the hashed bag-of-words dimensionality. Small on purpose:
// the stub trades recall for zero external calls.
const embeddingDim = 64

// Embedder produces deterministic hashed bag-of-words vectors. Identical
// texts embed identically, which is all the offline index needs.
type Embedder struct{}

// Embed implements domain.Embedder.
func (Embedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	vec := make([]float32, embeddingDim)
	tokens := strings.Fields(strings.ToLower(text))
	for _, t := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(t))
		vec[h.Sum32()%embeddingDim]++
	}
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: len(tokens),
		TotalTokens:  len(tokens),
	}, nil
}

// HealthCheck implements domain.HealthChecker; the stub is always available.
func (Embedder) HealthCheck(context.Context) error { return nil }
