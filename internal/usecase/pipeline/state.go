package pipeline

import (
	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
	"github.com/kailas-cloud/layoutdex/internal/domain/query"
)

// Stage names one step of the linear pipeline.
type Stage string

const (
	StageNormalize   Stage = "normalize"
	StageAnalyze     Stage = "analyze"
	StageReformulate Stage = "reformulate"
	StageRetrieve    Stage = "retrieve"
	StageSelect      Stage = "select"
	StageValidate    Stage = "validate"
)

// StageError records one absorbed stage failure: which stage failed and the
// error its fallback replaced.
type StageError struct {
	Stage Stage
	Err   error
}

// State is the value passed stage to stage. Each stage fills its output slot
// and never touches earlier ones; failures land in Fallbacks and the run
// continues to the terminal stage regardless.
type State struct {
	RequestID  string
	RawQuery   string
	Normalized string
	Analysis   query.Analysis
	Query      query.SearchQuery
	Candidates []candidate.Candidate

	SelectedID        string
	ObjectType        string
	Rows              []layout.Row
	UsedDefaultLayout bool

	Confidence float64
	Fallbacks  []StageError
}

// Result is the terminal pipeline output.
type Result struct {
	RequestID         string
	Success           bool
	Confidence        float64
	SelectedID        string
	ObjectType        string
	Rows              []layout.Row
	UsedDefaultLayout bool
	Fallbacks         []StageError
}
