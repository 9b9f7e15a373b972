package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrCorpusInvalid signals a corpus file that failed schema or uniqueness checks.
	ErrCorpusInvalid = errors.New("corpus invalid")
	// ErrIndexBuild signals a failed index build; the previous snapshot stays active.
	ErrIndexBuild = errors.New("index build failed")
	// ErrIndexLoadMismatch signals inconsistent persisted index artifacts; callers rebuild.
	ErrIndexLoadMismatch = errors.New("persisted index artifacts mismatch")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrAnalysisFailed signals that query analysis produced no usable result.
	ErrAnalysisFailed = errors.New("query analysis failed")
	// ErrRerankFailed signals a relevance-model failure; retrieval falls back
	// to vector+boost ordering.
	ErrRerankFailed = errors.New("rerank failed")
	// ErrSelectionContract signals a selector response referencing a candidate
	// that was not in the supplied list.
	ErrSelectionContract = errors.New("selection contract violation")
	// ErrLayoutInvalid signals a structurally incomplete layout; the pipeline
	// downgrades confidence instead of failing.
	ErrLayoutInvalid = errors.New("layout structurally invalid")
)
