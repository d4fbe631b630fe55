// Package progress defines the ProgressSink interface the crawl engine and
// batch orchestrator report through. Rendering (columns, colors, terminal
// widths) is explicitly out of scope here; this package only describes the
// seam a terminal renderer or a no-op test double implements.
package progress

import "time"

// EmbeddingState is the state of an in-progress embedding operation, as
// reported by the (external) embedding backend through this sink.
type EmbeddingState string

const (
	EmbeddingInitializing EmbeddingState = "INITIALIZING"
	EmbeddingProcessing   EmbeddingState = "PROCESSING"
	EmbeddingComplete     EmbeddingState = "COMPLETE"
	EmbeddingError        EmbeddingState = "ERROR"
)

// OperationStatus is the terminal outcome of one complete_operation call.
type OperationStatus string

const (
	StatusSuccess        OperationStatus = "SUCCESS"
	StatusPartialSuccess OperationStatus = "PARTIAL_SUCCESS"
	StatusFailure        OperationStatus = "FAILURE"
)

// Sink is the progress interface consumed by the core, exactly as listed
// in the external interfaces the core depends on. Implementations never
// influence control flow.
type Sink interface {
	StartOperation(title, projectName string)
	UpdateMetrics(metrics map[string]any)
	SetCurrentOperation(op string)
	ShowEmbeddingStatus(model, project string, state EmbeddingState)
	ShowEmbeddingError(msg string)
	CompleteOperation(project, kind string, duration time.Duration, metrics map[string]any, status OperationStatus)
}

// NoopSink discards every call. It is the default when a caller does not
// wire a renderer, and is the sink tests use.
type NoopSink struct{}

func (NoopSink) StartOperation(string, string)                                                  {}
func (NoopSink) UpdateMetrics(map[string]any)                                                    {}
func (NoopSink) SetCurrentOperation(string)                                                      {}
func (NoopSink) ShowEmbeddingStatus(string, string, EmbeddingState)                              {}
func (NoopSink) ShowEmbeddingError(string)                                                       {}
func (NoopSink) CompleteOperation(string, string, time.Duration, map[string]any, OperationStatus) {}

var _ Sink = NoopSink{}
