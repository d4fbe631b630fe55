package metadata

import (
	"log/slog"
	"time"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)

MetadataSink is the observability seam every pipeline package logs through.
It is purely a recording surface: nothing that implements it may be
consulted to decide whether to retry, skip, or abort. Call sites pass a
MetadataSink the same way they pass a context.Context -- readily, and
without inspecting what it does with the call.
*/
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)

	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute)

	RecordArtifact(path string)
}

// compile-time checks
var (
	_ MetadataSink = (*Recorder)(nil)
	_ MetadataSink = (*NoopSink)(nil)
)

// Recorder is the production MetadataSink. It writes structured log lines
// via log/slog and keeps no state of its own: every call is recorded and
// forgotten, in keeping with the "observability only" contract above.
type Recorder struct {
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger}
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.logger.Info("fetch",
		slog.String(string(AttrURL), fetchUrl),
		slog.Int(string(AttrHTTPStatus), httpStatus),
		slog.Duration("duration", duration),
		slog.String("content_type", contentType),
		slog.Int("retry_count", retryCount),
		slog.Int(string(AttrDepth), crawlDepth),
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	args := []any{
		slog.Time("observed_at", observedAt),
		slog.String("package", packageName),
		slog.String("action", action),
		slog.Int("cause", int(cause)),
	}
	for _, a := range attrs {
		args = append(args, slog.String(string(a.Key), a.Value))
	}
	r.logger.Error(errorString, args...)
}

func (r *Recorder) RecordArtifact(path string) {
	r.logger.Info("artifact", slog.String(string(AttrWritePath), path))
}

// NoopSink discards everything. It exists for tests and for callers that
// have not wired a real MetadataSink yet.
type NoopSink struct{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int)       {}
func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}
func (NoopSink) RecordArtifact(string)                                         {}
