package report

import (
	"fmt"

	"github.com/behemotion/docbro/pkg/failure"
)

type ErrorCause string

const (
	ErrCauseMarshalFailed ErrorCause = "marshal failed"
	ErrCauseWriteFailed   ErrorCause = "write failed"
	ErrCauseDiskFull      ErrorCause = "disk full"
)

// ReportError is the ErrorSink's own typed error, implementing
// failure.ClassifiedError like every other package's error type.
type ReportError struct {
	Message   string
	Retryable bool
	Cause     ErrorCause
	Path      string
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report error: %s: %s (%s)", e.Cause, e.Message, e.Path)
}

func (e *ReportError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*ReportError)(nil)
