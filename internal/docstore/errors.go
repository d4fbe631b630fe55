package docstore

import (
	"fmt"

	"github.com/behemotion/docbro/pkg/failure"
)

type DocErrorCause string

const (
	ErrCauseParseFailed   DocErrorCause = "parse failed"
	ErrCauseConvertFailed DocErrorCause = "convert failed"
	ErrCauseWriteFailed   DocErrorCause = "write failed"
)

// DocError is the typed error for internal/docstore, following the same
// shape as report.ReportError: a message, a retryable flag and a closed
// cause enum.
type DocError struct {
	Message   string
	Retryable bool
	Cause     DocErrorCause
	Path      string
}

func (e *DocError) Error() string {
	return fmt.Sprintf("docstore error: %s: %s (%s)", e.Cause, e.Message, e.Path)
}

func (e *DocError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*DocError)(nil)
