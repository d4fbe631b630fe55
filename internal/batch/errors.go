package batch

import (
	"fmt"

	"github.com/behemotion/docbro/pkg/failure"
)

type BatchErrorCause string

const (
	ErrCauseUnknownProject BatchErrorCause = "unknown project"
)

// BatchError is the typed error for internal/batch, following the same
// shape as engine's sentinel errors but carrying the offending project name.
type BatchError struct {
	Message     string
	ProjectName string
	Cause       BatchErrorCause
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch error: %s: %s (%s)", e.Cause, e.Message, e.ProjectName)
}

func (e *BatchError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*BatchError)(nil)
