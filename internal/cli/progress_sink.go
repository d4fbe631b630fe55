package cmd

import (
	"fmt"
	"time"

	"github.com/behemotion/docbro/internal/progress"
)

// cliProgressSink is a terse stdout renderer of progress.Sink. Columns,
// colors and terminal widths are out of scope; it only prints the lines
// a non-interactive CLI run needs.
type cliProgressSink struct{}

func newCLIProgressSink() cliProgressSink {
	return cliProgressSink{}
}

func (cliProgressSink) StartOperation(title, projectName string) {
	fmt.Printf("%s: %s starting\n", projectName, title)
}

func (cliProgressSink) UpdateMetrics(map[string]any) {}

func (cliProgressSink) SetCurrentOperation(op string) {
	fmt.Println(op)
}

func (cliProgressSink) ShowEmbeddingStatus(model, project string, state progress.EmbeddingState) {
	fmt.Printf("%s: embedding (%s): %s\n", project, model, state)
}

func (cliProgressSink) ShowEmbeddingError(msg string) {
	fmt.Printf("embedding error: %s\n", msg)
}

func (cliProgressSink) CompleteOperation(project, kind string, duration time.Duration, metrics map[string]any, status progress.OperationStatus) {
	fmt.Printf("%s: %s %s in %s\n", project, kind, status, duration.Round(time.Millisecond))
}

var _ progress.Sink = cliProgressSink{}
