// Package report is the concrete ErrorSink: it collects ErrorEntries during
// a crawl and materializes a CrawlReport to disk as JSON and a
// human-readable text file, per project, on completion.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/behemotion/docbro/internal/metadata"
	"github.com/behemotion/docbro/internal/model"
	"github.com/behemotion/docbro/pkg/fileutil"
	"github.com/behemotion/docbro/pkg/idgen"
)

const reportTimestampLayout = "20060102_150405"

// ErrorSink is the interface the crawl engine and batch orchestrator
// consume; they never see the concrete Reporter type.
type ErrorSink interface {
	AddError(url string, kind model.ErrorKind, message string, httpCode, retryCount int, includeTrace bool)
	HasErrors() bool
	SaveReport(session model.CrawlSession) (jsonPath, textPath string, err error)
}

// Reporter accumulates ErrorEntries for one project's crawl and writes the
// resulting CrawlReport under baseDir/projects/<project>/reports/.
type Reporter struct {
	baseDir      string
	project      model.Project
	metadataSink metadata.MetadataSink

	mu     sync.Mutex
	errors []model.ErrorEntry
}

// DefaultBaseDir resolves <user-data-dir>/docbro: $XDG_DATA_HOME/docbro if
// set, else $HOME/.local/share/docbro.
func DefaultBaseDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "docbro"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "docbro"), nil
}

func NewReporter(baseDir string, project model.Project, metadataSink metadata.MetadataSink) *Reporter {
	if metadataSink == nil {
		metadataSink = metadata.NoopSink{}
	}
	return &Reporter{
		baseDir:      baseDir,
		project:      project,
		metadataSink: metadataSink,
	}
}

// AddError records one crawl failure. includeTrace captures the current
// goroutine's stack, matching the spec's optional include_trace flag.
func (r *Reporter) AddError(url string, kind model.ErrorKind, message string, httpCode, retryCount int, includeTrace bool) {
	var trace string
	if includeTrace {
		trace = string(debug.Stack())
	}

	entry := model.NewErrorEntry(idgen.New(), url, kind, message, httpCode, retryCount, trace, time.Now().UTC())

	r.mu.Lock()
	r.errors = append(r.errors, entry)
	r.mu.Unlock()

	r.metadataSink.RecordError(entry.Timestamp(), "report", "AddError", errorKindToCause(kind), message, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrURL, url),
		metadata.NewAttr(metadata.AttrHTTPStatus, fmt.Sprintf("%d", httpCode)),
	})
}

func (r *Reporter) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors) > 0
}

func (r *Reporter) Errors() []model.ErrorEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ErrorEntry(nil), r.errors...)
}

// SaveReport writes report_<UTC-YYYYMMDD_HHMMSS>.json/.txt plus the
// report_latest.json/.txt overwritten copies, and returns the timestamped
// paths.
func (r *Reporter) SaveReport(session model.CrawlSession) (string, string, error) {
	now := time.Now().UTC()
	crawlReport := model.NewCrawlReport(r.project.ID(), r.project.Name(), session.ID(), session, r.Errors(), now)

	dir := filepath.Join(r.baseDir, "projects", sanitizeProjectDir(r.project.Name()), "reports")
	if cerr := fileutil.EnsureDir(dir); cerr != nil {
		return "", "", &ReportError{Message: cerr.Error(), Retryable: false, Cause: ErrCauseWriteFailed, Path: dir}
	}

	jsonBytes, err := json.MarshalIndent(crawlReport, "", "  ")
	if err != nil {
		return "", "", &ReportError{Message: err.Error(), Retryable: false, Cause: ErrCauseMarshalFailed}
	}
	text := renderText(crawlReport)

	stamp := now.Format(reportTimestampLayout)
	jsonPath := filepath.Join(dir, fmt.Sprintf("report_%s.json", stamp))
	textPath := filepath.Join(dir, fmt.Sprintf("report_%s.txt", stamp))
	latestJSONPath := filepath.Join(dir, "report_latest.json")
	latestTextPath := filepath.Join(dir, "report_latest.txt")

	for _, f := range []struct {
		path string
		data []byte
	}{
		{jsonPath, jsonBytes},
		{latestJSONPath, jsonBytes},
		{textPath, []byte(text)},
		{latestTextPath, []byte(text)},
	} {
		if err := writeFile(f.path, f.data); err != nil {
			return "", "", err
		}
	}

	r.metadataSink.RecordArtifact(jsonPath)
	r.metadataSink.RecordArtifact(textPath)

	return jsonPath, textPath, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		cause := ErrCauseWriteFailed
		retryable := false
		if errors.Is(err, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return &ReportError{Message: err.Error(), Retryable: retryable, Cause: cause, Path: path}
	}
	return nil
}

func sanitizeProjectDir(name string) string {
	if name == "" {
		return "unnamed"
	}
	return strings.ReplaceAll(name, string(os.PathSeparator), "_")
}

func renderText(r model.CrawlReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DocBro Crawl Report\n")
	fmt.Fprintf(&b, "===================\n")
	fmt.Fprintf(&b, "Project:      %s (%s)\n", r.ProjectName, r.ProjectID)
	fmt.Fprintf(&b, "Session:      %s\n", r.SessionID)
	fmt.Fprintf(&b, "Status:       %s\n", r.Status)
	fmt.Fprintf(&b, "Generated at: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:     %s\n\n", r.Duration.Round(time.Second))

	fmt.Fprintf(&b, "Statistics\n")
	fmt.Fprintf(&b, "----------\n")
	fmt.Fprintf(&b, "Pages discovered: %d\n", r.PagesDiscovered)
	fmt.Fprintf(&b, "Pages crawled:    %d\n", r.PagesCrawled)
	fmt.Fprintf(&b, "Pages failed:     %d\n", r.PagesFailed)
	fmt.Fprintf(&b, "Pages skipped:    %d\n", r.PagesSkipped)
	fmt.Fprintf(&b, "Total bytes:      %d\n\n", r.TotalBytes)

	fmt.Fprintf(&b, "Error Summary\n")
	fmt.Fprintf(&b, "-------------\n")
	if len(r.Summary.CountByKind) == 0 {
		fmt.Fprintf(&b, "(no errors)\n\n")
	} else {
		for kind, count := range r.Summary.CountByKind {
			fmt.Fprintf(&b, "%-12s %d\n", kind, count)
		}
		fmt.Fprintf(&b, "Unique URLs affected: %d\n\n", r.Summary.UniqueURLs)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Error Details\n")
		fmt.Fprintf(&b, "-------------\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "[%s] %s %s\n", e.Timestamp().Format(time.RFC3339), e.Kind(), e.URL())
			fmt.Fprintf(&b, "  http_code=%d retry_count=%d severity=%s\n", e.HTTPCode(), e.RetryCount(), e.Severity())
			fmt.Fprintf(&b, "  %s\n", e.Message())
			if e.StackTrace() != "" {
				fmt.Fprintf(&b, "  trace:\n%s\n", indent(e.StackTrace(), "    "))
			}
		}
	}

	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func errorKindToCause(kind model.ErrorKind) metadata.ErrorCause {
	switch kind {
	case model.ErrorKindNetwork, model.ErrorKindTimeout:
		return metadata.CauseNetworkFailure
	case model.ErrorKindPermission, model.ErrorKindRateLimit:
		return metadata.CausePolicyDisallow
	case model.ErrorKindParse:
		return metadata.CauseContentInvalid
	case model.ErrorKindValidation:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}

var _ ErrorSink = (*Reporter)(nil)
