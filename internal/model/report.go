package model

import "time"

// ReportStatus is the final disposition of a crawl, derived from its page outcomes.
type ReportStatus string

const (
	ReportSuccess    ReportStatus = "SUCCESS"
	ReportPartial    ReportStatus = "PARTIAL"
	ReportFailed     ReportStatus = "FAILED"
	ReportPending    ReportStatus = "PENDING"
	ReportInProgress ReportStatus = "IN_PROGRESS"
)

// ErrorSummary aggregates ErrorEntries by kind.
type ErrorSummary struct {
	CountByKind map[ErrorKind]int
	UniqueURLs  int
}

// CrawlReport is the post-run document for one project's crawl session.
type CrawlReport struct {
	ProjectID       string
	ProjectName     string
	SessionID       string
	PagesDiscovered int
	PagesCrawled    int
	PagesFailed     int
	PagesSkipped    int
	TotalBytes      int64
	Errors          []ErrorEntry
	Summary         ErrorSummary
	Duration        time.Duration
	Status          ReportStatus
	GeneratedAt     time.Time
}

// DeriveStatus computes the report status per spec §3:
// all-success & >0 pages -> SUCCESS; any success with failures -> PARTIAL; all failed -> FAILED.
func DeriveStatus(pagesCrawled, pagesFailed int) ReportStatus {
	if pagesCrawled == 0 && pagesFailed == 0 {
		return ReportPending
	}
	if pagesFailed == 0 && pagesCrawled > 0 {
		return ReportSuccess
	}
	if pagesCrawled > 0 && pagesFailed > 0 {
		return ReportPartial
	}
	return ReportFailed
}

// NewCrawlReport builds a report from a completed session and its collected errors.
func NewCrawlReport(projectID, projectName, sessionID string, session CrawlSession, errs []ErrorEntry, generatedAt time.Time) CrawlReport {
	byKind := make(map[ErrorKind]int, len(errs))
	seenURLs := make(map[string]struct{}, len(errs))
	for _, e := range errs {
		byKind[e.Kind()]++
		seenURLs[e.URL()] = struct{}{}
	}

	var duration time.Duration
	if started := session.StartedAt(); started != nil {
		end := generatedAt
		if completed := session.CompletedAt(); completed != nil {
			end = *completed
		}
		duration = end.Sub(*started)
	}

	return CrawlReport{
		ProjectID:       projectID,
		ProjectName:     projectName,
		SessionID:       sessionID,
		PagesDiscovered: session.PagesDiscovered(),
		PagesCrawled:    session.PagesCrawled(),
		PagesFailed:     session.PagesFailed(),
		PagesSkipped:    session.PagesSkipped(),
		TotalBytes:      session.TotalBytes(),
		Errors:          append([]ErrorEntry(nil), errs...),
		Summary: ErrorSummary{
			CountByKind: byKind,
			UniqueURLs:  len(seenURLs),
		},
		Duration:    duration,
		Status:      DeriveStatus(session.PagesCrawled(), session.PagesFailed()),
		GeneratedAt: generatedAt,
	}
}
