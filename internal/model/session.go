package model

import (
	"fmt"
	"time"
)

// SessionStatus is the CrawlSession lifecycle state.
type SessionStatus string

const (
	SessionCreated   SessionStatus = "CREATED"
	SessionRunning   SessionStatus = "RUNNING"
	SessionPaused    SessionStatus = "PAUSED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// DefaultErrorBudget is the max ErrorEntries before a session stops accepting new work.
const DefaultErrorBudget = 50

// CrawlSession is one crawl attempt against a Project.
type CrawlSession struct {
	id        string
	projectID string
	depth     int
	userAgent string
	rateLimit float64
	timeout   time.Duration
	errorBudget int

	status SessionStatus

	pagesDiscovered int
	pagesCrawled    int
	pagesFailed     int
	pagesSkipped    int
	totalBytes      int64
	currentDepth    int
	currentURL      string
	queueSize       int
	errorCount      int

	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
	updatedAt   time.Time

	failureMessage string
}

// NewCrawlSession creates a session in CREATED status. errorBudget <= 0 uses DefaultErrorBudget.
func NewCrawlSession(id, projectID string, depth int, userAgent string, rateLimit float64, timeout time.Duration, errorBudget int, now time.Time) CrawlSession {
	if errorBudget <= 0 {
		errorBudget = DefaultErrorBudget
	}
	return CrawlSession{
		id:          id,
		projectID:   projectID,
		depth:       depth,
		userAgent:   userAgent,
		rateLimit:   rateLimit,
		timeout:     timeout,
		errorBudget: errorBudget,
		status:      SessionCreated,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (s CrawlSession) ID() string             { return s.id }
func (s CrawlSession) ProjectID() string       { return s.projectID }
func (s CrawlSession) ConfiguredDepth() int    { return s.depth }
func (s CrawlSession) UserAgent() string       { return s.userAgent }
func (s CrawlSession) RateLimit() float64      { return s.rateLimit }
func (s CrawlSession) Timeout() time.Duration  { return s.timeout }
func (s CrawlSession) ErrorBudget() int        { return s.errorBudget }
func (s CrawlSession) Status() SessionStatus   { return s.status }
func (s CrawlSession) PagesDiscovered() int    { return s.pagesDiscovered }
func (s CrawlSession) PagesCrawled() int       { return s.pagesCrawled }
func (s CrawlSession) PagesFailed() int        { return s.pagesFailed }
func (s CrawlSession) PagesSkipped() int       { return s.pagesSkipped }
func (s CrawlSession) TotalBytes() int64       { return s.totalBytes }
func (s CrawlSession) CurrentDepth() int       { return s.currentDepth }
func (s CrawlSession) CurrentURL() string      { return s.currentURL }
func (s CrawlSession) QueueSize() int          { return s.queueSize }
func (s CrawlSession) ErrorCount() int         { return s.errorCount }
func (s CrawlSession) CreatedAt() time.Time    { return s.createdAt }
func (s CrawlSession) UpdatedAt() time.Time    { return s.updatedAt }
func (s CrawlSession) FailureMessage() string  { return s.failureMessage }

func (s CrawlSession) StartedAt() *time.Time {
	if s.startedAt == nil {
		return nil
	}
	t := *s.startedAt
	return &t
}

func (s CrawlSession) CompletedAt() *time.Time {
	if s.completedAt == nil {
		return nil
	}
	t := *s.completedAt
	return &t
}

// IsCompleted reports whether the session has reached a terminal status.
func (s CrawlSession) IsCompleted() bool {
	switch s.status {
	case SessionCompleted, SessionFailed, SessionCancelled:
		return true
	default:
		return false
	}
}

// ErrorBudgetExhausted reports whether error_count has reached the configured budget.
func (s CrawlSession) ErrorBudgetExhausted() bool {
	return s.errorCount >= s.errorBudget
}

// Start transitions CREATED -> RUNNING, setting started_at.
func (s *CrawlSession) Start(now time.Time) error {
	if s.status != SessionCreated {
		return fmt.Errorf("session %s: cannot start from status %s", s.id, s.status)
	}
	s.status = SessionRunning
	s.startedAt = &now
	s.updatedAt = now
	return nil
}

// Pause transitions RUNNING -> PAUSED. Resume is an open question the spec leaves
// unresolved; a paused session is never restarted in place.
func (s *CrawlSession) Pause(now time.Time) error {
	if s.status != SessionRunning {
		return fmt.Errorf("session %s: cannot pause from status %s", s.id, s.status)
	}
	s.status = SessionPaused
	s.updatedAt = now
	return nil
}

// Complete transitions to COMPLETED, setting completed_at.
func (s *CrawlSession) Complete(now time.Time) {
	s.status = SessionCompleted
	s.completedAt = &now
	s.updatedAt = now
}

// Fail transitions to FAILED with a message, setting completed_at.
func (s *CrawlSession) Fail(msg string, now time.Time) {
	s.status = SessionFailed
	s.failureMessage = msg
	s.completedAt = &now
	s.updatedAt = now
}

// Cancel transitions to CANCELLED, setting completed_at.
func (s *CrawlSession) Cancel(now time.Time) {
	s.status = SessionCancelled
	s.completedAt = &now
	s.updatedAt = now
}

// RecordDiscovery increments pages_discovered and refreshes queue_size/current_depth.
func (s *CrawlSession) RecordDiscovery(queueSize, depth int, now time.Time) {
	s.pagesDiscovered++
	s.queueSize = queueSize
	if depth > s.currentDepth {
		s.currentDepth = depth
	}
	s.updatedAt = now
}

// RecordCrawled increments pages_crawled and total_bytes after a successful fetch.
func (s *CrawlSession) RecordCrawled(bytes int64, now time.Time) {
	s.pagesCrawled++
	s.totalBytes += bytes
	s.updatedAt = now
}

// RecordFailed increments pages_failed and error_count.
func (s *CrawlSession) RecordFailed(now time.Time) {
	s.pagesFailed++
	s.errorCount++
	s.updatedAt = now
}

// RecordSkipped increments pages_skipped.
func (s *CrawlSession) RecordSkipped(now time.Time) {
	s.pagesSkipped++
	s.updatedAt = now
}

// SetProgress updates the transient progress fields reported on every dequeue/fetch tick.
func (s *CrawlSession) SetProgress(currentURL string, queueSize int, now time.Time) {
	s.currentURL = currentURL
	s.queueSize = queueSize
	s.updatedAt = now
}

// CheckInvariants validates the counter invariant from spec §8. Intended for tests
// and defensive assertions at session-store boundaries, not hot-path control flow.
func (s CrawlSession) CheckInvariants() error {
	if s.pagesCrawled+s.pagesFailed+s.pagesSkipped > s.pagesDiscovered {
		return fmt.Errorf("session %s: crawled+failed+skipped (%d) exceeds discovered (%d)",
			s.id, s.pagesCrawled+s.pagesFailed+s.pagesSkipped, s.pagesDiscovered)
	}
	if s.status == SessionRunning && s.startedAt == nil {
		return fmt.Errorf("session %s: RUNNING without started_at", s.id)
	}
	if (s.status == SessionCompleted || s.status == SessionFailed || s.status == SessionCancelled) && s.completedAt == nil {
		return fmt.Errorf("session %s: terminal status %s without completed_at", s.id, s.status)
	}
	return nil
}
