package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// PageStatus is the Page lifecycle state.
type PageStatus string

const (
	PageDiscovered PageStatus = "DISCOVERED"
	PageCrawling   PageStatus = "CRAWLING"
	PageProcessed  PageStatus = "PROCESSED"
	PageIndexed    PageStatus = "INDEXED"
	PageFailed     PageStatus = "FAILED"
	PageSkipped    PageStatus = "SKIPPED"
)

const defaultMaxRetries = 3

// Page is one fetched (or attempted) URL within a CrawlSession.
type Page struct {
	id         string
	sessionID  string
	projectID  string
	url        string
	depth      int
	parentURL  string

	status PageStatus

	responseCode int
	responseTime time.Duration
	mimeType     string
	charset      string
	title        string
	rawHTML      string
	contentText  string
	contentHash  string
	sizeBytes    int64

	outboundLinks []string
	internalLinks []string
	externalLinks []string

	retryCount int
	maxRetries int

	errorMessage string
	skipReason   string

	discoveredAt time.Time
	crawlingAt   *time.Time
	processedAt  *time.Time
	failedAt     *time.Time
	skippedAt    *time.Time
	indexedAt    *time.Time
}

// ContentHash computes the spec's dedup key: SHA-256 over the UTF-8 bytes of
// trimmed, normalized extracted text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func NewPage(id, sessionID, projectID, url string, depth int, parentURL string, now time.Time) Page {
	return Page{
		id:           id,
		sessionID:    sessionID,
		projectID:    projectID,
		url:          url,
		depth:        depth,
		parentURL:    parentURL,
		status:       PageDiscovered,
		maxRetries:   defaultMaxRetries,
		discoveredAt: now,
	}
}

func (p Page) ID() string            { return p.id }
func (p Page) SessionID() string     { return p.sessionID }
func (p Page) ProjectID() string     { return p.projectID }
func (p Page) URL() string           { return p.url }
func (p Page) Depth() int            { return p.depth }
func (p Page) ParentURL() string     { return p.parentURL }
func (p Page) Status() PageStatus    { return p.status }
func (p Page) ResponseCode() int     { return p.responseCode }
func (p Page) ResponseTime() time.Duration { return p.responseTime }
func (p Page) MimeType() string      { return p.mimeType }
func (p Page) Charset() string       { return p.charset }
func (p Page) Title() string         { return p.title }
func (p Page) RawHTML() string       { return p.rawHTML }
func (p Page) ContentText() string   { return p.contentText }
func (p Page) ContentHash() string   { return p.contentHash }
func (p Page) SizeBytes() int64      { return p.sizeBytes }
func (p Page) OutboundLinks() []string { return append([]string(nil), p.outboundLinks...) }
func (p Page) InternalLinks() []string { return append([]string(nil), p.internalLinks...) }
func (p Page) ExternalLinks() []string { return append([]string(nil), p.externalLinks...) }
func (p Page) RetryCount() int       { return p.retryCount }
func (p Page) MaxRetries() int       { return p.maxRetries }
func (p Page) ErrorMessage() string  { return p.errorMessage }
func (p Page) SkipReason() string    { return p.skipReason }
func (p Page) DiscoveredAt() time.Time { return p.discoveredAt }

// MarkCrawling transitions DISCOVERED -> CRAWLING.
func (p *Page) MarkCrawling(now time.Time) error {
	if p.status != PageDiscovered {
		return fmt.Errorf("page %s: cannot mark crawling from status %s", p.id, p.status)
	}
	p.status = PageCrawling
	p.crawlingAt = &now
	return nil
}

// MarkProcessed is the single atomic "fetched-and-processed" transition: it sets
// response metadata and content together and derives content_hash, collapsing the
// source's two-step mark_crawled/update_content pattern into one (spec §9).
func (p *Page) MarkProcessed(responseCode int, responseTime time.Duration, mimeType, charset, title, rawHTML, contentText string, outbound, internal, external []string, now time.Time) error {
	if p.status != PageCrawling {
		return fmt.Errorf("page %s: cannot mark processed from status %s", p.id, p.status)
	}
	p.responseCode = responseCode
	p.responseTime = responseTime
	p.mimeType = mimeType
	p.charset = charset
	p.title = title
	p.rawHTML = rawHTML
	p.contentText = contentText
	p.contentHash = ContentHash(contentText)
	p.sizeBytes = int64(len(rawHTML))
	p.outboundLinks = append([]string(nil), outbound...)
	p.internalLinks = append([]string(nil), internal...)
	p.externalLinks = append([]string(nil), external...)
	p.status = PageProcessed
	p.processedAt = &now
	return nil
}

// MarkFailed transitions to FAILED with a non-empty error message.
func (p *Page) MarkFailed(errMsg string, now time.Time) error {
	if strings.TrimSpace(errMsg) == "" {
		return fmt.Errorf("page %s: FAILED requires a non-empty error message", p.id)
	}
	p.status = PageFailed
	p.errorMessage = errMsg
	p.failedAt = &now
	return nil
}

// MarkSkipped transitions to SKIPPED with a reason (e.g. "Duplicate content").
func (p *Page) MarkSkipped(reason string, now time.Time) {
	p.status = PageSkipped
	p.skipReason = reason
	p.skippedAt = &now
}

// MarkIndexed transitions PROCESSED -> INDEXED.
func (p *Page) MarkIndexed(now time.Time) error {
	if p.status != PageProcessed {
		return fmt.Errorf("page %s: INDEXED requires prior PROCESSED status, got %s", p.id, p.status)
	}
	p.status = PageIndexed
	p.indexedAt = &now
	return nil
}

// IncrementRetry bumps retry_count and reports whether max_retries has been exceeded.
func (p *Page) IncrementRetry() bool {
	p.retryCount++
	return p.retryCount > p.maxRetries
}
