// Package engine implements the CrawlEngine: the BFS-driven worker that
// owns one CrawlSession's frontier, visited/hash sets, depth bound and
// error budget. One engine instance runs one session at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/behemotion/docbro/internal/config"
	"github.com/behemotion/docbro/internal/docstore"
	"github.com/behemotion/docbro/internal/fetcher"
	"github.com/behemotion/docbro/internal/frontier"
	"github.com/behemotion/docbro/internal/limiter"
	"github.com/behemotion/docbro/internal/metadata"
	"github.com/behemotion/docbro/internal/model"
	"github.com/behemotion/docbro/internal/progress"
	"github.com/behemotion/docbro/internal/report"
	"github.com/behemotion/docbro/internal/robots"
	"github.com/behemotion/docbro/internal/store"
	"github.com/behemotion/docbro/pkg/failure"
	"github.com/behemotion/docbro/pkg/retry"
	"github.com/behemotion/docbro/pkg/timeutil"
	"github.com/behemotion/docbro/pkg/urlutil"
)

const dequeuePollInterval = 100 * time.Millisecond

// CrawlEngine owns the BFS frontier, visited/hash sets, depth bound and
// error budget for one CrawlSession at a time. A single worker goroutine
// processes the session; there is no intra-session parallel fetching.
type CrawlEngine struct {
	store        *store.SessionStore
	fetcher      fetcher.Fetcher
	robotsCache  *robots.RobotsCache
	rateLimiter  *limiter.Limiter
	metadataSink metadata.MetadataSink

	mu            sync.Mutex
	running       bool
	stopRequested bool
	session       model.CrawlSession
	project       model.Project
	seedHost      string
	maxPages      int
	frontier      *frontier.CrawlFrontier
	contentHashes map[string]struct{}
	parentByURL   map[string]string
	retryParam    retry.RetryParam

	progress progress.Sink
	errors   report.ErrorSink
	docs     docstore.PageSink

	queueTimeoutShallow time.Duration
	queueTimeoutAtDepth time.Duration
	queueRecheckDelay   time.Duration
}

func NewCrawlEngine(
	sessionStore *store.SessionStore,
	f fetcher.Fetcher,
	robotsCache *robots.RobotsCache,
	rateLimiter *limiter.Limiter,
	metadataSink metadata.MetadataSink,
) *CrawlEngine {
	if metadataSink == nil {
		metadataSink = metadata.NoopSink{}
	}
	return &CrawlEngine{
		store:        sessionStore,
		fetcher:      f,
		robotsCache:  robotsCache,
		rateLimiter:  rateLimiter,
		metadataSink: metadataSink,
	}
}

// IsRunning reports whether a session is actively being worked.
func (e *CrawlEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Session returns a snapshot of the engine's current (or most recent)
// session state.
func (e *CrawlEngine) Session() model.CrawlSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// StartCrawl rejects a call if a session is already running or the project
// is unknown; otherwise it creates a new CrawlSession, seeds the frontier
// with the project's seed URL and launches the single worker goroutine.
func (e *CrawlEngine) StartCrawl(
	ctx context.Context,
	cfg config.Config,
	projectID string,
	maxPages int,
	progressSink progress.Sink,
	errorSink report.ErrorSink,
	docSink docstore.PageSink,
) (model.CrawlSession, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return model.CrawlSession{}, ErrAlreadyRunning
	}

	project, ok := e.store.GetProject(projectID)
	if !ok {
		e.mu.Unlock()
		return model.CrawlSession{}, ErrUnknownProject
	}

	sess, err := e.store.CreateCrawlSession(projectID, cfg.MaxDepth(), cfg.UserAgent(), cfg.RateLimit())
	if err != nil {
		e.mu.Unlock()
		return model.CrawlSession{}, err
	}

	now := time.Now().UTC()
	if err := sess.Start(now); err != nil {
		e.mu.Unlock()
		return model.CrawlSession{}, err
	}
	_ = e.store.UpdateCrawlSession(sess)

	seedURL, err := url.Parse(project.SeedURL())
	if err != nil {
		e.mu.Unlock()
		return model.CrawlSession{}, err
	}

	if progressSink == nil {
		progressSink = progress.NoopSink{}
	}

	e.project = project
	e.seedHost = seedURL.Hostname()
	e.session = sess
	e.maxPages = maxPages
	e.progress = progressSink
	e.errors = errorSink
	e.docs = docSink
	e.running = true
	e.stopRequested = false
	e.frontier = frontier.NewCrawlFrontier()
	e.frontier.Init(cfg)
	e.contentHashes = make(map[string]struct{})
	e.parentByURL = make(map[string]string)
	e.queueTimeoutShallow = cfg.QueueTimeoutShallow()
	e.queueTimeoutAtDepth = cfg.QueueTimeoutAtDepth()
	e.queueRecheckDelay = cfg.QueueRecheckDelay()
	backoffParam := timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration())
	e.retryParam = retry.NewRetryParam(cfg.BaseDelay(), cfg.Jitter(), cfg.RandomSeed(), cfg.MaxAttempt(), backoffParam)
	e.mu.Unlock()

	seedCandidate := frontier.NewCrawlAdmissionCandidate(*seedURL, frontier.SourceSeed, frontier.NewDiscoveryMetadata(0, nil))
	e.submit(seedCandidate, "")

	go e.runWorker(ctx)

	return sess, nil
}

// StopCrawl requests the running worker to stop at its next loop iteration,
// if sessionID matches the currently running session.
func (e *CrawlEngine) StopCrawl(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.session.ID() != sessionID {
		return ErrSessionMismatch
	}
	e.stopRequested = true
	return nil
}

// PauseCrawl transitions the running session to PAUSED and requests the
// worker stop. Resume is not implemented: a paused session must be
// restarted as a new session against the same project.
func (e *CrawlEngine) PauseCrawl(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.session.ID() != sessionID {
		return ErrSessionMismatch
	}
	now := time.Now().UTC()
	if err := e.session.Pause(now); err != nil {
		return err
	}
	_ = e.store.UpdateCrawlSession(e.session)
	e.stopRequested = true
	return nil
}

// CompleteCrawl force-marks a persisted session COMPLETED, independent of
// whether it is the currently running one.
func (e *CrawlEngine) CompleteCrawl(sessionID string) error {
	sess, ok := e.store.GetCrawlSession(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	sess.Complete(time.Now().UTC())
	return e.store.UpdateCrawlSession(sess)
}

func (e *CrawlEngine) isStopRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopRequested
}

// runWorker is the engine's single long-running worker task. A recover
// boundary here is the session's last line of defense: anything that
// escapes processToken as a panic is an unexpected failure, not a
// classified fetch/store error, so it fails the session rather than
// crashing the process.
func (e *CrawlEngine) runWorker(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.finishSession(fmt.Sprintf("uncaught worker panic: %v", r))
			return
		}
		e.finishSession("")
	}()

	for {
		if e.isStopRequested() {
			return
		}
		if e.maxPages > 0 && e.Session().PagesCrawled() >= e.maxPages {
			return
		}

		sess := e.Session()
		timeout := e.queueTimeoutShallow
		if sess.CurrentDepth() >= sess.ConfiguredDepth() {
			timeout = e.queueTimeoutAtDepth
		}

		token, ok := e.dequeueWithTimeout(ctx, timeout)
		if !ok {
			sess = e.Session()
			if sess.CurrentDepth() < sess.ConfiguredDepth() && sess.PagesCrawled() > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(e.queueRecheckDelay):
				}
				if e.frontier.Len() == 0 {
					return
				}
				continue
			}
			return
		}

		e.processToken(ctx, token)

		if e.Session().ErrorBudgetExhausted() {
			return
		}
	}
}

func (e *CrawlEngine) dequeueWithTimeout(ctx context.Context, timeout time.Duration) (frontier.CrawlToken, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if tok, ok := e.frontier.Dequeue(); ok {
			return tok, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frontier.CrawlToken{}, false
		}
		wait := dequeuePollInterval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return frontier.CrawlToken{}, false
		case <-time.After(wait):
		}
	}
}

func (e *CrawlEngine) processToken(ctx context.Context, token frontier.CrawlToken) {
	targetURL := token.URL()
	depth := token.Depth()

	decision := e.robotsCache.Check(&targetURL, e.Session().UserAgent())
	if decision.CrawlDelay != nil {
		e.rateLimiter.SetCrawlDelay(&targetURL, *decision.CrawlDelay)
	}
	if !decision.Allowed {
		e.metadataSink.RecordError(time.Now(), "engine", "processToken", metadata.CausePolicyDisallow, "robots.txt disallows this URL", []metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, targetURL.String()),
			metadata.NewAttr(metadata.AttrDepth, depthAttr(depth)),
		})
		e.tickProgress(depth, targetURL.String())
		return
	}

	if err := e.rateLimiter.Acquire(ctx, &targetURL); err != nil {
		return
	}

	canonical := urlutil.Canonicalize(targetURL)
	key := canonical.String()
	parentURL := e.lookupParent(key)

	page, err := e.store.CreatePage(e.Session().ID(), e.project.ID(), targetURL.String(), depth, parentURL)
	if err != nil {
		return
	}

	now := time.Now().UTC()
	_ = page.MarkCrawling(now)
	_ = e.store.UpdatePage(page)

	result, ferr := e.fetcher.Fetch(ctx, depth, targetURL, e.retryParam)
	if ferr != nil {
		e.handleFetchFailure(&page, targetURL.String(), ferr)
		e.tickProgress(depth, targetURL.String())
		return
	}

	e.handleFetchSuccess(&page, &targetURL, depth, result)
	e.tickProgress(depth, targetURL.String())
}

func (e *CrawlEngine) handleFetchFailure(page *model.Page, target string, ferr failure.ClassifiedError) {
	now := time.Now().UTC()
	msg := ferr.Error()
	_ = page.MarkFailed(msg, now)
	_ = e.store.UpdatePage(*page)

	e.mu.Lock()
	e.session.RecordFailed(now)
	sess := e.session
	e.mu.Unlock()
	_ = e.store.UpdateCrawlSession(sess)

	if e.errors != nil {
		e.errors.AddError(target, mapFetchErrorToKind(ferr), msg, 0, page.RetryCount(), false)
	}
}

func (e *CrawlEngine) handleFetchSuccess(page *model.Page, targetURL *url.URL, depth int, result fetcher.FetchResult) {
	now := time.Now().UTC()
	contentHash := result.ContentHash()

	if e.hasHash(contentHash) {
		page.MarkSkipped("Duplicate content", now)
		_ = e.store.UpdatePage(*page)

		e.mu.Lock()
		e.session.RecordSkipped(now)
		sess := e.session
		e.mu.Unlock()
		_ = e.store.UpdateCrawlSession(sess)
		return
	}
	e.addHash(contentHash)

	mimeType, charset := splitContentType(result.Headers()["Content-Type"])
	outbound, internalLinks, externalLinks := e.categorizeLinks(result.Links())

	_ = page.MarkProcessed(result.Code(), 0, mimeType, charset, result.Title(), string(result.Body()), result.Text(), outbound, internalLinks, externalLinks, now)
	_ = e.store.UpdatePage(*page)

	if e.docs != nil {
		if _, derr := e.docs.WritePage(*page); derr != nil {
			e.metadataSink.RecordError(now, "engine", "handleFetchSuccess", metadata.CauseStorageFailure, derr.Error(), []metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, page.URL()),
			})
		}
	}

	e.mu.Lock()
	e.session.RecordCrawled(int64(len(result.Body())), now)
	sess := e.session
	e.mu.Unlock()
	_ = e.store.UpdateCrawlSession(sess)

	if depth+1 > sess.ConfiguredDepth() {
		return
	}
	for _, link := range internalLinks {
		linkURL, err := url.Parse(link)
		if err != nil {
			continue
		}
		meta := frontier.NewDiscoveryMetadata(depth+1, nil)
		candidate := frontier.NewCrawlAdmissionCandidate(*linkURL, frontier.SourceCrawl, meta)
		e.submit(candidate, targetURL.String())
	}
}

// submit admits candidate into the frontier and, if it was newly admitted
// (not a duplicate, within depth/page limits), records the discovery
// against the session and remembers its parent for Page creation.
func (e *CrawlEngine) submit(candidate frontier.CrawlAdmissionCandidate, parentURL string) {
	before := e.frontier.VisitedCount()
	e.frontier.Submit(candidate)
	after := e.frontier.VisitedCount()
	if after <= before {
		return
	}

	target := candidate.TargetURL()
	canonical := urlutil.Canonicalize(target)
	key := canonical.String()
	e.setParent(key, parentURL)

	now := time.Now().UTC()
	e.mu.Lock()
	e.session.RecordDiscovery(e.frontier.Len(), candidate.DiscoveryMetadata().Depth(), now)
	sess := e.session
	e.mu.Unlock()
	_ = e.store.UpdateCrawlSession(sess)
}

func (e *CrawlEngine) tickProgress(depth int, currentURL string) {
	sess := e.Session()
	e.progress.SetCurrentOperation(currentURL)
	e.progress.UpdateMetrics(map[string]any{
		"depth":         depth,
		"pages_crawled": sess.PagesCrawled(),
		"pages_failed":  sess.PagesFailed(),
		"queue_size":    e.frontier.Len(),
		"current_url":   currentURL,
	})
}

func (e *CrawlEngine) categorizeLinks(links []string) (outbound, internalLinks, externalLinks []string) {
	outbound = links
	for _, l := range links {
		u, err := url.Parse(l)
		if err != nil {
			continue
		}
		if strings.EqualFold(u.Hostname(), e.seedHost) {
			internalLinks = append(internalLinks, l)
		} else {
			externalLinks = append(externalLinks, l)
		}
	}
	return outbound, internalLinks, externalLinks
}

func (e *CrawlEngine) hasHash(h string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.contentHashes[h]
	return ok
}

func (e *CrawlEngine) addHash(h string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contentHashes[h] = struct{}{}
}

func (e *CrawlEngine) lookupParent(key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parentByURL[key]
}

func (e *CrawlEngine) setParent(key, parentURL string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parentByURL[key] = parentURL
}

// finishSession marks the session COMPLETED, or FAILED with failureMsg
// when the worker boundary observed an uncaught failure.
func (e *CrawlEngine) finishSession(failureMsg string) {
	now := time.Now().UTC()

	e.mu.Lock()
	if failureMsg != "" {
		e.session.Fail(failureMsg, now)
	} else {
		e.session.Complete(now)
	}
	sess := e.session
	errSink := e.errors
	e.running = false
	e.mu.Unlock()

	_ = e.store.UpdateCrawlSession(sess)

	if errSink != nil && errSink.HasErrors() {
		_, _, _ = errSink.SaveReport(sess)
	}
}

func depthAttr(depth int) string {
	return strconv.Itoa(depth)
}

func splitContentType(contentType string) (mimeType, charset string) {
	if contentType == "" {
		return "", ""
	}
	media, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType, ""
	}
	return media, params["charset"]
}

func mapFetchErrorToKind(err failure.ClassifiedError) model.ErrorKind {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Cause {
		case fetcher.ErrCauseTimeout:
			return model.ErrorKindTimeout
		case fetcher.ErrCauseNetworkFailure, fetcher.ErrCauseReadResponseBodyError, fetcher.ErrCauseRedirectLimitExceeded, fetcher.ErrCauseRequest5xx:
			return model.ErrorKindNetwork
		case fetcher.ErrCauseContentTypeInvalid:
			return model.ErrorKindParse
		case fetcher.ErrCauseRequestPageForbidden, fetcher.ErrCauseRepeated403:
			return model.ErrorKindPermission
		case fetcher.ErrCauseRequestTooMany:
			return model.ErrorKindRateLimit
		}
	}

	var retryErr *retry.RetryError
	if errors.As(err, &retryErr) {
		return model.ErrorKindTimeout
	}

	return model.ErrorKindUnknown
}
