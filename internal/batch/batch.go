// Package batch implements the BatchOrchestrator: a sequential, one
// CrawlEngine-per-project sweep over N projects with continue-on-error
// semantics, recomputing an estimated completion time as each project
// finishes.
package batch

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/behemotion/docbro/internal/config"
	"github.com/behemotion/docbro/internal/docstore"
	"github.com/behemotion/docbro/internal/engine"
	"github.com/behemotion/docbro/internal/fetcher"
	"github.com/behemotion/docbro/internal/limiter"
	"github.com/behemotion/docbro/internal/metadata"
	"github.com/behemotion/docbro/internal/model"
	"github.com/behemotion/docbro/internal/progress"
	"github.com/behemotion/docbro/internal/report"
	"github.com/behemotion/docbro/internal/robots"
	"github.com/behemotion/docbro/internal/store"
)

// pollInterval is how often CrawlAll checks a running project's session for
// completion. The engine itself is the one doing real I/O; this loop only
// observes persisted state.
const pollInterval = 20 * time.Millisecond

// FetcherFactory builds a fresh Fetcher for one project's CrawlEngine.
// RobotsCache and RateLimiter are owned by a CrawlEngine instance and
// scoped to its lifetime (spec ownership rule); a fresh Fetcher per project
// keeps its HTTP client and User-Agent from leaking across projects too.
type FetcherFactory func() fetcher.Fetcher

// Orchestrator drives a sequential crawl_all run across projects.
type Orchestrator struct {
	store         *store.SessionStore
	newFetcher    FetcherFactory
	metadataSink  metadata.MetadataSink
	reportBaseDir string
	docsBaseDir   string // empty disables per-page markdown persistence

	cancelled atomic.Bool

	// queueTimeouts overrides the per-engine frontier-polling durations;
	// zero means "use internal/config's defaults". Tests shrink these via
	// SetQueueTimeoutsForTest so a batch run completes in milliseconds
	// instead of the production 60s/30s/10s.
	queueTimeoutShallow time.Duration
	queueTimeoutAtDepth time.Duration
	queueRecheckDelay   time.Duration
}

// SetQueueTimeoutsForTest overrides the frontier-polling durations passed to
// every project's CrawlEngine config.
func (o *Orchestrator) SetQueueTimeoutsForTest(shallow, atDepth, recheck time.Duration) {
	o.queueTimeoutShallow = shallow
	o.queueTimeoutAtDepth = atDepth
	o.queueRecheckDelay = recheck
}

func NewOrchestrator(sessionStore *store.SessionStore, newFetcher FetcherFactory, reportBaseDir, docsBaseDir string, metadataSink metadata.MetadataSink) *Orchestrator {
	if metadataSink == nil {
		metadataSink = metadata.NoopSink{}
	}
	return &Orchestrator{
		store:         sessionStore,
		newFetcher:    newFetcher,
		metadataSink:  metadataSink,
		reportBaseDir: reportBaseDir,
		docsBaseDir:   docsBaseDir,
	}
}

// Cancel requests the orchestrator stop before starting its next project.
// The project currently running is not interrupted mid-page; an immediate
// abort is the caller's choice via the running CrawlEngine's StopCrawl.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// CrawlAll sequentially runs each named project through its own CrawlEngine,
// honoring continueOnError, and returns the resulting BatchOperation.
func (o *Orchestrator) CrawlAll(
	ctx context.Context,
	projectNames []string,
	maxPages int,
	rateLimit float64,
	continueOnError bool,
	progressSink progress.Sink,
) (model.BatchOperation, error) {
	if progressSink == nil {
		progressSink = progress.NoopSink{}
	}

	batchOp, err := model.NewBatchOperation(projectNames, continueOnError, time.Now().UTC())
	if err != nil {
		return model.BatchOperation{}, err
	}

	for _, name := range projectNames {
		if o.cancelled.Load() {
			break
		}

		progressSink.SetCurrentOperation(fmt.Sprintf("project %d/%d: %s", batchOp.CurrentIndex()+1, len(projectNames), name))

		proj, ok := o.store.GetProjectByName(name)
		if !ok {
			now := time.Now().UTC()
			batchErr := &BatchError{Message: "no such project", ProjectName: name, Cause: ErrCauseUnknownProject}
			batchOp.MarkFailed(name, batchErr.Error(), now)
			progressSink.CompleteOperation(name, "crawl", 0, nil, progress.StatusFailure)
			if !continueOnError {
				break
			}
			continue
		}

		_ = o.store.UpdateProjectStatus(proj.ID(), model.ProjectCrawling, "")
		progressSink.StartOperation("crawl", name)

		start := time.Now()
		sess, reporter, runErr := o.runProject(ctx, proj, maxPages, rateLimit, progressSink)
		elapsed := time.Since(start)
		now := time.Now().UTC()

		failureMsg := ""
		switch {
		case runErr != nil:
			failureMsg = runErr.Error()
		case sess.Status() == model.SessionFailed:
			failureMsg = sess.FailureMessage()
		case sess.PagesCrawled() == 0 && sess.PagesFailed() > 0:
			failureMsg = fmt.Sprintf("no page crawled: all %d fetched pages failed", sess.PagesFailed())
		}

		if failureMsg != "" {
			_ = o.store.UpdateProjectStatus(proj.ID(), model.ProjectError, failureMsg)
			batchOp.MarkFailed(name, failureMsg, now)
			progressSink.CompleteOperation(name, "crawl", elapsed, nil, progress.StatusFailure)
			o.saveReportIfNeeded(sess, reporter)
			if !continueOnError {
				break
			}
			continue
		}

		_ = o.store.UpdateProjectStatus(proj.ID(), model.ProjectReady, "")
		_ = o.store.UpdateProjectStatistics(proj.ID(), now, sess.PagesCrawled(), sess.TotalBytes())
		batchOp.MarkCompleted(name, sess.PagesCrawled(), 0)

		status := progress.StatusSuccess
		if reporter != nil && reporter.HasErrors() {
			status = progress.StatusPartialSuccess
		}
		progressSink.CompleteOperation(name, "crawl", elapsed, map[string]any{
			"pages_crawled": sess.PagesCrawled(),
			"pages_failed":  sess.PagesFailed(),
			"pages_skipped": sess.PagesSkipped(),
		}, status)

		o.saveReportIfNeeded(sess, reporter)
	}

	return batchOp, nil
}

// runProject instantiates a fresh CrawlEngine for proj, starts the crawl and
// polls the session until it reaches a terminal status.
func (o *Orchestrator) runProject(ctx context.Context, proj model.Project, maxPages int, rateLimit float64, progressSink progress.Sink) (model.CrawlSession, *report.Reporter, error) {
	seedURL, err := url.Parse(proj.SeedURL())
	if err != nil {
		return model.CrawlSession{}, nil, err
	}

	cfgBuilder := config.WithDefault([]url.URL{*seedURL}).
		WithMaxDepth(proj.Depth()).
		WithMaxPages(maxPages).
		WithRateLimit(rateLimit)
	if o.queueTimeoutShallow > 0 {
		cfgBuilder = cfgBuilder.WithQueueTimeoutShallow(o.queueTimeoutShallow)
	}
	if o.queueTimeoutAtDepth > 0 {
		cfgBuilder = cfgBuilder.WithQueueTimeoutAtDepth(o.queueTimeoutAtDepth)
	}
	if o.queueRecheckDelay > 0 {
		cfgBuilder = cfgBuilder.WithQueueRecheckDelay(o.queueRecheckDelay)
	}
	cfg, err := cfgBuilder.Build()
	if err != nil {
		return model.CrawlSession{}, nil, err
	}

	reporter := report.NewReporter(o.reportBaseDir, proj, o.metadataSink)

	var docSink docstore.PageSink
	if o.docsBaseDir != "" {
		docSink = docstore.NewDocWriter(o.docsBaseDir, proj, o.metadataSink)
	}

	eng := engine.NewCrawlEngine(o.store, o.newFetcher(), robots.NewRobotsCache(), limiter.NewLimiter(cfg.RateLimit()), o.metadataSink)

	sess, err := eng.StartCrawl(ctx, cfg, proj.ID(), maxPages, progressSink, reporter, docSink)
	if err != nil {
		return model.CrawlSession{}, reporter, err
	}

	for !sess.IsCompleted() {
		if o.cancelled.Load() {
			_ = eng.StopCrawl(sess.ID())
		}
		select {
		case <-ctx.Done():
			_ = eng.StopCrawl(sess.ID())
			return sess, reporter, ctx.Err()
		case <-time.After(pollInterval):
		}
		current, ok := o.store.GetCrawlSession(sess.ID())
		if !ok {
			break
		}
		sess = current
	}

	return sess, reporter, nil
}

func (o *Orchestrator) saveReportIfNeeded(sess model.CrawlSession, reporter *report.Reporter) {
	if reporter == nil || !reporter.HasErrors() {
		return
	}
	_, _, _ = reporter.SaveReport(sess)
}

// EstimateCompletion is a thin pass-through to model.BatchOperation's own
// recompute, kept here so CLI callers do not need to import internal/model
// just to render an ETA.
func EstimateCompletion(b model.BatchOperation, now time.Time) *time.Time {
	return b.EstimatedCompletion(now)
}
