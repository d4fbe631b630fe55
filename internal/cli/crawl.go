package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/behemotion/docbro/internal/batch"
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

var (
	crawlURL       string
	crawlMaxPages  int
	crawlRateLimit float64
	crawlDepth     int
	crawlUpdate    bool
	crawlAll       bool
	crawlDebug     bool
	crawlSeedSpec  []string
)

// sessionStore is process-scoped: SessionStore is an in-memory store per
// spec, so every invocation of this binary starts from an empty project
// set. --url bootstraps a project inline; --project pre-registers several
// in one shot for --all.
var sessionStore = store.NewSessionStore()

var crawlCmd = &cobra.Command{
	Use:   "crawl [name]",
	Short: "Crawl a documentation project",
	Long: `crawl runs the CrawlEngine against a single project, or every
registered project in sequence via --all.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runCrawl,
}

func init() {
	crawlCmd.Flags().StringVar(&crawlURL, "url", "", "seed URL; creates the project if it does not already exist")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "maximum number of pages to fetch (0 for unlimited)")
	crawlCmd.Flags().Float64Var(&crawlRateLimit, "rate-limit", 1.0, "requests per second to the same origin")
	crawlCmd.Flags().IntVar(&crawlDepth, "depth", 2, "maximum link depth from the seed URL")
	crawlCmd.Flags().BoolVar(&crawlUpdate, "update", false, "re-crawl an existing project")
	crawlCmd.Flags().BoolVar(&crawlAll, "all", false, "sequence every registered project via the batch orchestrator")
	crawlCmd.Flags().BoolVar(&crawlDebug, "debug", false, "emit debug-level structured logs")
	crawlCmd.Flags().StringArrayVar(&crawlSeedSpec, "project", nil, "name=url pair to register before crawling; repeatable, used with --all")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) {
	if crawlAll && !crawlUpdate {
		fmt.Fprintln(os.Stderr, "Error: --all requires --update")
		os.Exit(1)
	}

	metadataSink := newMetadataSinkForCLI()
	baseDir, err := report.DefaultBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if crawlAll {
		runCrawlAll(metadataSink, baseDir)
		return
	}

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: crawl requires exactly one project name unless --all is given")
		os.Exit(1)
	}
	runCrawlSingle(args[0], metadataSink, baseDir)
}

func runCrawlAll(metadataSink metadata.MetadataSink, baseDir string) {
	for _, spec := range crawlSeedSpec {
		name, seedURL, ok := strings.Cut(spec, "=")
		if !ok || name == "" || seedURL == "" {
			fmt.Fprintf(os.Stderr, "Error: --project must be name=url, got %q\n", spec)
			os.Exit(1)
		}
		if _, exists := sessionStore.GetProjectByName(name); !exists {
			if _, err := sessionStore.CreateProject(name, seedURL, crawlDepth, ""); err != nil {
				fmt.Fprintf(os.Stderr, "Error registering project %s: %s\n", name, err)
				os.Exit(1)
			}
		}
	}

	names := make([]string, 0, len(sessionStore.ListProjects()))
	for _, p := range sessionStore.ListProjects() {
		names = append(names, p.Name())
	}
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "Error: --all has no registered projects; pass --project name=url at least once")
		os.Exit(1)
	}

	newFetcher := func() fetcher.Fetcher {
		f := fetcher.NewHtmlFetcher(metadataSink)
		f.Init(nil, "docbro/1.0")
		return &f
	}

	orch := batch.NewOrchestrator(sessionStore, newFetcher, baseDir, baseDir, metadataSink)
	sink := newCLIProgressSink()

	result, err := orch.CrawlAll(context.Background(), names, crawlMaxPages, crawlRateLimit, true, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	printBatchBanner(result, baseDir)
	if len(result.Failed()) > 0 {
		os.Exit(1)
	}
}

func runCrawlSingle(name string, metadataSink metadata.MetadataSink, baseDir string) {
	proj, ok := sessionStore.GetProjectByName(name)
	if !ok {
		if crawlURL == "" {
			fmt.Fprintf(os.Stderr, "Error: project %q does not exist; pass --url to create it\n", name)
			os.Exit(1)
		}
		var err error
		proj, err = sessionStore.CreateProject(name, crawlURL, crawlDepth, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}

	seedURL, err := url.Parse(proj.SeedURL())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cfg, err := config.WithDefault([]url.URL{*seedURL}).
		WithMaxDepth(proj.Depth()).
		WithMaxPages(crawlMaxPages).
		WithRateLimit(crawlRateLimit).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	reporter := report.NewReporter(baseDir, proj, metadataSink)
	docSink := docstore.NewDocWriter(baseDir, proj, metadataSink)

	f := fetcher.NewHtmlFetcher(metadataSink)
	f.Init(nil, "docbro/1.0")

	eng := engine.NewCrawlEngine(sessionStore, &f, robots.NewRobotsCache(), limiter.NewLimiter(cfg.RateLimit()), metadataSink)
	sink := newCLIProgressSink()

	_ = sessionStore.UpdateProjectStatus(proj.ID(), model.ProjectCrawling, "")
	sink.StartOperation("crawl", proj.Name())
	start := time.Now()

	sess, err := eng.StartCrawl(context.Background(), cfg, proj.ID(), crawlMaxPages, sink, reporter, docSink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	for !sess.IsCompleted() {
		time.Sleep(50 * time.Millisecond)
		current, ok := sessionStore.GetCrawlSession(sess.ID())
		if !ok {
			break
		}
		sess = current
	}
	elapsed := time.Since(start)

	status := progress.StatusSuccess
	failureMsg := ""
	switch {
	case sess.Status() == model.SessionFailed:
		failureMsg = sess.FailureMessage()
		status = progress.StatusFailure
	case reporter.HasErrors():
		status = progress.StatusPartialSuccess
	}

	if failureMsg != "" {
		_ = sessionStore.UpdateProjectStatus(proj.ID(), model.ProjectError, failureMsg)
	} else {
		_ = sessionStore.UpdateProjectStatus(proj.ID(), model.ProjectReady, "")
		_ = sessionStore.UpdateProjectStatistics(proj.ID(), time.Now().UTC(), sess.PagesCrawled(), sess.TotalBytes())
	}

	sink.CompleteOperation(proj.Name(), "crawl", elapsed, map[string]any{
		"pages_crawled": sess.PagesCrawled(),
		"pages_failed":  sess.PagesFailed(),
		"pages_skipped": sess.PagesSkipped(),
	}, status)

	var reportPath string
	if reporter.HasErrors() {
		jsonPath, _, saveErr := reporter.SaveReport(sess)
		if saveErr == nil {
			reportPath = jsonPath
		}
	}
	printSingleBanner(proj.Name(), status, reportPath)

	if status == progress.StatusFailure {
		os.Exit(1)
	}
}

func newMetadataSinkForCLI() metadata.MetadataSink {
	level := slog.LevelInfo
	if crawlDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return metadata.NewRecorder(logger)
}

// printSingleBanner and printBatchBanner render the completion banner §7
// requires: SUCCESS / PARTIAL / FAILED plus the saved error report path.
// Columns, colors and terminal widths are deliberately not this binary's
// concern.
func printSingleBanner(project string, status progress.OperationStatus, reportPath string) {
	fmt.Printf("%s: %s\n", project, status)
	if reportPath != "" {
		fmt.Printf("error report: %s\n", reportPath)
	}
}

func printBatchBanner(result model.BatchOperation, baseDir string) {
	fmt.Printf("completed: %v\n", result.Completed())
	for _, f := range result.Failed() {
		fmt.Printf("failed: %s: %s\n", f.ProjectName, f.Message)
		fmt.Printf("error report: %s/projects/%s/reports/report_latest.json\n", baseDir, f.ProjectName)
	}
}
