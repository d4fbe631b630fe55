package frontier

import (
	"sort"
	"sync"

	"github.com/behemotion/docbro/internal/config"
	"github.com/behemotion/docbro/pkg/urlutil"
)

/*
Frontier Responsibilities
- Maintain BFS ordering
- Deduplicate URLs
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- markdown
	- storage

It is a data structure + policy module, not a pipeline executor. Parent-URL
bookkeeping is the caller's concern (CrawlEngine), not the frontier's: the
frontier only ever reasons about admission order and depth.
*/

// CrawlFrontier is a depth-bucketed BFS work queue: one FIFOQueue per depth
// level, drained lowest-depth-first. Submitting a URL already at a pending
// or exhausted depth never reorders work already ahead of it in its bucket.
type CrawlFrontier struct {
	mu            sync.Mutex
	cfg           config.Config
	queuesByDepth map[int]*FIFOQueue[CrawlToken]
	visited       Set[string]
}

func NewCrawlFrontier() *CrawlFrontier {
	return &CrawlFrontier{
		queuesByDepth: make(map[int]*FIFOQueue[CrawlToken]),
		visited:       NewSet[string](),
	}
}

// Init binds the frontier to a config's depth/page limits. Must be called
// before Submit/Dequeue are used.
func (f *CrawlFrontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

// Submit admits a candidate into the frontier. It is a no-op if the URL was
// already submitted, if its depth exceeds the configured max depth, or if
// the number of distinct URLs ever admitted has reached max pages.
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	targetURL := candidate.TargetURL()
	depth := candidate.DiscoveryMetadata().Depth()

	if maxDepth := f.cfg.MaxDepth(); maxDepth > 0 && depth > maxDepth {
		return
	}

	canonical := urlutil.Canonicalize(targetURL)
	key := canonical.String()
	if f.visited.Contains(key) {
		return
	}
	if maxPages := f.cfg.MaxPages(); maxPages > 0 && f.visited.Size() >= maxPages {
		return
	}

	f.visited.Add(key)

	q, ok := f.queuesByDepth[depth]
	if !ok {
		q = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = q
	}
	q.Enqueue(NewCrawlToken(targetURL, depth))
}

// Dequeue returns the next token in strict depth order: every token at depth
// d is returned before any token at depth d+1 that was pending at the same
// time. Returns ok=false when every depth bucket is empty.
func (f *CrawlFrontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depths := make([]int, 0, len(f.queuesByDepth))
	for d := range f.queuesByDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	for _, d := range depths {
		if tok, ok := f.queuesByDepth[d].Dequeue(); ok {
			return tok, true
		}
	}
	return CrawlToken{}, false
}

// IsDepthExhausted reports whether depth has no pending tokens: either no
// token was ever submitted at that depth, or all of them have been
// dequeued. Negative depths are always exhausted.
func (f *CrawlFrontier) IsDepthExhausted(depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if depth < 0 {
		return true
	}
	q, ok := f.queuesByDepth[depth]
	if !ok {
		return true
	}
	return q.Size() == 0
}

// CurrentMinDepth returns the lowest depth with pending tokens, or -1 if the
// frontier is empty.
func (f *CrawlFrontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	min := -1
	for d, q := range f.queuesByDepth {
		if q.Size() == 0 {
			continue
		}
		if min == -1 || d < min {
			min = d
		}
	}
	return min
}

// VisitedCount is the number of distinct URLs ever admitted, regardless of
// whether they have since been dequeued. It never decreases.
func (f *CrawlFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Size()
}

// Len is the number of tokens currently pending across every depth bucket.
func (f *CrawlFrontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, q := range f.queuesByDepth {
		total += q.Size()
	}
	return total
}
