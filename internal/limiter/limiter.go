// Package limiter enforces the per-origin request spacing the crawl engine
// must respect: a floor of 1/requests_per_second between two fetches of the
// same origin, widened by the origin's robots.txt Crawl-delay (if any) or by
// exponential backoff after a 429/503 response. Independent origins never
// block one another.
package limiter

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	pkglimiter "github.com/behemotion/docbro/pkg/limiter"
)

// Limiter is scoped to one CrawlEngine instance, same as RobotsCache.
type Limiter struct {
	requestsPerSecond float64

	mu        sync.Mutex
	perOrigin map[string]*rate.Limiter

	// policy carries crawl-delay and backoff state per origin; it widens,
	// never narrows, the baseline spacing above.
	policy *pkglimiter.ConcurrentRateLimiter
}

func NewLimiter(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Limiter{
		requestsPerSecond: requestsPerSecond,
		perOrigin:         make(map[string]*rate.Limiter),
		policy:            pkglimiter.NewConcurrentRateLimiter(),
	}
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

func (l *Limiter) originLimiter(o string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl, ok := l.perOrigin[o]
	if !ok {
		// burst of 1: no request may skip ahead of the spacing floor.
		rl = rate.NewLimiter(rate.Limit(l.requestsPerSecond), 1)
		l.perOrigin[o] = rl
	}
	return rl
}

// Acquire blocks until target's origin may be fetched again: at least
// 1/requests_per_second since the origin's last fetch, widened by any
// configured crawl-delay or active backoff for that origin.
func (l *Limiter) Acquire(ctx context.Context, target *url.URL) error {
	o := origin(target)

	if err := l.originLimiter(o).Wait(ctx); err != nil {
		return err
	}

	if extra := l.policy.ResolveDelay(o); extra > 0 {
		timer := time.NewTimer(extra)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	l.policy.MarkLastFetchAsNow(o)
	return nil
}

// SetCrawlDelay records the Crawl-delay directive robots.txt specified for
// origin, so subsequent Acquire calls honor it.
func (l *Limiter) SetCrawlDelay(target *url.URL, delay time.Duration) {
	l.policy.SetCrawlDelay(origin(target), delay)
}

// Backoff widens the delay for origin after a 429/503 response.
func (l *Limiter) Backoff(target *url.URL) {
	l.policy.Backoff(origin(target))
}

// ResetBackoff clears accumulated backoff for origin after a successful fetch.
func (l *Limiter) ResetBackoff(target *url.URL) {
	l.policy.ResetBackoff(origin(target))
}
