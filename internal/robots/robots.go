package robots

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/behemotion/docbro/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per origin, once
- Cache the parsed verdict for the crawl's lifetime
- Enforce allow/disallow rules before a URL enters the frontier

Robots checks occur before a URL enters the frontier; failures never
propagate to the caller (spec §4.2 is fail-open by design).
*/

const fetchTimeout = 5 * time.Second
const maxBodyBytes = 500 * 1024

// RobotsCache is scoped to one CrawlEngine instance (spec §3 ownership).
type RobotsCache struct {
	httpClient *http.Client
	entries    cache.Cache

	mu      sync.Mutex
	parsed  map[string]*robotstxt.RobotsData // origin -> parsed rules, nil means "allow all"
}

func NewRobotsCache() *RobotsCache {
	return &RobotsCache{
		httpClient: &http.Client{Timeout: fetchTimeout},
		entries:    cache.NewMemoryCache(),
		parsed:     make(map[string]*robotstxt.RobotsData),
	}
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// IsAllowed reports whether user-agent may fetch the given URL, per the
// cached robots.txt of its origin. Always returns a boolean; never surfaces
// a fetch/parse error to the caller.
func (r *RobotsCache) IsAllowed(target *url.URL, userAgent string) bool {
	return r.Check(target, userAgent).Allowed
}

// Check is IsAllowed's richer sibling: it also reports why, for the
// engine's observability sink. is_allowed (spec §4.2) is exactly Check(...).Allowed.
func (r *RobotsCache) Check(target *url.URL, userAgent string) Decision {
	o := origin(target)

	r.mu.Lock()
	data, known := r.parsed[o]
	r.mu.Unlock()

	if !known {
		var reason DecisionReason
		data, reason = r.fetchAndParse(o)
		r.mu.Lock()
		r.parsed[o] = data
		r.mu.Unlock()
		if data == nil {
			return Decision{URL: *target, Allowed: true, Reason: reason}
		}
	}

	if data == nil {
		return Decision{URL: *target, Allowed: true, Reason: FetchFailed}
	}

	group := data.FindGroup(userAgent)
	path := target.Path
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	if path == "" {
		path = "/"
	}

	allowed := group.Test(path)
	reason := AllowedByRobots
	if !allowed {
		reason = DisallowedByRobots
	}

	var crawlDelay *time.Duration
	if d := group.CrawlDelay; d > 0 {
		crawlDelay = &d
	}

	return Decision{URL: *target, Allowed: allowed, Reason: reason, CrawlDelay: crawlDelay}
}

// RawRobotsTxt returns the raw body last fetched for origin, for debugging.
func (r *RobotsCache) RawRobotsTxt(o string) (string, bool) {
	return r.entries.Get(o)
}

// fetchAndParse retrieves and interprets scheme://host/robots.txt per spec §4.2:
// a non-robots-looking 200 body, a 404, or any fetch error all mean "allow all"
// (represented as a nil *robotstxt.RobotsData).
func (r *RobotsCache) fetchAndParse(o string) (*robotstxt.RobotsData, DecisionReason) {
	req, err := http.NewRequest(http.MethodGet, o+"/robots.txt", nil)
	if err != nil {
		return nil, FetchFailed
	}
	req.Header.Set("User-Agent", "docbro-crawler/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, FetchFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, FetchFailed
	}
	if resp.StatusCode != http.StatusOK {
		return nil, FetchFailed
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, FetchFailed
	}

	if !looksLikeRobots(resp.Header.Get("Content-Type"), body) {
		return nil, NotRobotsContent
	}
	r.entries.Put(o, string(body))

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, FetchFailed
	}
	return data, AllowedByRobots
}

// looksLikeRobots implements spec §4.2's sniff: content-type text/plain, or a
// body that begins (after leading blank/comment lines) with "user-agent:".
func looksLikeRobots(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/plain") {
		return true
	}
	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return strings.HasPrefix(strings.ToLower(trimmed), "user-agent:")
	}
	return false
}
