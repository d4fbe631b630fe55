package robots

import (
	"net/url"
	"time"
)

// DecisionReason documents why a robots check resolved the way it did.
type DecisionReason string

const (
	AllowedByRobots     DecisionReason = "allowed_by_robots"
	DisallowedByRobots  DecisionReason = "disallowed_by_robots"
	UserAgentNotMatched DecisionReason = "user_agent_not_matched"
	FetchFailed         DecisionReason = "fetch_failed_allow_all"
	NotRobotsContent    DecisionReason = "not_robots_content_allow_all"
)

// Decision is the verdict RobotsCache reached for one URL, kept for
// observability; callers needing only the boolean use IsAllowed.
type Decision struct {
	URL url.URL

	Allowed bool

	Reason DecisionReason

	// CrawlDelay is the origin's robots.txt Crawl-delay directive, if any.
	CrawlDelay *time.Duration
}
