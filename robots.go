package sitemapgen

import "context"

// RobotsPolicy answers allow/deny queries for an origin's robots rules.
// A policy is read-only and safe for concurrent use.
type RobotsPolicy interface {
	Allowed(rawURL string, userAgent string) bool
}

// RobotsService retrieves the robots policy of an origin.
type RobotsService interface {
	// Policy fetches and parses {origin}/robots.txt once. When the file
	// cannot be retrieved it returns AllowAll along with a *RobotsFetchError.
	Policy(ctx context.Context, origin string) (RobotsPolicy, error)
}

// AllowAll is the empty robots policy.
var AllowAll RobotsPolicy = allowAll{}

type allowAll struct{}

func (allowAll) Allowed(string, string) bool { return true }
