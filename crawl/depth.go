package crawl

import (
	"net/url"
	"strings"

	"github.com/fwojciec/sitemapgen"
)

// pathSegments counts the non-empty segments of the URL's path.
func pathSegments(u *url.URL) int {
	n := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}

// PathDepth approximates the BFS depth of target relative to start as the
// difference in path segment counts, floored at zero. Link distance is not
// tracked.
func PathDepth(target, start *url.URL) int {
	return max(0, pathSegments(target)-pathSegments(start))
}

// ChangeFreqFor returns the change frequency assigned to a page at depth.
func ChangeFreqFor(depth int) sitemapgen.ChangeFreq {
	switch depth {
	case 0:
		return sitemapgen.ChangeFreqDaily
	case 1:
		return sitemapgen.ChangeFreqWeekly
	default:
		return sitemapgen.ChangeFreqMonthly
	}
}

// PriorityFor returns the sitemap priority of u at depth. The site root
// always gets 1.0.
func PriorityFor(u *url.URL, depth int) string {
	if u.Path == "" || u.Path == "/" {
		return "1.0"
	}
	switch depth {
	case 0:
		return "0.9"
	case 1:
		return "0.7"
	case 2:
		return "0.5"
	default:
		return "0.3"
	}
}
