package crawl

import (
	"fmt"

	"github.com/fwojciec/sitemapgen"
)

// TruncateURL shortens a URL for display, keeping the end which is more informative.
func TruncateURL(url string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 4 {
		return url[:min(len(url), maxLen)]
	}
	if len(url) <= maxLen {
		return url
	}
	return "..." + url[len(url)-maxLen+3:]
}

// FormatBytes formats bytes in human-readable form.
func FormatBytes(bytes int) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatEvent renders a progress event as a one-line status message. URLs
// longer than width are truncated; width <= 0 keeps them whole.
func FormatEvent(event sitemapgen.ProgressEvent, width int) string {
	u := event.URL
	if width > 0 {
		u = TruncateURL(u, width)
	}
	switch event.Type {
	case sitemapgen.ProgressCrawled:
		return fmt.Sprintf("crawled %s (depth %d, %d total)", u, event.Depth, event.Total)
	case sitemapgen.ProgressSkipped:
		return fmt.Sprintf("skip %s: %s", u, event.Reason)
	case sitemapgen.ProgressError:
		return fmt.Sprintf("error %s: %s", u, event.Error)
	default:
		return fmt.Sprintf("%s %s", event.Type, u)
	}
}

// SitemapSize returns the total number of bytes across all documents of set.
func SitemapSize(set *sitemapgen.SitemapSet) int {
	var n int
	for _, doc := range set.Files() {
		n += len(doc.Content)
	}
	return n
}
