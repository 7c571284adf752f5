package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/sitemapgen"
)

// Ensure LoggingRobotsService implements sitemapgen.RobotsService.
var _ sitemapgen.RobotsService = (*LoggingRobotsService)(nil)

// LoggingRobotsService wraps a RobotsService with logging. A failed fetch
// is logged as a warning since the crawl proceeds without rules.
type LoggingRobotsService struct {
	next   sitemapgen.RobotsService
	logger *slog.Logger
}

// NewLoggingRobotsService creates a new LoggingRobotsService.
func NewLoggingRobotsService(next sitemapgen.RobotsService, logger *slog.Logger) *LoggingRobotsService {
	return &LoggingRobotsService{next: next, logger: logger}
}

// Policy delegates to the wrapped service and logs the operation.
func (s *LoggingRobotsService) Policy(ctx context.Context, origin string) (policy sitemapgen.RobotsPolicy, err error) {
	defer func(begin time.Time) {
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "robots",
			"origin", origin,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Policy(ctx, origin)
}
