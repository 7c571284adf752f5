package main

import (
	"fmt"

	"github.com/fwojciec/sitemapgen"
	"github.com/fwojciec/sitemapgen/crawl"
	sitemaphttp "github.com/fwojciec/sitemapgen/http"
	"github.com/fwojciec/sitemapgen/jwt"
	"github.com/fwojciec/sitemapgen/prometheus"
	"github.com/fwojciec/sitemapgen/redis"
	"github.com/fwojciec/sitemapgen/sqlite"
	"github.com/gin-gonic/gin"
)

// Run executes the serve command. It blocks until the context is cancelled
// and then shuts down gracefully.
func (c *ServeCmd) Run(deps *Dependencies) error {
	ctx, logger := deps.Ctx, deps.Logger

	defaults := c.Options()
	if err := defaults.Validate(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", sitemapgen.ErrorMessage(err))
		return err
	}

	auth, err := jwt.NewAuthenticator(jwt.Config{
		Mode:     c.AuthType,
		Username: c.AuthUsername,
		Password: c.AuthPassword,
		Secret:   []byte(c.JWTSecret),
		Expiry:   c.JWTExpiresIn,
	})
	if err != nil {
		return fmt.Errorf("failed to configure authentication: %w", err)
	}

	db := sqlite.NewDB(c.DB)
	if err := db.Open(); err != nil {
		fmt.Fprintf(deps.Stderr, "Hint: Set SITEMAPGEN_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", c.DB, err)
	}
	defer db.Close()
	jobs := sqlite.NewJobService(db)

	metrics := prometheus.NewMetrics()
	hub := sitemaphttp.NewHub()
	hub.Logger = logger

	runner := crawl.NewRunner(c.Engine(logger), c.Builder(logger), jobs)
	runner.Logger = logger
	runner.Notifier = prometheus.NewNotifier(hub, metrics)
	defer runner.Close()

	server := sitemaphttp.NewServer()
	server.Addr = fmt.Sprintf(":%d", c.Port)
	server.CORSOrigin = c.CORSOrigin
	server.Defaults = defaults
	server.JobRunner = runner
	server.JobService = jobs
	server.Authenticator = auth
	server.Hub = hub
	server.MetricsHandler = metrics.Handler()
	server.Middleware = []gin.HandlerFunc{metrics.Middleware()}
	server.Logger = logger

	if c.RedisAddr != "" {
		client, err := redis.NewClient(ctx, redis.Config{Addr: c.RedisAddr, Password: c.RedisPassword})
		if err != nil {
			logger.Warn("redis unavailable, result caching disabled", "addr", c.RedisAddr, "err", err)
		} else {
			defer client.Close()
			cache := redis.NewResultCache(client, c.CacheTTL)
			runner.Cache = cache
			server.CachePing = cache.Ping
		}
	}

	if err := server.Open(); err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", c.Port, err)
	}
	fmt.Fprintf(deps.Stdout, "Listening on %s (auth: %s)\n", server.URL(), c.AuthType)
	fmt.Fprintf(deps.Stdout, "WebSocket available at ws://localhost:%d/ws\n", server.Port())
	if deps.Ready != nil {
		deps.Ready(server.URL())
	}

	<-ctx.Done()

	fmt.Fprintln(deps.Stdout, "Shutting down...")
	err = server.Close()
	_ = runner.Close()
	return err
}
