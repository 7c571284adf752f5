package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/sitemapgen"
	"github.com/fwojciec/sitemapgen/crawl"
	"github.com/fwojciec/sitemapgen/etree"
	"github.com/fwojciec/sitemapgen/goquery"
	sitemaphttp "github.com/fwojciec/sitemapgen/http"
	sitemapslog "github.com/fwojciec/sitemapgen/slog"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	Ready  func(url string)
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"warn" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`

	Crawl CrawlCmd `cmd:"" help:"Crawl a website and write its sitemaps to a directory"`
	Serve ServeCmd `cmd:"" help:"Serve the sitemap generation API"`
}

// CrawlFlags are the crawl settings shared by both commands. Environment
// variables supply the defaults used by the API.
type CrawlFlags struct {
	MaxURLs     int           `name:"max-urls" env:"DEFAULT_MAX_URLS" default:"10000" help:"Maximum number of URLs in the sitemap"`
	CrawlDepth  int           `name:"crawl-depth" env:"DEFAULT_CRAWL_DEPTH" default:"3" help:"Maximum path depth below the start URL"`
	Concurrency int           `short:"c" env:"DEFAULT_CONCURRENCY" default:"5" help:"Concurrent fetch limit"`
	Timeout     time.Duration `env:"REQUEST_TIMEOUT" default:"10s" help:"Per-request timeout"`
	UserAgent   string        `name:"user-agent" env:"USER_AGENT" default:"SitemapGenerator/1.0" help:"User-Agent sent with requests and matched against robots.txt"`
	RPS         float64       `name:"rps" env:"REQUESTS_PER_SECOND" default:"0" help:"Per-origin request rate limit (0 = unlimited)"`
}

// Options returns the crawl options selected by the flags.
func (f *CrawlFlags) Options() sitemapgen.CrawlOptions {
	return sitemapgen.CrawlOptions{
		MaxURLs:     f.MaxURLs,
		CrawlDepth:  f.CrawlDepth,
		Concurrency: f.Concurrency,
	}
}

// Engine wires a crawl engine with the HTTP fetcher, robots.txt service and
// goquery link extractor, each wrapped with logging.
func (f *CrawlFlags) Engine(logger *slog.Logger) *crawl.Engine {
	opts := []sitemaphttp.Option{
		sitemaphttp.WithTimeout(f.Timeout),
		sitemaphttp.WithUserAgent(f.UserAgent),
	}
	engine := &crawl.Engine{
		Fetcher:   sitemapslog.NewLoggingFetcher(sitemaphttp.NewFetcher(opts...), logger),
		Robots:    sitemapslog.NewLoggingRobotsService(sitemaphttp.NewRobotsService(opts...), logger),
		Extractor: goquery.NewLinkExtractor(),
		UserAgent: f.UserAgent,
	}
	if f.RPS > 0 {
		engine.Limiter = crawl.NewOriginLimiter(f.RPS)
	}
	return engine
}

// Builder returns the sitemap builder wrapped with logging.
func (f *CrawlFlags) Builder(logger *slog.Logger) sitemapgen.SitemapBuilder {
	return sitemapslog.NewLoggingSitemapBuilder(etree.NewBuilder(), logger)
}

// CrawlCmd is the "crawl" subcommand.
type CrawlCmd struct {
	URL    string `arg:"" help:"Start URL"`
	Output string `short:"o" default:"sitemaps" help:"Output directory"`
	Quiet  bool   `short:"q" help:"Do not print per-URL progress"`

	CrawlFlags `embed:""`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Port       int    `env:"PORT" default:"3000" help:"HTTP port"`
	DB         string `name:"db" env:"SITEMAPGEN_DB" default:":memory:" help:"SQLite database path for jobs"`
	CORSOrigin string `name:"cors-origin" env:"CORS_ORIGIN" default:"*" help:"Allowed CORS origin"`

	RedisAddr     string        `name:"redis-addr" env:"REDIS_ADDR" help:"Redis address for the result cache (empty disables caching)"`
	RedisPassword string        `name:"redis-password" env:"REDIS_PASSWORD" help:"Redis password"`
	CacheTTL      time.Duration `name:"cache-ttl" env:"CACHE_TTL" default:"1h" help:"Result cache TTL"`

	AuthType     string        `name:"auth-type" env:"AUTH_TYPE" default:"basic" enum:"basic,jwt" help:"Authentication mode (basic, jwt)"`
	AuthUsername string        `name:"auth-username" env:"AUTH_USERNAME" default:"admin" help:"API username"`
	AuthPassword string        `name:"auth-password" env:"AUTH_PASSWORD" default:"changeme" help:"API password"`
	JWTSecret    string        `name:"jwt-secret" env:"JWT_SECRET" default:"your-secret-key-change-this" help:"JWT signing secret"`
	JWTExpiresIn time.Duration `name:"jwt-expires-in" env:"JWT_EXPIRES_IN" default:"24h" help:"JWT lifetime"`

	CrawlFlags `embed:""`
}
