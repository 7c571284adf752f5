// Package prometheus exposes job and HTTP metrics using the Prometheus
// client library.
package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/sitemapgen"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitemapgen"

// Metrics holds the collectors of one process on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	JobMessages     *prometheus.CounterVec
	CrawlEvents     *prometheus.CounterVec
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_messages_total",
			Help:      "Job messages delivered to subscribers, by type.",
		}, []string{"type"}),
		CrawlEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_events_total",
			Help:      "Crawl progress events, by outcome.",
		}, []string{"type"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "endpoint", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
	m.registry.MustRegister(
		m.JobMessages,
		m.CrawlEvents,
		m.RequestsTotal,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the exposition handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and durations by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := c.Request.Method
		m.RequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

var _ sitemapgen.JobNotifier = (*Notifier)(nil)

// Notifier wraps a JobNotifier and counts the messages passing through.
type Notifier struct {
	notifier sitemapgen.JobNotifier
	metrics  *Metrics
}

// NewNotifier returns a counting decorator. notifier may be nil, in which
// case messages are only counted.
func NewNotifier(notifier sitemapgen.JobNotifier, metrics *Metrics) *Notifier {
	return &Notifier{notifier: notifier, metrics: metrics}
}

// Notify counts msg and forwards it.
func (n *Notifier) Notify(msg *sitemapgen.JobMessage) {
	n.metrics.JobMessages.WithLabelValues(msg.Type).Inc()
	if event, ok := msg.Data.(sitemapgen.ProgressEvent); ok {
		n.metrics.CrawlEvents.WithLabelValues(string(event.Type)).Inc()
	}
	if n.notifier != nil {
		n.notifier.Notify(msg)
	}
}
