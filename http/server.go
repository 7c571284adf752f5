package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/sitemapgen"
	"github.com/gin-gonic/gin"
)

// ShutdownTimeout is the time given for outstanding requests to finish
// before the server is stopped.
const ShutdownTimeout = 30 * time.Second

// userKey is the gin context key of the authenticated user.
const userKey = "user"

// Server serves the sitemap API.
type Server struct {
	ln     net.Listener
	server *http.Server

	// Addr is the bind address, e.g. ":3000".
	Addr string

	// CORSOrigin is sent as Access-Control-Allow-Origin. Defaults to "*".
	CORSOrigin string

	// Defaults fill crawl options absent from generate requests.
	Defaults sitemapgen.CrawlOptions

	JobRunner     sitemapgen.JobRunner
	JobService    sitemapgen.JobService
	Authenticator sitemapgen.Authenticator

	// Hub serves /ws when set.
	Hub *Hub

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	// Middleware runs before every route, e.g. request metrics.
	Middleware []gin.HandlerFunc

	// CachePing reports the health of the result cache. A nil CachePing
	// reports the cache as disabled.
	CachePing func(ctx context.Context) error

	Logger *slog.Logger
	Now    func() time.Time
}

// NewServer returns a server with default settings.
func NewServer() *Server {
	return &Server{
		CORSOrigin: "*",
		Defaults:   sitemapgen.DefaultCrawlOptions(),
		Logger:     slog.Default(),
		Now:        time.Now,
	}
}

// Open starts listening on Addr and serves in the background.
func (s *Server) Open() (err error) {
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("http server", "err", err)
		}
	}()
	return nil
}

// Port returns the TCP port of the running server.
func (s *Server) Port() int {
	if s.ln == nil {
		return 0
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

// URL returns the local base URL of the running server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.Port())
}

// Close disconnects WebSocket clients and gracefully shuts down the server.
func (s *Server) Close() error {
	if s.Hub != nil {
		_ = s.Hub.Close()
	}
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(s.recovery(), s.logging(), s.cors())
	r.Use(s.Middleware...)

	if s.Hub != nil {
		r.GET("/ws", gin.WrapH(s.Hub))
	}
	if s.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(s.MetricsHandler))
	}

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.authenticate())
	authed.POST("/generate", s.handleGenerate)
	authed.GET("/status/:jobId", s.handleStatus)
	authed.GET("/status/:jobId/progress", s.handleProgress)
	authed.GET("/download/:jobId", s.handleDownload)
	authed.GET("/sitemaps/:jobId", s.handleSitemaps)

	return r
}

// Error writes err as a JSON body with a status derived from its code.
// Internal errors are logged and their details hidden.
func (s *Server) Error(c *gin.Context, err error) {
	code, message := sitemapgen.ErrorCode(err), sitemapgen.ErrorMessage(err)
	if code == sitemapgen.EINTERNAL {
		s.Logger.Error("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
	}
	c.AbortWithStatusJSON(ErrorStatusCode(code), gin.H{"error": message})
}

var codes = map[string]int{
	sitemapgen.ECONFLICT:     http.StatusBadRequest,
	sitemapgen.EINVALID:      http.StatusBadRequest,
	sitemapgen.ENOTFOUND:     http.StatusNotFound,
	sitemapgen.EUNAUTHORIZED: http.StatusUnauthorized,
	sitemapgen.EINTERNAL:     http.StatusInternalServerError,
}

// ErrorStatusCode maps an application error code to an HTTP status.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if v := recover(); v != nil {
				s.Logger.Error("http handler panic", "method", c.Request.Method, "path", c.Request.URL.Path, "panic", v)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error."})
			}
		}()
		c.Next()
	}
}

func (s *Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func(begin time.Time) {
			s.Logger.Debug("http request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
				"duration", time.Since(begin),
			)
		}(time.Now())
		c.Next()
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := s.CORSOrigin
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.Authenticator.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			s.Error(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	cache := "disabled"
	if s.CachePing != nil {
		cache = "connected"
		if err := s.CachePing(c.Request.Context()); err != nil {
			cache = "disconnected"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": s.Now().UTC().Format(time.RFC3339Nano),
		"cache":     cache,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.Error(c, sitemapgen.Errorf(sitemapgen.EINVALID, "Invalid JSON body"))
		return
	}
	token, err := s.Authenticator.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// generateRequest leaves options nil when absent so that explicit zeros
// reach validation instead of being replaced by defaults.
type generateRequest struct {
	URL         string `json:"url"`
	MaxURLs     *int   `json:"maxUrls"`
	CrawlDepth  *int   `json:"crawlDepth"`
	Concurrency *int   `json:"concurrency"`
}

func (req *generateRequest) options(defaults sitemapgen.CrawlOptions) sitemapgen.CrawlOptions {
	opts := defaults
	if req.MaxURLs != nil {
		opts.MaxURLs = *req.MaxURLs
	}
	if req.CrawlDepth != nil {
		opts.CrawlDepth = *req.CrawlDepth
	}
	if req.Concurrency != nil {
		opts.Concurrency = *req.Concurrency
	}
	return opts
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.Error(c, sitemapgen.Errorf(sitemapgen.EINVALID, "Invalid JSON body"))
		return
	}
	if req.URL == "" {
		s.Error(c, sitemapgen.Errorf(sitemapgen.EINVALID, "URL is required"))
		return
	}

	job, err := s.JobRunner.StartJob(c.Request.Context(), req.URL, req.options(s.Defaults))
	if err != nil {
		s.Error(c, err)
		return
	}

	if job.Cached {
		c.JSON(http.StatusOK, gin.H{
			"cached":       true,
			"jobId":        job.ID,
			"status":       job.Status,
			"urlCount":     job.URLCount,
			"sitemapCount": job.Result.Len(),
			"hasIndex":     job.Result.HasIndex(),
			"completedAt":  job.CompletedAt,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobId":   job.ID,
		"status":  "started",
		"message": "Crawling started. Connect via WebSocket for real-time updates.",
	})
}

type statusResponse struct {
	JobID        string                  `json:"jobId"`
	Status       sitemapgen.JobStatus    `json:"status"`
	URL          string                  `json:"url"`
	Options      sitemapgen.CrawlOptions `json:"options"`
	Cached       bool                    `json:"cached,omitempty"`
	StartedAt    time.Time               `json:"startedAt"`
	CompletedAt  *time.Time              `json:"completedAt,omitempty"`
	URLCount     *int                    `json:"urlCount,omitempty"`
	SitemapCount *int                    `json:"sitemapCount,omitempty"`
	HasIndex     *bool                   `json:"hasIndex,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	job, err := s.JobService.FindJobByID(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		s.Error(c, err)
		return
	}

	resp := statusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		URL:         job.URL,
		Options:     job.Options,
		Cached:      job.Cached,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	switch job.Status {
	case sitemapgen.JobCompleted:
		urlCount, sitemapCount, hasIndex := job.URLCount, job.Result.Len(), job.Result.HasIndex()
		resp.URLCount, resp.SitemapCount, resp.HasIndex = &urlCount, &sitemapCount, &hasIndex
	case sitemapgen.JobFailed:
		resp.Error = job.Error
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProgress(c *gin.Context) {
	var filter sitemapgen.ProgressFilter
	var err error
	if v := c.Query("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			s.Error(c, sitemapgen.Errorf(sitemapgen.EINVALID, "Invalid offset"))
			return
		}
	}
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			s.Error(c, sitemapgen.Errorf(sitemapgen.EINVALID, "Invalid limit"))
			return
		}
	}

	jobID := c.Param("jobId")
	events, err := s.JobService.FindProgress(c.Request.Context(), jobID, filter)
	if err != nil {
		s.Error(c, err)
		return
	}
	if events == nil {
		events = []*sitemapgen.ProgressEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"jobId": jobID, "events": events})
}

// completedJob loads a job and requires it to have finished successfully.
func (s *Server) completedJob(c *gin.Context) (*sitemapgen.Job, error) {
	job, err := s.JobService.FindJobByID(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		return nil, err
	}
	if job.Status != sitemapgen.JobCompleted || job.Result == nil {
		return nil, sitemapgen.Errorf(sitemapgen.ECONFLICT, "Job not completed yet")
	}
	return job, nil
}

func (s *Server) handleDownload(c *gin.Context) {
	job, err := s.completedJob(c)
	if err != nil {
		s.Error(c, err)
		return
	}
	doc, err := job.Result.Find(c.Query("file"))
	if err != nil {
		s.Error(c, sitemapgen.Errorf(sitemapgen.ENOTFOUND, "Sitemap file not found"))
		return
	}

	etag := ETag(doc.Content)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	c.Data(http.StatusOK, "application/xml", []byte(doc.Content))
}

// ETag returns a strong entity tag for content.
func ETag(content string) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64String(content))
}

type sitemapFile struct {
	Name    string `json:"name"`
	Size    int    `json:"size"`
	IsIndex bool   `json:"isIndex,omitempty"`
}

func (s *Server) handleSitemaps(c *gin.Context) {
	job, err := s.completedJob(c)
	if err != nil {
		s.Error(c, err)
		return
	}

	files := make([]sitemapFile, 0, job.Result.Len()+1)
	for _, doc := range job.Result.Files() {
		files = append(files, sitemapFile{Name: doc.Name, Size: len(doc.Content), IsIndex: doc.IsIndex})
	}
	c.JSON(http.StatusOK, gin.H{"jobId": job.ID, "files": files})
}
