// Package api exposes comparison jobs over HTTP.
//
// Routes:
//
//	GET  /health                  liveness
//	GET  /version                 build version
//	POST /api/compare/start       start a comparison job, returns the queued job
//	GET  /api/jobs/:id            job status, progress and result
//	GET  /api/jobs/:id/stream     websocket feed of job snapshots until terminal
//	GET  /api/results/:run_id     persisted comparison; the id is result.run_id of a completed job
//	GET  /metrics                 Prometheus metrics
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"portfolio-lab/internal/domain"
	"portfolio-lab/internal/observability"
	"portfolio-lab/internal/storage"
)

// DefaultPollInterval is how often the stream checks a job for changes.
const DefaultPollInterval = 500 * time.Millisecond

// maxBodyBytes bounds a compare request body.
const maxBodyBytes = 1 << 20

// Jobs starts and inspects comparison jobs.
type Jobs interface {
	Start(ctx context.Context, req domain.CompareRequest) (*domain.Job, error)
	Job(ctx context.Context, id string) (*domain.Job, error)
	Result(ctx context.Context, runID string) (*storage.StoredResult, error)
}

// Options for creating a Server.
type Options struct {
	Jobs         Jobs
	Version      string
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Server routes HTTP requests to the job service.
type Server struct {
	jobs    Jobs
	version string
	poll    time.Duration
	log     zerolog.Logger
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	s := &Server{
		jobs:    opts.Jobs,
		version: opts.Version,
		poll:    opts.PollInterval,
		log:     observability.Component(opts.Logger, "api"),
	}
	if s.poll <= 0 {
		s.poll = DefaultPollInterval
	}
	if s.version == "" {
		s.version = "dev"
	}
	return s
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	r.GET("/health", s.handleHealth)
	r.GET("/version", s.handleVersion)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	api := r.Group("/api")
	api.POST("/compare/start", s.handleStart)
	api.GET("/jobs/:id", s.handleJob)
	api.GET("/jobs/:id/stream", s.handleStream)
	api.GET("/results/:run_id", s.handleResult)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		observability.RecordHTTPRequest(route, strconv.Itoa(code))
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", code).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleVersion(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"version": s.version})
}

// handleStart decodes the body onto the default request so omitted fields
// keep their defaults.
func (s *Server) handleStart(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		writeError(c, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	req := domain.DefaultCompareRequest()
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	job, err := s.jobs.Start(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInput) {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("start job failed")
		writeError(c, http.StatusInternalServerError, "could not start job")
		return
	}
	writeJSON(c, http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func (s *Server) handleJob(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, job)
}

func (s *Server) handleResult(c *gin.Context) {
	res, err := s.jobs.Result(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(c, http.StatusNotFound, "result not found")
			return
		}
		s.log.Error().Err(err).Msg("load result failed")
		writeError(c, http.StatusInternalServerError, "could not load result")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"run_id":     res.RunID,
		"request":    res.Request,
		"result":     res.Response,
		"created_at": res.CreatedAt,
	})
}

// lookupJob writes the error response itself when it returns false.
func (s *Server) lookupJob(c *gin.Context) (*domain.Job, bool) {
	job, err := s.jobs.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(c, http.StatusNotFound, "job not found")
			return nil, false
		}
		s.log.Error().Err(err).Msg("load job failed")
		writeError(c, http.StatusInternalServerError, "could not load job")
		return nil, false
	}
	return job, true
}

func writeJSON(c *gin.Context, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.Data(http.StatusInternalServerError, "application/json; charset=utf-8", []byte(`{"error":"encode response"}`))
		return
	}
	c.Data(code, "application/json; charset=utf-8", b)
}

func writeError(c *gin.Context, code int, msg string) {
	writeJSON(c, code, gin.H{"error": msg})
}
