// Package server exposes the job adapter over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/runpod/concurrency/worker"
	"github.com/ncobase/runpod/config"
	"github.com/ncobase/runpod/ctxutil"
	"github.com/ncobase/runpod/ecode"
	"github.com/ncobase/runpod/logging/logger"
	"github.com/ncobase/runpod/metrics"
	"github.com/ncobase/runpod/net/resp"
	"github.com/ncobase/runpod/runpod/catalog"
	"github.com/ncobase/runpod/runpod/executor"
	"github.com/ncobase/runpod/version"
)

// maxItems bounds one execution request.
const maxItems = 256

// Server serves executions and model listings.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	coord   *executor.Coordinator
	pool    *worker.Pool
	metrics   *metrics.Collector
	transport MetricsSource
	engine    *gin.Engine
}

// MetricsSource reports counters of an outbound component.
type MetricsSource interface {
	Metrics() map[string]int64
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes the collector at GET /v1/metrics.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTransport adds the outbound requester's counters to GET /v1/metrics.
func WithTransport(t MetricsSource) Option {
	return func(s *Server) { s.transport = t }
}

// ExecutionRequest is the body of POST /v1/executions.
type ExecutionRequest struct {
	Items    []map[string]any `json:"items"`
	FailFast bool             `json:"failFast"`
}

// ExecutionResponse lists one result per processed item.
type ExecutionResponse struct {
	Results []executor.Result `json:"results"`
}

// ModelOption is a listed model with its display label.
type ModelOption struct {
	catalog.Entry
	Option string `json:"option"`
}

// NewServer wires the coordinator and the invocation pool.
func NewServer(cfg *config.Config, coord *executor.Coordinator, pool *worker.Pool, log *logger.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if coord == nil {
		return nil, fmt.Errorf("coordinator is nil")
	}
	if pool == nil {
		return nil, fmt.Errorf("worker pool is nil")
	}
	if log == nil {
		log = logger.StdLogger()
	}
	s := &Server{config: cfg, logger: log, coord: coord, pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetupRouter builds the gin engine.
func (s *Server) SetupRouter() *gin.Engine {
	switch s.config.RunMode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(s.config.RunMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.traceMiddleware())
	r.Use(s.loggerMiddleware())

	r.GET("/healthz", s.handleHealth)

	v1 := r.Group("/v1")
	v1.POST("/executions", s.handleExecute)
	v1.GET("/models", s.handleModels)
	v1.DELETE("/models/cache", s.handleInvalidate)
	if s.metrics != nil {
		v1.GET("/metrics", s.handleMetrics)
	}

	r.NoRoute(func(c *gin.Context) {
		resp.Fail(c.Writer, resp.NotFound("route not found"))
	})

	s.engine = r
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	resp.Success(c.Writer, map[string]any{
		"status":  "healthy",
		"version": version.GetVersionInfo(),
		"busy":    s.pool.IsBusy(),
		"pool":    s.pool.GetMetrics(),
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	m := s.metrics.GetMetrics()
	m["pool"] = s.pool.GetMetrics()
	if s.transport != nil {
		if tm := s.transport.Metrics(); tm != nil {
			m["transport"] = tm
		}
	}
	resp.Success(c.Writer, m)
}

func (s *Server) handleExecute(c *gin.Context) {
	var body ExecutionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.Fail(c.Writer, resp.BadRequest("invalid request body", err.Error()))
		return
	}
	if len(body.Items) == 0 {
		resp.Fail(c.Writer, resp.BadRequest(ecode.FieldIsRequired("items")))
		return
	}
	if len(body.Items) > maxItems {
		resp.Fail(c.Writer, resp.BadRequest(fmt.Sprintf("at most %d items per request", maxItems)))
		return
	}

	opts := executor.RunOptions{FailFast: body.FailFast}
	if header := c.GetHeader("Authorization"); header != "" {
		key := bearerToken(header)
		if key == "" {
			resp.Fail(c.Writer, resp.UnAuthorized(ecode.FieldIsInvalid("Authorization"), "expected a bearer token"))
			return
		}
		opts.Credentials = executor.StaticKey(key)
	}

	var results []executor.Result
	err := s.pool.Do(c.Request.Context(), func(ctx context.Context) error {
		results = s.coord.Run(ctx, executor.MapParams(body.Items), opts)
		return nil
	})
	switch {
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrPoolClosed):
		resp.Fail(c.Writer, resp.ServiceUnavailable("too many concurrent executions"))
		return
	case errors.Is(err, context.DeadlineExceeded):
		resp.Fail(c.Writer, resp.Timeout("execution timed out"))
		return
	case err != nil:
		resp.Fail(c.Writer, resp.FromError(err))
		return
	}

	resp.Success(c.Writer, ExecutionResponse{Results: results})
}

func (s *Server) handleModels(c *gin.Context) {
	op := catalog.Operation(c.DefaultQuery("operation", string(catalog.OpStatus)))
	if !op.Valid() {
		resp.Fail(c.Writer, resp.BadRequest(fmt.Sprintf("unknown operation %q", op)))
		return
	}

	entries := s.coord.ListModels(c.Request.Context(), op)
	out := make([]ModelOption, 0, len(entries))
	for _, e := range entries {
		out = append(out, ModelOption{Entry: e, Option: e.Option()})
	}
	resp.Success(c.Writer, map[string]any{"operation": op, "models": out})
}

func (s *Server) handleInvalidate(c *gin.Context) {
	if err := s.coord.InvalidateModels(c.Request.Context()); err != nil {
		s.logger.Error(c.Request.Context(), "failed to invalidate model cache", "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to invalidate model cache"))
		return
	}
	resp.Success(c.Writer, "model cache invalidated")
}

func (s *Server) traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := strings.TrimSpace(c.GetHeader(ctxutil.TraceHeader)); id != "" {
			ctx = ctxutil.SetTraceID(ctx, id)
		}
		ctx, traceID := ctxutil.EnsureTraceID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(ctxutil.TraceHeader, traceID)
		c.Next()
	}
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info(c.Request.Context(), "HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Serve runs the HTTP server until ctx is done, then shuts it down.
func (s *Server) Serve(ctx context.Context) error {
	if s.engine == nil {
		s.SetupRouter()
	}
	sc := s.config.Server
	httpServer := &http.Server{
		Addr:              sc.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting server", "addr", sc.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.pool.Stop(shutdownCtx)
	return nil
}
