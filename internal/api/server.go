package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ariel-frischer/appgen/internal/version"
	"github.com/gin-gonic/gin"
)

// DefaultShutdownTimeout bounds graceful HTTP shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Service, logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "appgen",
			"version": version.Version,
		})
	})

	h := NewWorkflowHandler(svc)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/workflows", h.CreateWorkflow)
		v1.GET("/workflows", h.ListWorkflows)
		v1.GET("/workflows/:id", h.GetWorkflow)
		v1.GET("/workflows/:id/events", h.StreamEvents)
		v1.GET("/stages", h.ListStages)
	}
	return router
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Printf("[api] %s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

// Server is an HTTP server with graceful shutdown.
type Server struct {
	srv    *http.Server
	logger *log.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, handler http.Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		srv:    &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		logger: logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[api] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Printf("[api] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
