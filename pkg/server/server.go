package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"aliscan/pkg/handlers"
	"aliscan/pkg/logger"
	"aliscan/pkg/metrics"
	"aliscan/pkg/middleware"
)

// Server constants
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 120 * time.Second // a cold fetch may launch Chrome
	DefaultIdleTimeout  = 120 * time.Second
)

// Config holds HTTP server configuration
type Config struct {
	Address string
	Port    int
	// Release switches gin out of debug mode.
	Release bool
}

// HTTPServer represents the HTTP server component
type HTTPServer struct {
	server     *http.Server
	router     *gin.Engine
	config     *Config
	handlerSvc *handlers.HandlerService
	metrics    *metrics.Metrics
}

// NewHTTPServer creates a new HTTP server instance. m may be nil, in which
// case /metrics is not served.
func NewHTTPServer(config *Config, handlerSvc *handlers.HandlerService, m *metrics.Metrics) *HTTPServer {
	logger.Info("Initializing HTTP server",
		zap.String("address", config.Address),
		zap.Int("port", config.Port))

	if config.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &HTTPServer{
		router:     gin.New(),
		config:     config,
		handlerSvc: handlerSvc,
		metrics:    m,
	}
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Address, config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}

	logger.Info("HTTP server initialized", zap.String("listen_addr", addr))
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) setupRoutes() {
	s.router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.ErrorHandler(),
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:    []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:   []string{"X-Request-ID"},
			MaxAge:          12 * time.Hour,
		}),
	)

	s.router.GET("/health", s.handlerSvc.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api/v1")
	s.setupProductRoutes(api)
	s.setupSessionRoutes(api)
	api.GET("/config", s.handlerSvc.GetAppConfig)

	logger.Info("HTTP routes configured")
}

func (s *HTTPServer) setupProductRoutes(api *gin.RouterGroup) {
	api.GET("/products/:id", s.handlerSvc.GetProduct)
}

func (s *HTTPServer) setupSessionRoutes(api *gin.RouterGroup) {
	api.GET("/cookies", s.handlerSvc.GetCookies)
	api.GET("/session", s.handlerSvc.GetSession)
	api.POST("/session/restart", s.handlerSvc.RestartSession)
	api.POST("/session/cookies/save", s.handlerSvc.SaveCookies)
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}
