package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	handlers "github.com/2Raz/mnam-backend-sub001/internal/adapter/handler/http"
	"github.com/2Raz/mnam-backend-sub001/internal/config"
	"github.com/2Raz/mnam-backend-sub001/internal/middleware/auth"
	"github.com/2Raz/mnam-backend-sub001/pkg/logger"
)

// Handlers groups the route handlers mounted by the server.
type Handlers struct {
	Webhook    *handlers.WebhookHandler
	Connection *handlers.ConnectionHandler
	Outbox     *handlers.OutboxHandler
	Unmatched  *handlers.UnmatchedHandler
	Alert      *handlers.AlertHandler
	RateState  *handlers.RateStateHandler
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	handlers Handlers
	registry *prometheus.Registry
	healthy  func() bool
}

// NewServer builds the echo instance and mounts every route. healthy reports
// background worker liveness for /health; nil means always healthy.
func NewServer(cfg *config.Config, log *zap.Logger, h Handlers, registry *prometheus.Registry, healthy func() bool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()
	logger.WithEchoLogger(e, log)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(log))

	origins := cfg.Server.HTTP.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	if registry != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "channel_sync_http",
			Registerer: registry,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics" || c.Path() == "/health"
			},
		}))
	}

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		handlers: h,
		registry: registry,
		healthy:  healthy,
	}
	s.setupRoutes()
	return s
}

// Echo exposes the router, mainly for handler tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		if s.healthy != nil && !s.healthy() {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"service": s.config.Service.Name,
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	if s.registry != nil {
		s.echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
			Gatherer: s.registry,
		}))
	}

	// Webhooks authenticate by signature, not JWT.
	if s.handlers.Webhook != nil {
		limit := fmt.Sprintf("%dB", s.config.Webhook.MaxBodyBytes)
		webhooks := s.echo.Group("/webhooks/channex", middleware.BodyLimit(limit))
		webhooks.POST("/:connection_id", s.handlers.Webhook.HandleBooking)
		webhooks.POST("/:connection_id/health", s.handlers.Webhook.HandleHealth)
	}

	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		Roles:  s.config.JWT.Roles,
	}
	protected := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))

	if h := s.handlers.Connection; h != nil {
		protected.POST("/connections", h.CreateConnection)
		protected.GET("/connections/:id", h.GetConnection)
		protected.DELETE("/connections/:id", h.DeleteConnection)
		protected.POST("/connections/:id/mappings", h.CreateMapping)
		protected.POST("/connections/:id/sync", h.RequestFullSync)
		protected.DELETE("/mappings/:id", h.DeactivateMapping)
	}

	if h := s.handlers.Outbox; h != nil {
		protected.POST("/outbox", h.Enqueue)
		protected.GET("/outbox/failed", h.ListFailed)
		protected.POST("/outbox/:id/retry", h.Retry)
	}

	if h := s.handlers.Unmatched; h != nil {
		protected.GET("/unmatched", h.List)
		protected.POST("/unmatched/:id/resolve", h.Resolve)
		protected.POST("/unmatched/:id/discard", h.Discard)
	}

	if h := s.handlers.Alert; h != nil {
		protected.GET("/alerts", h.List)
		protected.POST("/alerts/:id/acknowledge", h.Acknowledge)
		protected.POST("/alerts/:id/resolve", h.Resolve)
	}

	if h := s.handlers.RateState; h != nil {
		protected.GET("/rate-states/:property_id", h.GetRateState)
	}
}
