// Package api serves the worker's operational endpoints: health checks and
// Prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
)

// Pinger is a dependency the health check probes
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config for the ops server
type Config struct {
	Addr         string
	Gatherer     prometheus.Gatherer // default: prometheus.DefaultGatherer
	Sentry       bool                // capture handler panics
	CheckTimeout time.Duration       // default: 2s
}

// Server exposes /health and /metrics
type Server struct {
	echo   *echo.Echo
	addr   string
	checks map[string]Pinger
	tmo    time.Duration
	log    logger.Logger
}

// NewServer builds the ops server. checks are reported by name on /health.
func NewServer(cfg Config, checks map[string]Pinger, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	if cfg.Sentry {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}

	s := &Server{echo: e, addr: cfg.Addr, checks: checks, tmo: cfg.CheckTimeout, log: log}
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.tmo)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "healthy", http.StatusOK
	resp := map[string]any{}
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.log.Warn("health check failed", "check", name, "error", err)
			resp[name] = "down"
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		resp[name] = "up"
	}
	resp["status"] = status
	return c.JSON(code, resp)
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info("ops server listening", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
