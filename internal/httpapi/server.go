// Package httpapi exposes the shiftd HTTP API: engine status and
// reports, stop controls, health, and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shiftd/internal/engine"
)

// EngineService is the engine surface the API exposes.
type EngineService interface {
	Status() engine.Status
	Report(ctx context.Context) (*engine.IntelligenceReport, error)
	Stop()
	EmergencyStop()
}

// Server provides the HTTP endpoints for shiftd.
type Server struct {
	echo   *echo.Echo
	engine EngineService
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates the HTTP server.
func NewServer(eng EngineService, logger *zap.Logger, cfg *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8484,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:   e,
		engine: eng,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/report", s.handleReport)
	v1.POST("/stop", s.handleStop)
	v1.POST("/emergency-stop", s.handleEmergencyStop)
}

// HealthzResponse is the response body for GET /healthz.
type HealthzResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}

// StopResponse is the response body for the stop endpoints.
type StopResponse struct {
	State engine.State `json:"state"`
}

// handleHealthz reports process liveness plus the engine state so load
// balancers can tell a stopped engine from a dead process.
func (s *Server) handleHealthz(c echo.Context) error {
	st := s.engine.Status()
	return c.JSON(http.StatusOK, HealthzResponse{
		Status: "ok",
		Engine: string(st.State),
	})
}

// handleStatus returns the engine status projection.
func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Status())
}

// handleReport builds a full intelligence report. Returns 409 while
// the engine has not been initialized.
func (s *Server) handleReport(c echo.Context) error {
	report, err := s.engine.Report(c.Request().Context())
	if err != nil {
		if errors.Is(err, engine.ErrNotInitialized) {
			return echo.NewHTTPError(http.StatusConflict, "engine not initialized")
		}
		s.logger.Error("report generation failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "report generation failed")
	}
	return c.JSON(http.StatusOK, report)
}

// handleStop gracefully stops autonomous operation.
func (s *Server) handleStop(c echo.Context) error {
	s.engine.Stop()
	return c.JSON(http.StatusOK, StopResponse{State: s.engine.Status().State})
}

// handleEmergencyStop stops the engine and clears the prediction cache.
func (s *Server) handleEmergencyStop(c echo.Context) error {
	s.engine.EmergencyStop()
	return c.JSON(http.StatusOK, StopResponse{State: s.engine.Status().State})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
