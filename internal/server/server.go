// Package server is the HTTP front end: it stages uploads per browser session and hands them
// to the compression workflow.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pdfebc/pdfebc-web/internal/queue"
	"github.com/pdfebc/pdfebc-web/internal/runner"
	"github.com/pdfebc/pdfebc-web/internal/staging"
	"go.uber.org/zap"
)

const (
	DefaultBodyLimit       = "256M"
	DefaultShutdownTimeout = 30 * time.Second
)

type HealthFunc func(ctx context.Context) error

type Server struct {
	logger     *zap.Logger
	echo       *echo.Echo
	store      *staging.Store
	workflow   *runner.Workflow
	dispatcher *queue.Dispatcher
	health     HealthFunc

	bodyLimit       string
	shutdownTimeout time.Duration
}

type Option func(*Server)

// WithDispatcher enables POST /compress/email.
func WithDispatcher(dispatcher *queue.Dispatcher) Option {
	return func(s *Server) {
		s.dispatcher = dispatcher
	}
}

func WithHealthCheck(health HealthFunc) Option {
	return func(s *Server) {
		s.health = health
	}
}

// WithBodyLimit caps request bodies, e.g. "64M".
func WithBodyLimit(limit string) Option {
	return func(s *Server) {
		s.bodyLimit = limit
	}
}

func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

func New(logger *zap.Logger, store *staging.Store, workflow *runner.Workflow, opts ...Option) (*Server, error) {
	s := &Server{
		logger:          logger,
		store:           store,
		workflow:        workflow,
		bodyLimit:       DefaultBodyLimit,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	renderer, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				s.logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.logger.Debug("request", fields...)
			return nil
		},
	}))

	e.GET("/healthz", s.healthz)

	g := e.Group("", middleware.BodyLimit(s.bodyLimit), sessionMiddleware)
	g.GET("/", s.index)
	g.POST("/upload", s.upload)
	g.POST("/compress", s.compress)
	g.POST("/compress/email", s.compressEmail)
	g.POST("/clear", s.clear)
	g.GET("/about", s.about)

	s.echo = e
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve listens on addr until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		s.logger.Warn("error after response was committed", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		return
	}
	s.echo.DefaultHTTPErrorHandler(err, c)
}
