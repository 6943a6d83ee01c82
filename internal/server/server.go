// Package server exposes the pipeline over HTTP: a health probe and a CSV upload
// endpoint that runs one enrichment pass per request.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shpitdev/company-enricher/internal/pipeline"
)

const GracefulShutdownTimeout = 10 * time.Second

// Runner runs one enrichment pass over a local file.
type Runner interface {
	Run(ctx context.Context, inputPath string) (pipeline.Result, error)
}

type Config struct {
	// UploadDir receives one subdirectory per upload.
	UploadDir string
	Logger    *slog.Logger
}

type Server struct {
	Echo *echo.Echo

	runner    Runner
	uploadDir string
	logger    *slog.Logger
}

func New(runner Runner, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	uploadDir := cfg.UploadDir
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	s := &Server{
		Echo:      e,
		runner:    runner,
		uploadDir: uploadDir,
		logger:    logger,
	}
	s.setupMiddlewares()
	s.routes()
	return s
}

func (s *Server) setupMiddlewares() {
	s.Echo.Use(requestLogger(s.logger))
	s.Echo.Use(middleware.Recover())
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.health)
	s.Echo.POST("/upload", s.upload)
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogLatency:  true,
		LogURI:      true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request",
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Duration("latency", v.Latency),
				)
				return nil
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelError, "request error",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("err", v.Error.Error()),
			)
			return nil
		},
	})
}

// errorHandler renders every error as {"detail": message}.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		detail := "Internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(he.Code)
			}
		} else {
			logger.Error("unhandled error", "error", err)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"detail": detail})
	}
}
