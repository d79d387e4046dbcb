// Package api exposes the ranker over HTTP
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/config"
	"github.com/kass/go-geo-rank/pkg/models"
)

// Index is the candidate source queried by the handlers. *rtree.POIIndex
// satisfies it.
type Index interface {
	Within(origin models.GeoPoint, radiusKm float64) ([]models.RankedResult, error)
	NearestN(origin models.GeoPoint, n int) ([]models.RankedResult, error)
	Count() int64
}

// Server is the HTTP server in front of an Index
type Server struct {
	app     *fiber.App
	index   Index
	logger  *zap.Logger
	started time.Time
}

// NewServer creates a server with its middleware and routes registered
func NewServer(index Index, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "georank",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	s := &Server{
		app:     app,
		index:   index,
		logger:  logger,
		started: time.Now(),
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddlewares() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	s.app.Use(requestLogger(s.logger))
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.Health)

	v1 := s.app.Group("/v1")
	v1.Post("/distance", s.Distance)
	v1.Post("/nearest", s.Nearest)
	v1.Post("/within", s.Within)
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.logger.Info("starting HTTP server", zap.String("address", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		logger.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return err
	}
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		appCode := CodeInternal
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			if code == fiber.StatusNotFound {
				appCode = CodeNotFound
			}
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("HTTP error",
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(ErrorResponse{
			Error: newAppError(appCode, err.Error(), code),
		})
	}
}
