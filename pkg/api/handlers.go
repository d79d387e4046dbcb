package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/geo"
)

// Health reports liveness and the number of indexed records
func (s *Server) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"pois":   s.index.Count(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// Distance returns the great-circle distance between two points
func (s *Server) Distance(c *fiber.Ctx) error {
	var req distanceRequest
	if err := parseRequest(c, &req); err != nil {
		return sendError(c, err)
	}

	d := geo.Distance(req.A.GeoPoint(), req.B.GeoPoint())
	return sendSuccess(c, distanceResponse{DistanceKm: d}, nil)
}

// Nearest returns the closest points of interest to an origin, nearest
// first. Limit defaults to one.
func (s *Server) Nearest(c *fiber.Ctx) error {
	var req nearestRequest
	if err := parseRequest(c, &req); err != nil {
		return sendError(c, err)
	}

	limit := req.Limit
	if limit == 0 {
		limit = 1
	}

	start := time.Now()
	results, err := s.index.NearestN(req.Origin.GeoPoint(), limit)
	if err != nil {
		return s.fail(c, "nearest", err)
	}

	return sendSuccess(c, results, &Meta{
		Total:    len(results),
		TimeMSec: elapsedMS(start),
	})
}

// Within returns the points of interest inside a radius, best rated first.
// An optional category narrows the results without changing their order.
func (s *Server) Within(c *fiber.Ctx) error {
	var req withinRequest
	if err := parseRequest(c, &req); err != nil {
		return sendError(c, err)
	}

	start := time.Now()
	results, err := s.index.Within(req.Origin.GeoPoint(), *req.RadiusKm)
	if err != nil {
		return s.fail(c, "within", err)
	}

	if req.Category != "" {
		results = geo.FilterCategory(results, req.Category)
	}

	return sendSuccess(c, results, &Meta{
		Total:    len(results),
		TimeMSec: elapsedMS(start),
	})
}

func (s *Server) fail(c *fiber.Ctx, op string, err error) error {
	appErr := toAppError(err)
	if appErr.StatusCode >= fiber.StatusInternalServerError {
		s.logger.Error("query failed", zap.String("op", op), zap.Error(err))
	}
	return sendError(c, appErr)
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
