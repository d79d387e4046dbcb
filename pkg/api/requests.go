package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kass/go-geo-rank/pkg/models"
	"github.com/kass/go-geo-rank/pkg/validation"
)

// pointRequest uses pointers so that a zero coordinate still passes required
type pointRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

func (p *pointRequest) GeoPoint() models.GeoPoint {
	return models.GeoPoint{Lat: *p.Lat, Lon: *p.Lon}
}

type distanceRequest struct {
	A *pointRequest `json:"a" validate:"required"`
	B *pointRequest `json:"b" validate:"required"`
}

type nearestRequest struct {
	Origin *pointRequest `json:"origin" validate:"required"`
	Limit  int           `json:"limit" validate:"omitempty,min=1,max=1000"`
}

type withinRequest struct {
	Origin   *pointRequest `json:"origin" validate:"required"`
	RadiusKm *float64      `json:"radius_km" validate:"required"`
	Category string        `json:"category"`
}

type distanceResponse struct {
	DistanceKm float64 `json:"distance_km"`
}

// parseRequest decodes the JSON body into req and validates it
func parseRequest(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return newAppError(CodeInvalidRequest, "invalid request body", fiber.StatusBadRequest)
	}
	if err := validation.Struct(req); err != nil {
		return newAppError(CodeInvalidRequest, validation.Describe(err), fiber.StatusBadRequest)
	}
	return nil
}
