package api

import (
	"github.com/gofiber/fiber/v2"
)

type SuccessResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

type Meta struct {
	Total    int     `json:"total"`
	TimeMSec float64 `json:"time_ms,omitempty"`
}

func sendSuccess(c *fiber.Ctx, data interface{}, meta *Meta) error {
	return c.JSON(SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

func sendError(c *fiber.Ctx, err error) error {
	appErr := toAppError(err)
	return c.Status(appErr.StatusCode).JSON(ErrorResponse{
		Error: appErr,
	})
}
