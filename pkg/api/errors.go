package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/kass/go-geo-rank/pkg/geo"
)

const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNoCandidates    = "NO_CANDIDATES"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// AppError is the error body returned to clients
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAppError(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

var errInternal = newAppError(CodeInternal, "internal server error", fiber.StatusInternalServerError)

// toAppError maps ranker errors onto HTTP statuses
func toAppError(err error) *AppError {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, geo.ErrEmptyInput):
		return newAppError(CodeNoCandidates, err.Error(), fiber.StatusNotFound)
	case errors.Is(err, geo.ErrInvalidArgument):
		return newAppError(CodeInvalidArgument, err.Error(), fiber.StatusBadRequest)
	default:
		return errInternal
	}
}
