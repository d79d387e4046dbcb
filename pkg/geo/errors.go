package geo

import "errors"

var (
	// ErrEmptyInput is returned when a query needs at least one candidate and got none
	ErrEmptyInput = errors.New("empty candidate set")

	// ErrInvalidArgument is returned for a negative radius, a non-positive
	// result count or an unknown sort key
	ErrInvalidArgument = errors.New("invalid argument")
)
