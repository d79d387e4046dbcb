package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type point struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon,omitempty" validate:"required,longitude"`
}

type query struct {
	Origin *point `json:"origin" validate:"required"`
	Limit  int    `json:"limit" validate:"omitempty,min=1"`
}

func ptr(f float64) *float64 { return &f }

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{
			name:     "valid",
			input:    &query{Origin: &point{Lat: ptr(0), Lon: ptr(0)}},
			expected: "",
		},
		{
			name:     "missing nested struct",
			input:    &query{},
			expected: `origin failed "required"`,
		},
		{
			name:     "nested fields sorted by path",
			input:    &query{Origin: &point{Lat: ptr(91)}, Limit: -1},
			expected: `limit failed "min"; origin.lat failed "latitude"; origin.lon failed "required"`,
		},
		{
			name:     "top level fields use json names",
			input:    &point{Lat: ptr(10), Lon: ptr(200)},
			expected: `lon failed "longitude"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.expected == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.expected, Describe(err))
		})
	}
}

func TestDescribeOtherError(t *testing.T) {
	assert.Equal(t, "boom", Describe(errors.New("boom")))
}
