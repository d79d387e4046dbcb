// Package directory loads points of interest from JSON or YAML files.
//
// Records are validated here, at the boundary where uncontrolled data enters
// the program; the ranking code downstream accepts whatever it is given.
package directory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kass/go-geo-rank/pkg/models"
	"github.com/kass/go-geo-rank/pkg/validation"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML
var ErrUnsupportedFormat = errors.New("unsupported directory format")

// Record is the on-disk form of a point of interest
type Record struct {
	Name     string   `json:"name" yaml:"name" validate:"required"`
	Lat      *float64 `json:"lat" yaml:"lat" validate:"required,latitude"`
	Lon      *float64 `json:"lon" yaml:"lon" validate:"required,longitude"`
	Rating   *float64 `json:"rating,omitempty" yaml:"rating,omitempty" validate:"omitempty,gte=0"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// POI converts the record into the ranking model
func (r Record) POI() models.PointOfInterest {
	poi := models.PointOfInterest{
		Name:     strings.TrimSpace(r.Name),
		Rating:   r.Rating,
		Category: r.Category,
	}
	if r.Lat != nil {
		poi.Location.Lat = *r.Lat
	}
	if r.Lon != nil {
		poi.Location.Lon = *r.Lon
	}
	return poi
}

// FromPOI converts a point of interest into its on-disk form
func FromPOI(p models.PointOfInterest) Record {
	lat, lon := p.Location.Lat, p.Location.Lon
	return Record{Name: p.Name, Lat: &lat, Lon: &lon, Rating: p.Rating, Category: p.Category}
}

// ValidationError lists every record that failed validation, keyed by its
// position in the file
type ValidationError struct {
	Problems map[int]string
}

func (e *ValidationError) Error() string {
	idx := make([]int, 0, len(e.Problems))
	for i := range e.Problems {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("record %d: %s", i, e.Problems[i]))
	}
	return fmt.Sprintf("%d invalid records: %s", len(idx), strings.Join(parts, "; "))
}

// Load reads a directory file, choosing the decoder from the extension
func Load(path string) ([]models.PointOfInterest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return Decode(data, FormatJSON)
	case ".yaml", ".yml":
		return Decode(data, FormatYAML)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Format identifies a directory encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Decode parses and validates directory records. Input order is preserved.
func Decode(data []byte, format Format) ([]models.PointOfInterest, error) {
	var records []Record

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// an empty document decodes to no records
		if err := dec.Decode(&records); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	problems := make(map[int]string)
	pois := make([]models.PointOfInterest, 0, len(records))
	for i, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		if err := validation.Struct(rec); err != nil {
			problems[i] = validation.Describe(err)
			continue
		}
		pois = append(pois, rec.POI())
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return pois, nil
}

// Save writes points of interest to path in the format implied by its extension
func Save(path string, pois []models.PointOfInterest) error {
	records := make([]Record, len(pois))
	for i, p := range pois {
		records[i] = FromPOI(p)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(records, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(records)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return fmt.Errorf("failed to encode directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write directory: %w", err)
	}
	return nil
}
