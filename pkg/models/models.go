package models

// GeoPoint represents a geographic location in degrees
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// PointOfInterest represents a named, located entity such as a store or a restaurant.
// Rating is optional; nil means the record carried no rating.
type PointOfInterest struct {
	Name     string   `json:"name"`
	Location GeoPoint `json:"location"`
	Rating   *float64 `json:"rating,omitempty"`
	Category string   `json:"category,omitempty"`
}

// HasRating reports whether the point of interest carries a rating
func (p PointOfInterest) HasRating() bool {
	return p.Rating != nil
}

// RankedResult pairs a point of interest with its distance from a query origin
type RankedResult struct {
	POI        PointOfInterest `json:"poi"`
	DistanceKm float64         `json:"distance_km"`
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft GeoPoint `json:"bottom_left"`
	TopRight   GeoPoint `json:"top_right"`
}

// Contains reports whether p lies inside the box, edges included
func (b BoundingBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.BottomLeft.Lat && p.Lat <= b.TopRight.Lat &&
		p.Lon >= b.BottomLeft.Lon && p.Lon <= b.TopRight.Lon
}

// Rating is a helper for building optional ratings inline
func Rating(v float64) *float64 {
	return &v
}
