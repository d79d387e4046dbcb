// Package geo ranks points of interest around an origin by great-circle
// distance and by rating.
//
// Every function in this package is a pure function of its arguments: nothing
// is cached, nothing is retained between calls, and the candidate slices are
// never modified. They are safe to call from any number of goroutines.
package geo

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kass/go-geo-rank/pkg/models"
)

// EarthRadiusKm is the mean Earth radius used by Distance
const EarthRadiusKm = 6371.0

// SortKey selects the ordering used by Rank
type SortKey int

const (
	// ByDistance orders results nearest first
	ByDistance SortKey = iota
	// ByRating orders results highest rated first, unrated last
	ByRating
)

func (k SortKey) String() string {
	switch k {
	case ByDistance:
		return "distance"
	case ByRating:
		return "rating"
	default:
		return fmt.Sprintf("SortKey(%d)", int(k))
	}
}

// ParseSortKey converts "distance" or "rating" into a SortKey
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "distance", "":
		return ByDistance, nil
	case "rating":
		return ByRating, nil
	default:
		return 0, fmt.Errorf("%w: unknown sort key %q", ErrInvalidArgument, s)
	}
}

// Distance calculates the Haversine distance between two points in kilometers.
// Coordinates are not validated; out-of-range input yields a defined but
// meaningless distance rather than an error.
func Distance(a, b models.GeoPoint) float64 {
	dLat := Radians(b.Lat - a.Lat)
	dLon := Radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(Radians(a.Lat))*math.Cos(Radians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// rounding can push h a hair outside [0, 1] for antipodal points
	h = math.Max(0, math.Min(1, h))

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Nearest returns the candidate closest to origin. When several candidates
// share the minimal distance the one listed first wins.
func Nearest(origin models.GeoPoint, candidates []models.PointOfInterest) (models.RankedResult, error) {
	if len(candidates) == 0 {
		return models.RankedResult{}, fmt.Errorf("%w: nearest needs at least one candidate", ErrEmptyInput)
	}

	best := models.RankedResult{POI: candidates[0], DistanceKm: Distance(origin, candidates[0].Location)}
	for _, c := range candidates[1:] {
		d := Distance(origin, c.Location)
		if distanceLess(d, best.DistanceKm) {
			best = models.RankedResult{POI: c, DistanceKm: d}
		}
	}
	return best, nil
}

// NearestN returns up to n candidates ordered nearest first, ties in input order
func NearestN(origin models.GeoPoint, candidates []models.PointOfInterest, n int) ([]models.RankedResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidArgument, n)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: nearest needs at least one candidate", ErrEmptyInput)
	}

	ranked := Rank(origin, candidates, ByDistance)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// Within returns the candidates whose distance from origin is at most
// radiusKm, ordered by rating descending. Unrated candidates sort last and
// equal ratings keep their input order.
func Within(origin models.GeoPoint, candidates []models.PointOfInterest, radiusKm float64) ([]models.RankedResult, error) {
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("%w: radius must be non-negative, got %v", ErrInvalidArgument, radiusKm)
	}

	results := make([]models.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		d := Distance(origin, c.Location)
		if d <= radiusKm {
			results = append(results, models.RankedResult{POI: c, DistanceKm: d})
		}
	}

	sortResults(results, ByRating)
	return results, nil
}

// Rank computes the distance from origin to every candidate and orders the
// results by the given key. The sort is stable, so ties keep input order.
func Rank(origin models.GeoPoint, candidates []models.PointOfInterest, by SortKey) []models.RankedResult {
	results := make([]models.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = models.RankedResult{POI: c, DistanceKm: Distance(origin, c.Location)}
	}

	sortResults(results, by)
	return results
}

func sortResults(results []models.RankedResult, by SortKey) {
	switch by {
	case ByRating:
		sort.SliceStable(results, func(i, j int) bool {
			return ratingValue(results[i].POI) > ratingValue(results[j].POI)
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			return distanceLess(results[i].DistanceKm, results[j].DistanceKm)
		})
	}
}

// ratingValue maps a missing (or NaN) rating to the lowest possible value
func ratingValue(p models.PointOfInterest) float64 {
	if p.Rating == nil || math.IsNaN(*p.Rating) {
		return math.Inf(-1)
	}
	return *p.Rating
}

// distanceLess orders NaN distances after every real distance
func distanceLess(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

// Radians converts degrees to radians
func Radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Degrees converts radians to degrees
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// FilterCategory returns the results whose point of interest has the given
// category, keeping their order
func FilterCategory(results []models.RankedResult, category string) []models.RankedResult {
	filtered := make([]models.RankedResult, 0, len(results))
	for _, r := range results {
		if r.POI.Category == category {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
