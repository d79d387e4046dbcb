// Package rtree implements a thread-safe R-Tree index of points of interest.
// The tree is only a prefilter: every query gathers a superset of the
// candidates that can qualify and hands them, in insertion order, to package
// geo, so an index query returns exactly what the pure ranking functions
// would return for the full record set.
package rtree

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/geo"
	"github.com/kass/go-geo-rank/pkg/models"
)

const (
	tolerance   = 0.01 // degrees
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialPOI wraps a point of interest to implement rtreego.Spatial
type spatialPOI struct {
	poi  models.PointOfInterest
	seq  int64
	rect rtreego.Rect
}

func (sp *spatialPOI) Bounds() rtreego.Rect {
	return sp.rect
}

// POIIndex is a thread-safe R-Tree based index of points of interest
type POIIndex struct {
	tree *rtreego.Rtree
	// records whose coordinates fall outside the standard ranges; they are
	// scanned by every query instead of living in the tree
	outliers  []*spatialPOI
	nextSeq   int64
	mu        sync.RWMutex
	itemCount atomic.Int64
	logger    *zap.Logger
}

// Option configures a POIIndex
type Option func(*POIIndex)

// WithLogger sets the logger used for indexing events
func WithLogger(logger *zap.Logger) Option {
	return func(g *POIIndex) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewPOIIndex creates a new, empty index
func NewPOIIndex(opts ...Option) *POIIndex {
	g := &POIIndex{
		tree:   rtreego.NewTree(dimensions, minChildren, maxChildren),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IndexPOIs indexes a batch of points of interest. Spatial items are prepared
// in parallel; insertion into the tree is serialized and keeps batch order.
func (g *POIIndex) IndexPOIs(pois []models.PointOfInterest) error {
	if len(pois) == 0 {
		return nil
	}

	numCPU := runtime.NumCPU()
	items := make([]*spatialPOI, len(pois))
	var wg sync.WaitGroup

	batchSize := (len(pois) + numCPU - 1) / numCPU
	for start := 0; start < len(pois); start += batchSize {
		end := start + batchSize
		if end > len(pois) {
			end = len(pois)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				poi := pois[j]
				p := rtreego.Point{poi.Location.Lat, poi.Location.Lon}
				items[j] = &spatialPOI{poi: poi, seq: int64(j), rect: p.ToRect(tolerance)}
			}
		}(start, end)
	}

	wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	outliers := 0
	for _, item := range items {
		item.seq += g.nextSeq
		if inRange(item.poi.Location) {
			g.tree.Insert(item)
		} else {
			g.outliers = append(g.outliers, item)
			outliers++
		}
	}
	g.nextSeq += int64(len(items))
	g.itemCount.Add(int64(len(items)))

	if outliers > 0 {
		g.logger.Warn("indexed points of interest with out-of-range coordinates",
			zap.Int("count", outliers))
	}
	g.logger.Debug("indexed points of interest",
		zap.Int("batch", len(items)),
		zap.Int64("total", g.itemCount.Load()))

	return nil
}

// QueryBox returns all points of interest inside the box, in insertion order
func (g *POIIndex) QueryBox(box models.BoundingBox) ([]models.PointOfInterest, error) {
	if box.BottomLeft.Lat > box.TopRight.Lat || box.BottomLeft.Lon > box.TopRight.Lon {
		return nil, fmt.Errorf("invalid bounding box: %w", geo.ErrInvalidArgument)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	items := g.collect([]models.BoundingBox{box})
	points := make([]models.PointOfInterest, 0, len(items))
	for _, item := range items {
		if box.Contains(item.poi.Location) {
			points = append(points, item.poi)
		}
	}
	return points, nil
}

// Within returns the indexed points of interest within radiusKm of origin,
// ordered by rating descending, with the same semantics as geo.Within
func (g *POIIndex) Within(origin models.GeoPoint, radiusKm float64) ([]models.RankedResult, error) {
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("%w: radius must be non-negative, got %v", geo.ErrInvalidArgument, radiusKm)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	candidates := g.candidates(origin, radiusKm)
	return geo.Within(origin, candidates, radiusKm)
}

// Nearest returns the indexed point of interest closest to origin, with the
// same semantics as geo.Nearest
func (g *POIIndex) Nearest(origin models.GeoPoint) (models.RankedResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.itemCount.Load() == 0 {
		return models.RankedResult{}, fmt.Errorf("%w: index is empty", geo.ErrEmptyInput)
	}

	bound := math.Inf(1)
	if nn, ok := g.tree.NearestNeighbor(rtreego.Point{origin.Lat, origin.Lon}).(*spatialPOI); ok {
		bound = geo.Distance(origin, nn.poi.Location)
	}

	return geo.Nearest(origin, g.candidates(origin, bound))
}

// NearestN returns up to n indexed points of interest ordered nearest first,
// with the same semantics as geo.NearestN
func (g *POIIndex) NearestN(origin models.GeoPoint, n int) ([]models.RankedResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", geo.ErrInvalidArgument, n)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.itemCount.Load() == 0 {
		return nil, fmt.Errorf("%w: index is empty", geo.ErrEmptyInput)
	}

	// any n points bound the distance of the true n-th nearest
	bound := math.Inf(1)
	neighbors := g.tree.NearestNeighbors(n, rtreego.Point{origin.Lat, origin.Lon})
	if len(neighbors) == n {
		bound = 0
		for _, nb := range neighbors {
			if sp, ok := nb.(*spatialPOI); ok {
				bound = math.Max(bound, geo.Distance(origin, sp.poi.Location))
			}
		}
	}

	return geo.NearestN(origin, g.candidates(origin, bound), n)
}

// All returns every indexed point of interest in insertion order
func (g *POIIndex) All() []models.PointOfInterest {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.candidates(models.GeoPoint{}, math.Inf(1))
}

// Count returns the number of indexed points of interest
func (g *POIIndex) Count() int64 {
	return g.itemCount.Load()
}

// Clear removes all points of interest from the index
func (g *POIIndex) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	g.outliers = nil
	g.nextSeq = 0
	g.itemCount.Store(0)
}

// candidates returns, in insertion order, a superset of the records within
// radiusKm of origin. Callers must hold g.mu.
func (g *POIIndex) candidates(origin models.GeoPoint, radiusKm float64) []models.PointOfInterest {
	items := g.collect(searchBounds(origin, radiusKm))
	points := make([]models.PointOfInterest, len(items))
	for i, item := range items {
		points[i] = item.poi
	}
	return points
}

// collect gathers tree items intersecting any of the boxes plus all outliers,
// deduplicated and sorted by insertion sequence. Callers must hold g.mu.
func (g *POIIndex) collect(boxes []models.BoundingBox) []*spatialPOI {
	seen := make(map[*spatialPOI]struct{})
	items := make([]*spatialPOI, 0, len(g.outliers))

	for _, box := range boxes {
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{box.BottomLeft.Lat - tolerance, box.BottomLeft.Lon - tolerance},
			rtreego.Point{box.TopRight.Lat + tolerance, box.TopRight.Lon + tolerance},
		)
		if err != nil {
			continue
		}

		for _, result := range g.tree.SearchIntersect(rect) {
			item, ok := result.(*spatialPOI)
			if !ok {
				continue
			}
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			items = append(items, item)
		}
	}
	items = append(items, g.outliers...)

	sort.Slice(items, func(i, j int) bool {
		return items[i].seq < items[j].seq
	})
	return items
}

var world = models.BoundingBox{
	BottomLeft: models.GeoPoint{Lat: -90, Lon: -180},
	TopRight:   models.GeoPoint{Lat: 90, Lon: 180},
}

// searchBounds returns boxes covering every in-range point within radiusKm
// of origin on the sphere. A box crossing the antimeridian is split in two.
func searchBounds(origin models.GeoPoint, radiusKm float64) []models.BoundingBox {
	delta := radiusKm / geo.EarthRadiusKm // angular radius
	if !inRange(origin) || math.IsNaN(delta) || delta >= math.Pi/2 {
		return []models.BoundingBox{world}
	}

	deltaDeg := geo.Degrees(delta)
	minLat, maxLat := origin.Lat-deltaDeg, origin.Lat+deltaDeg

	// the circle reaches a pole, so it spans every longitude
	if minLat <= -90 || maxLat >= 90 {
		return []models.BoundingBox{{
			BottomLeft: models.GeoPoint{Lat: math.Max(minLat, -90), Lon: -180},
			TopRight:   models.GeoPoint{Lat: math.Min(maxLat, 90), Lon: 180},
		}}
	}

	s := math.Sin(delta) / math.Cos(geo.Radians(origin.Lat))
	if s >= 1 {
		return []models.BoundingBox{{
			BottomLeft: models.GeoPoint{Lat: minLat, Lon: -180},
			TopRight:   models.GeoPoint{Lat: maxLat, Lon: 180},
		}}
	}

	dLon := geo.Degrees(math.Asin(s))
	minLon, maxLon := origin.Lon-dLon, origin.Lon+dLon

	switch {
	case minLon < -180:
		return []models.BoundingBox{
			{BottomLeft: models.GeoPoint{Lat: minLat, Lon: minLon + 360}, TopRight: models.GeoPoint{Lat: maxLat, Lon: 180}},
			{BottomLeft: models.GeoPoint{Lat: minLat, Lon: -180}, TopRight: models.GeoPoint{Lat: maxLat, Lon: maxLon}},
		}
	case maxLon > 180:
		return []models.BoundingBox{
			{BottomLeft: models.GeoPoint{Lat: minLat, Lon: minLon}, TopRight: models.GeoPoint{Lat: maxLat, Lon: 180}},
			{BottomLeft: models.GeoPoint{Lat: minLat, Lon: -180}, TopRight: models.GeoPoint{Lat: maxLat, Lon: maxLon - 360}},
		}
	default:
		return []models.BoundingBox{{
			BottomLeft: models.GeoPoint{Lat: minLat, Lon: minLon},
			TopRight:   models.GeoPoint{Lat: maxLat, Lon: maxLon},
		}}
	}
}

func inRange(p models.GeoPoint) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
