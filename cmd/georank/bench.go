package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kass/go-geo-rank/pkg/geo"
	"github.com/kass/go-geo-rank/pkg/models"
	"github.com/kass/go-geo-rank/pkg/rtree"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark index queries on random origins",
	Long: `Run random queries against the index using worker goroutines. With
--points the index is filled with generated points of interest; with
--points 0 the configured directory or index file is used.`,
	RunE: runBench,
}

var (
	benchPoints    int
	benchQueries   int
	benchWorkers   int
	benchMode      string
	benchRadius    float64
	benchNeighbors int
	benchVerify    bool
	benchSeed      int64
)

func init() {
	benchCmd.Flags().IntVarP(&benchPoints, "points", "p", 100000, "Number of random points of interest to generate (0 uses the configured data)")
	benchCmd.Flags().IntVarP(&benchQueries, "queries", "q", 1000, "Number of queries to run")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchCmd.Flags().StringVarP(&benchMode, "mode", "m", "within", "Query type: within, nearest or box")
	benchCmd.Flags().Float64VarP(&benchRadius, "radius", "r", 50.0, "Search radius in km for within queries")
	benchCmd.Flags().IntVarP(&benchNeighbors, "neighbors", "n", 10, "Number of neighbors for nearest queries")
	benchCmd.Flags().BoolVar(&benchVerify, "verify", false, "Check every result against a full scan")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 0, "Random seed (default time based)")
}

type benchQuery func(origin models.GeoPoint) (int, error)

func runBench(cmd *cobra.Command, args []string) error {
	if benchQueries <= 0 || benchWorkers <= 0 {
		return fmt.Errorf("%w: queries and workers must be positive", geo.ErrInvalidArgument)
	}

	seed := benchSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	index, loadTime, err := benchIndex(seed)
	if err != nil {
		return err
	}

	query, err := benchQueryFor(index)
	if err != nil {
		return err
	}

	r := rand.New(rand.NewSource(seed + 1))
	origins := make([]models.GeoPoint, benchQueries)
	for i := range origins {
		origins[i] = models.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
	}

	log.Info("running benchmark",
		zap.String("mode", benchMode),
		zap.Int("queries", benchQueries),
		zap.Int("workers", benchWorkers),
		zap.Int64("points", index.Count()))

	var totalResults, queryCount atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(contextOf(cmd))
	queriesPerWorker := (benchQueries + benchWorkers - 1) / benchWorkers
	for startIdx := 0; startIdx < benchQueries; startIdx += queriesPerWorker {
		endIdx := startIdx + queriesPerWorker
		if endIdx > benchQueries {
			endIdx = benchQueries
		}

		g.Go(func() error {
			localResults := 0
			for i := startIdx; i < endIdx; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				n, err := query(origins[i])
				if err != nil {
					return fmt.Errorf("query %d at %s: %w", i, formatPoint(origins[i]), err)
				}
				localResults += n
				queryCount.Add(1)
			}
			totalResults.Add(int64(localResults))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	completed := queryCount.Load()
	return newPrinter(cmd.OutOrStdout(), asJSON).Stats("Benchmark results",
		[]string{"mode", "points", "load_time", "queries", "total_time", "queries_per_second", "avg_query_time", "avg_results", "verified"},
		map[string]interface{}{
			"mode":               benchMode,
			"points":             index.Count(),
			"load_time":          loadTime.Round(time.Millisecond).String(),
			"queries":            completed,
			"total_time":         elapsed.Round(time.Millisecond).String(),
			"queries_per_second": fmt.Sprintf("%.0f", float64(completed)/elapsed.Seconds()),
			"avg_query_time":     (elapsed / time.Duration(completed)).String(),
			"avg_results":        fmt.Sprintf("%.1f", float64(totalResults.Load())/float64(completed)),
			"verified":           benchVerify,
		})
}

// benchIndex returns the index to query and how long building it took
func benchIndex(seed int64) (*rtree.POIIndex, time.Duration, error) {
	start := time.Now()
	if benchPoints <= 0 {
		index, err := openIndex()
		return index, time.Since(start), err
	}

	pois := generateRandomPOIs(benchPoints, seed)
	index := rtree.NewPOIIndex(rtree.WithLogger(log))
	if err := index.IndexPOIs(pois); err != nil {
		return nil, 0, err
	}
	return index, time.Since(start), nil
}

func benchQueryFor(index *rtree.POIIndex) (benchQuery, error) {
	var all []models.PointOfInterest
	if benchVerify {
		all = index.All()
	}

	switch benchMode {
	case "within":
		return func(origin models.GeoPoint) (int, error) {
			results, err := index.Within(origin, benchRadius)
			if err != nil {
				return 0, err
			}
			if benchVerify {
				want, err := geo.Within(origin, all, benchRadius)
				if err != nil {
					return 0, err
				}
				if err := sameResults(want, results); err != nil {
					return 0, err
				}
			}
			return len(results), nil
		}, nil

	case "nearest":
		return func(origin models.GeoPoint) (int, error) {
			results, err := index.NearestN(origin, benchNeighbors)
			if err != nil {
				return 0, err
			}
			if benchVerify {
				want, err := geo.NearestN(origin, all, benchNeighbors)
				if err != nil {
					return 0, err
				}
				if err := sameResults(want, results); err != nil {
					return 0, err
				}
			}
			return len(results), nil
		}, nil

	case "box":
		return func(origin models.GeoPoint) (int, error) {
			// 1 degree box, clipped to the valid range
			box := models.BoundingBox{
				BottomLeft: models.GeoPoint{Lat: max(origin.Lat-0.5, -90), Lon: max(origin.Lon-0.5, -180)},
				TopRight:   models.GeoPoint{Lat: min(origin.Lat+0.5, 90), Lon: min(origin.Lon+0.5, 180)},
			}
			results, err := index.QueryBox(box)
			if err != nil {
				return 0, err
			}
			if benchVerify {
				want := 0
				for _, p := range all {
					if box.Contains(p.Location) {
						want++
					}
				}
				if want != len(results) {
					return 0, fmt.Errorf("index returned %d results in box, full scan %d", len(results), want)
				}
			}
			return len(results), nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown benchmark mode %q", geo.ErrInvalidArgument, benchMode)
	}
}

func sameResults(want, got []models.RankedResult) error {
	if len(want) != len(got) {
		return fmt.Errorf("index returned %d results, full scan %d", len(got), len(want))
	}
	for i := range want {
		if want[i].POI.Name != got[i].POI.Name || want[i].DistanceKm != got[i].DistanceKm {
			return fmt.Errorf("result %d differs: index %q, full scan %q", i, got[i].POI.Name, want[i].POI.Name)
		}
	}
	return nil
}

// generateRandomPOIs concentrates points around major population centers
func generateRandomPOIs(n int, seed int64) []models.PointOfInterest {
	pois := make([]models.PointOfInterest, n)

	numWorkers := runtime.NumCPU()
	batchSize := (n + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup

	for startIdx := 0; startIdx < n; startIdx += batchSize {
		endIdx := startIdx + batchSize
		if endIdx > n {
			endIdx = n
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(start)))

			for i := start; i < end; i++ {
				var lat, lon float64
				switch r.Intn(5) {
				case 0: // North America
					lat = r.Float64()*30 + 30
					lon = r.Float64()*60 - 120
				case 1: // Europe
					lat = r.Float64()*20 + 40
					lon = r.Float64()*40 - 10
				case 2: // Asia
					lat = r.Float64()*40 + 20
					lon = r.Float64()*80 + 60
				case 3: // South America
					lat = r.Float64()*40 - 50
					lon = r.Float64()*30 - 80
				default:
					lat = r.Float64()*180 - 90
					lon = r.Float64()*360 - 180
				}

				poi := models.PointOfInterest{
					Name:     fmt.Sprintf("poi_%d", i),
					Location: models.GeoPoint{Lat: lat, Lon: lon},
				}
				// roughly one in five records is unrated
				if r.Intn(5) != 0 {
					poi.Rating = models.Rating(float64(r.Intn(41)) / 10)
				}
				pois[i] = poi
			}
		}(startIdx, endIdx)
	}

	wg.Wait()
	return pois
}
