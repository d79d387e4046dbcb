package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/geo"
	"github.com/kass/go-geo-rank/pkg/models"
	"github.com/kass/go-geo-rank/pkg/rtree"
)

// decodeResultSets splits a stream of JSON arrays, one per ranked position
func decodeResultSets(t *testing.T, out string) [][]models.RankedResult {
	t.Helper()

	var sets [][]models.RankedResult
	dec := json.NewDecoder(strings.NewReader(out))
	for {
		var results []models.RankedResult
		err := dec.Decode(&results)
		if errors.Is(err, io.EOF) {
			return sets
		}
		require.NoError(t, err, out)
		sets = append(sets, results)
	}
}

func TestFollow(t *testing.T) {
	log = zap.NewNop()

	index := rtree.NewPOIIndex()
	require.NoError(t, index.IndexPOIs([]models.PointOfInterest{
		{Name: "Oakland", Location: models.GeoPoint{Lat: 37.8044, Lon: -122.2712}, Category: "store"},
		{Name: "Sacramento", Location: models.GeoPoint{Lat: 38.5816, Lon: -121.4944}, Category: "restaurant"},
	}))

	tests := []struct {
		name     string
		input    string
		radius   float64
		category string
		expected [][]string
	}{
		{
			name:     "comments and bad lines skipped",
			input:    "# positions\nnot a position\n37.7749,-122.4194\n",
			radius:   50,
			expected: [][]string{{"Oakland"}},
		},
		{
			name:     "one block per position",
			input:    "37.7749,-122.4194\n\n38.5,-121.5\n0,0\n",
			radius:   50,
			expected: [][]string{{"Oakland"}, {"Sacramento"}, {}},
		},
		{
			name:     "category filter",
			input:    "37.7749 -122.4194\n",
			radius:   200,
			category: "restaurant",
			expected: [][]string{{"Sacramento"}},
		},
		{
			name:     "no positions",
			input:    "",
			radius:   50,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			categoryName = tt.category
			t.Cleanup(func() { categoryName = "" })

			var out bytes.Buffer
			err := follow(context.Background(), strings.NewReader(tt.input), indexSource{index: index}, tt.radius, newPrinter(&out, true))
			require.NoError(t, err)

			sets := decodeResultSets(t, out.String())
			require.Len(t, sets, len(tt.expected))
			for i, results := range sets {
				names := make([]string, len(results))
				for j, r := range results {
					names[j] = r.POI.Name
				}
				assert.Equal(t, tt.expected[i], names, "position %d", i)
			}
		})
	}
}

func TestFollowRanksEveryPosition(t *testing.T) {
	log = zap.NewNop()
	categoryName = ""

	pois := generateRandomPOIs(2000, 3)
	index := rtree.NewPOIIndex()
	require.NoError(t, index.IndexPOIs(pois))

	const positions = 50
	var input strings.Builder
	for i := 0; i < positions; i++ {
		fmt.Fprintf(&input, "%d,%d\n", i-25, i*7-175)
	}

	var out bytes.Buffer
	err := follow(context.Background(), strings.NewReader(input.String()), indexSource{index: index}, 3000, newPrinter(&out, true))
	require.NoError(t, err)

	sets := decodeResultSets(t, out.String())
	require.Len(t, sets, positions)
	for i, results := range sets {
		origin := models.GeoPoint{Lat: float64(i - 25), Lon: float64(i*7 - 175)}
		for _, r := range results {
			assert.LessOrEqual(t, r.DistanceKm, 3000.0)
			assert.InDelta(t, geo.Distance(origin, r.POI.Location), r.DistanceKm, 1e-9, "position %d", i)
		}
	}
}

type failingSource struct {
	indexSource
	err error
}

func (s failingSource) Within(context.Context, models.GeoPoint, float64) ([]models.RankedResult, error) {
	return nil, s.err
}

func TestFollowStopsOnSourceError(t *testing.T) {
	log = zap.NewNop()
	categoryName = ""

	boom := errors.New("database unavailable")
	src := failingSource{indexSource: indexSource{index: rtree.NewPOIIndex()}, err: boom}

	var input strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&input, "%d,0\n", i)
	}

	done := make(chan error, 1)
	go func() {
		var out bytes.Buffer
		done <- follow(context.Background(), strings.NewReader(input.String()), src, 10, newPrinter(&out, true))
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return after the source failed")
	}
}

func TestFollowContextCancel(t *testing.T) {
	log = zap.NewNop()
	categoryName = ""

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var out bytes.Buffer
		done <- follow(ctx, pr, indexSource{index: rtree.NewPOIIndex()}, 10, newPrinter(&out, true))
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return after cancellation")
	}
}
