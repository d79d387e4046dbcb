package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-rank/pkg/directory"
	"github.com/kass/go-geo-rank/pkg/models"
)

const storesYAML = `
- name: Oakland
  lat: 37.8044
  lon: -122.2712
  rating: 4.1
  category: store
- name: San Jose
  lat: 37.3382
  lon: -121.8863
  category: store
- name: Sacramento
  lat: 38.5816
  lon: -121.4944
  rating: 4.8
  category: restaurant
`

// execute runs the root command with flags reset to their defaults, since
// cobra keeps flag state between runs
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := prepare(t, args...)
	err := rootCmd.Execute()
	return out.String(), err
}

// prepare resets flags and output so the next Execute runs args
func prepare(t *testing.T, args ...string) *bytes.Buffer {
	t.Helper()

	var reset func(cmd *cobra.Command)
	reset = func(cmd *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				require.NoError(t, f.Value.Set(f.DefValue))
				f.Changed = false
			})
		}
		for _, sub := range cmd.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	return &out
}

func writeStores(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "stores.yaml")
	require.NoError(t, os.WriteFile(path, []byte(storesYAML), 0o644))
	return path
}

func decodeResults(t *testing.T, out string) []string {
	t.Helper()
	var results []models.RankedResult
	require.NoError(t, json.Unmarshal([]byte(out), &results), out)

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.POI.Name
	}
	return names
}

func TestDistanceCommand(t *testing.T) {
	writeStores(t)

	out, err := execute(t, "distance", "19.0760", "72.8777", "28.7041", "77.1025")
	require.NoError(t, err)
	assert.Equal(t, "1153.241", strings.TrimSpace(out))

	_, err = execute(t, "distance", "north", "0", "0", "0")
	assert.Error(t, err)
}

func TestWithinCommand(t *testing.T) {
	path := writeStores(t)

	out, err := execute(t, "within", "--directory", path, "--lat", "37.7749", "--lon", "-122.4194", "--radius", "150", "--json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sacramento", "Oakland", "San Jose"}, decodeResults(t, out))

	out, err = execute(t, "within", "--directory", path, "--lat", "37.7749", "--lon", "-122.4194", "--radius", "150", "--category", "store", "--json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oakland", "San Jose"}, decodeResults(t, out))

	_, err = execute(t, "within", "--directory", path, "--lat", "37.7749", "--lon", "-122.4194", "--radius", "-1")
	assert.Error(t, err)
}

func TestNearestCommand(t *testing.T) {
	path := writeStores(t)

	out, err := execute(t, "nearest", "--directory", path, "--lat", "37.7749", "--lon", "-122.4194", "--limit", "2", "--json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oakland", "San Jose"}, decodeResults(t, out))

	_, err = execute(t, "nearest", "--directory", path, "--lat", "37.7749")
	assert.Error(t, err)

	_, err = execute(t, "nearest", "--directory", path)
	assert.ErrorIs(t, err, errNoOrigin)
}

func TestRankCommand(t *testing.T) {
	path := writeStores(t)

	out, err := execute(t, "rank", "--directory", path, "--lat", "37.7749", "--lon", "-122.4194", "--by", "rating", "--json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sacramento", "Oakland", "San Jose"}, decodeResults(t, out))

	out, err = execute(t, "rank", "--directory", path, "--lat", "37.7749", "--lon", "-122.4194", "--limit", "1", "--json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oakland"}, decodeResults(t, out))

	_, err = execute(t, "rank", "--directory", path, "--lat", "0", "--lon", "0", "--by", "name")
	assert.Error(t, err)
}

func TestLoadThenQueryIndexFile(t *testing.T) {
	path := writeStores(t)
	indexPath := filepath.Join(filepath.Dir(path), "data", "stores.gob")

	_, err := execute(t, "load", "--directory", path, "--file", indexPath)
	require.NoError(t, err)
	assert.FileExists(t, indexPath)

	out, err := execute(t, "nearest", "--file", indexPath, "--lat", "38.5", "--lon", "-121.5", "--json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sacramento"}, decodeResults(t, out))

	_, err = execute(t, "load")
	assert.ErrorIs(t, err, errNoDirectory)
}

func TestExportCommand(t *testing.T) {
	path := writeStores(t)
	dir := filepath.Dir(path)
	want, err := directory.Load(path)
	require.NoError(t, err)

	indexPath := filepath.Join(dir, "stores.gob")
	_, err = execute(t, "load", "--directory", path, "--file", indexPath)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		out  string
	}{
		{name: "index file to json", args: []string{"--file", indexPath}, out: filepath.Join(dir, "export", "stores.json")},
		{name: "directory to yaml", args: []string{"--directory", path}, out: filepath.Join(dir, "stores.yml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"export", "--out", tt.out, "--json"}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err, out)

			var stats map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
			assert.Equal(t, float64(len(want)), stats["records"])

			got, err := directory.Load(tt.out)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err = execute(t, "export", "--file", indexPath, "--out", filepath.Join(dir, "stores.csv"))
	assert.ErrorIs(t, err, directory.ErrUnsupportedFormat)

	_, err = execute(t, "export", "--file", indexPath)
	assert.Error(t, err, "--out is required")
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		line    string
		want    models.GeoPoint
		wantErr bool
	}{
		{line: "37.7749,-122.4194", want: models.GeoPoint{Lat: 37.7749, Lon: -122.4194}},
		{line: "37.7749 -122.4194", want: models.GeoPoint{Lat: 37.7749, Lon: -122.4194}},
		{line: "1, 2", want: models.GeoPoint{Lat: 1, Lon: 2}},
		{line: "1", wantErr: true},
		{line: "a,b", wantErr: true},
		{line: "1,2,3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parsePosition(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinterPlain(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, false)

	err := p.Results("ignored", []models.RankedResult{
		{POI: models.PointOfInterest{Name: "Oakland", Rating: models.Rating(4.1), Category: "store"}, DistanceKm: 13.4312},
		{POI: models.PointOfInterest{Name: "San Jose"}, DistanceKm: 67.5},
	})
	require.NoError(t, err)
	assert.Equal(t, "1\tOakland\t13.431\t4.1\tstore\n2\tSan Jose\t67.500\t-\t\n", out.String())
}

func TestPrinterJSONEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newPrinter(&out, true).Results("none", nil))
	assert.Equal(t, "[]", strings.TrimSpace(out.String()))
}

func TestFormatKm(t *testing.T) {
	assert.Equal(t, "250 m", formatKm(0.25))
	assert.Equal(t, "13.43 km", formatKm(13.4312))
}
