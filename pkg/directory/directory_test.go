package directory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kass/go-geo-rank/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	data := []byte(`[
		{"name": "Cafe Madras", "lat": 19.0269, "lon": 72.8553, "rating": 4.6, "category": "restaurant"},
		{"name": "Corner store", "lat": 19.0176, "lon": 72.8562},
		{"name": "Equator shop", "lat": 0, "lon": 0, "rating": 0}
	]`)

	pois, err := Decode(data, FormatJSON)
	require.NoError(t, err)
	require.Len(t, pois, 3)

	assert.Equal(t, "Cafe Madras", pois[0].Name)
	assert.Equal(t, "restaurant", pois[0].Category)
	require.NotNil(t, pois[0].Rating)
	assert.Equal(t, 4.6, *pois[0].Rating)

	assert.Equal(t, "Corner store", pois[1].Name)
	assert.Nil(t, pois[1].Rating, "missing rating stays absent")

	assert.Equal(t, models.GeoPoint{}, pois[2].Location)
	require.NotNil(t, pois[2].Rating)
	assert.Equal(t, 0.0, *pois[2].Rating)
}

func TestDecodeYAML(t *testing.T) {
	data := []byte(`
- name: Dosa point
  lat: 12.9716
  lon: 77.5946
  rating: 4.2
- name: "  Trimmed  "
  lat: -33.8688
  lon: 151.2093
`)

	pois, err := Decode(data, FormatYAML)
	require.NoError(t, err)
	require.Len(t, pois, 2)
	assert.Equal(t, "Dosa point", pois[0].Name)
	assert.Equal(t, "Trimmed", pois[1].Name)
	assert.Equal(t, models.GeoPoint{Lat: -33.8688, Lon: 151.2093}, pois[1].Location)
}

func TestDecodeValidation(t *testing.T) {
	testCases := []struct {
		name    string
		data    string
		invalid []int
	}{
		{"missing name", `[{"lat": 1, "lon": 1}]`, []int{0}},
		{"blank name", `[{"name": "   ", "lat": 1, "lon": 1}]`, []int{0}},
		{"missing lat", `[{"name": "a", "lon": 1}]`, []int{0}},
		{"latitude out of range", `[{"name": "a", "lat": 91, "lon": 1}]`, []int{0}},
		{"longitude out of range", `[{"name": "a", "lat": 1, "lon": -181}]`, []int{0}},
		{"negative rating", `[{"name": "a", "lat": 1, "lon": 1, "rating": -2}]`, []int{0}},
		{"several", `[{"name": "ok", "lat": 1, "lon": 1}, {"name": "", "lat": 1, "lon": 1}, {"name": "b", "lat": 100, "lon": 1}]`, []int{1, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data), FormatJSON)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Problems, len(tc.invalid))
			for _, i := range tc.invalid {
				assert.Contains(t, verr.Problems, i)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"name": "not a list"}`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode([]byte(`[{"name": "a", "lat": 1, "lon": 1, "stars": 5}]`), FormatJSON)
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Decode([]byte("- name: [unclosed"), FormatYAML)
	assert.Error(t, err)

	_, err = Decode([]byte(`[]`), Format("csv"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeUnknownFields(t *testing.T) {
	testCases := []struct {
		name    string
		data    string
		format  Format
		wantErr bool
	}{
		{"json typo", `[{"name": "a", "lat": 1, "lon": 1, "ratng": 4.5}]`, FormatJSON, true},
		{"yaml typo", "- name: a\n  lat: 1\n  lon: 1\n  ratng: 4.5\n", FormatYAML, true},
		{"yaml known fields", "- name: a\n  lat: 1\n  lon: 1\n  rating: 4.5\n  category: store\n", FormatYAML, false},
		{"yaml empty document", "", FormatYAML, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data), tc.format)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := Decode([]byte(`[{"name": "ok", "lat": 1, "lon": 1}, {"lat": 95, "lon": 1}]`), FormatJSON)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, `lat failed "latitude"; name failed "required"`, verr.Problems[1])
	assert.Equal(t, `1 invalid records: record 1: lat failed "latitude"; name failed "required"`, err.Error())
}

func TestSaveAndLoad(t *testing.T) {
	pois := []models.PointOfInterest{
		{Name: "Mumbai store", Location: models.GeoPoint{Lat: 19.0760, Lon: 72.8777}, Rating: models.Rating(3.9), Category: "store"},
		{Name: "Delhi store", Location: models.GeoPoint{Lat: 28.7041, Lon: 77.1025}},
	}

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stores"+ext)
			require.NoError(t, Save(path, pois))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, pois, loaded)
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,lat,lon\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.ErrorIs(t, Save(path, nil), ErrUnsupportedFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
