package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddr())
	assert.Equal(t, "data/index.gob", cfg.Index.File)
	assert.Equal(t, 10.0, cfg.Query.RadiusKm)
	assert.Equal(t, 10, cfg.Query.Limit)
	assert.Nil(t, cfg.Query.Origin)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "georank.yaml")
	content := `
log:
  level: debug
server:
  port: 9090
index:
  file: /var/lib/georank/stores.gob
  directory: stores.yaml
query:
  radius_km: 2.5
  limit: 3
  origin_lat: 19.0760
  origin_lon: 72.8777
database:
  host: db.internal
  name: pois
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/georank/stores.gob", cfg.Index.File)
	assert.Equal(t, "stores.yaml", cfg.Index.Directory)
	assert.Equal(t, 2.5, cfg.Query.RadiusKm)
	assert.Equal(t, 3, cfg.Query.Limit)
	require.NotNil(t, cfg.Query.Origin)
	assert.InDelta(t, 19.0760, cfg.Query.Origin.Lat, 1e-9)
	assert.InDelta(t, 72.8777, cfg.Query.Origin.Lon, 1e-9)
	assert.Contains(t, cfg.GetDatabaseDSN(), "host=db.internal")
	assert.Contains(t, cfg.GetDatabaseDSN(), "dbname=pois")
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "georank.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))

	t.Setenv("GEORANK_LOG_LEVEL", "error")
	t.Setenv("GEORANK_QUERY_RADIUS_KM", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 42.0, cfg.Query.RadiusKm)
}

func TestLoadRejectsNegativeRadius(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEORANK_QUERY_RADIUS_KM", "-1")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
