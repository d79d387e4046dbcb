package postgis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/config"
	"github.com/kass/go-geo-rank/pkg/geo"
	"github.com/kass/go-geo-rank/pkg/models"
)

const batchSize = 10000

// ST_DWithin measures on the WGS84 spheroid while ranking uses a sphere; the
// prefilter radius is widened so no record the haversine filter keeps is lost
const (
	prefilterRatio    = 1.01
	prefilterMarginKm = 1.0
)

// halfCircumferenceKm is the largest haversine distance; any radius at least
// this large covers the whole table
const halfCircumferenceKm = 20016.0

// Directory is a point-of-interest directory stored in PostGIS. It supplies
// candidates; ranking happens in package geo.
type Directory struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectory opens and pings a PostgreSQL connection
func NewDirectory(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Directory, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{db: db, logger: logger}, nil
}

// NewDirectoryFromDB wraps an existing connection pool
func NewDirectoryFromDB(db *sql.DB, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{db: db, logger: logger}
}

// InitSchema creates the pois table and its spatial index when missing
func (d *Directory) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,

		`CREATE TABLE IF NOT EXISTS pois (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			rating DOUBLE PRECISION,
			location GEOGRAPHY(POINT, 4326) NOT NULL
		);`,

		`CREATE INDEX IF NOT EXISTS idx_pois_location ON pois USING GIST(location);`,
	}

	for _, query := range queries {
		if _, err := d.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}

	return nil
}

// Truncate removes every point of interest and restarts ids
func (d *Directory) Truncate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `TRUNCATE pois RESTART IDENTITY;`); err != nil {
		return fmt.Errorf("failed to truncate pois: %w", err)
	}
	return nil
}

// BulkInsert inserts points of interest in batches, preserving their order
// in the id sequence
func (d *Directory) BulkInsert(ctx context.Context, pois []models.PointOfInterest) error {
	start := time.Now()

	for offset := 0; offset < len(pois); offset += batchSize {
		end := offset + batchSize
		if end > len(pois) {
			end = len(pois)
		}
		if err := d.insertBatch(ctx, pois[offset:end]); err != nil {
			return err
		}
	}

	d.logger.Info("points of interest imported",
		zap.Int("count", len(pois)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (d *Directory) insertBatch(ctx context.Context, pois []models.PointOfInterest) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pois (name, category, rating, location)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, poi := range pois {
		var rating sql.NullFloat64
		if poi.Rating != nil {
			rating = sql.NullFloat64{Float64: *poi.Rating, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, poi.Name, poi.Category, rating, poi.Location.Lon, poi.Location.Lat); err != nil {
			return fmt.Errorf("failed to insert point of interest %q: %w", poi.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Candidates returns the points of interest that may lie within radiusKm of
// origin, in insertion order
func (d *Directory) Candidates(ctx context.Context, origin models.GeoPoint, radiusKm float64) ([]models.PointOfInterest, error) {
	if radiusKm >= halfCircumferenceKm || math.IsNaN(radiusKm) {
		return d.All(ctx)
	}

	return d.query(ctx, `
		SELECT name, category, rating, ST_Y(location::geometry), ST_X(location::geometry)
		FROM pois
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY id
	`, origin.Lon, origin.Lat, (radiusKm*prefilterRatio+prefilterMarginKm)*1000)
}

// Within ranks the directory's points of interest within radiusKm of origin
func (d *Directory) Within(ctx context.Context, origin models.GeoPoint, radiusKm float64) ([]models.RankedResult, error) {
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("%w: radius must be non-negative, got %v", geo.ErrInvalidArgument, radiusKm)
	}

	candidates, err := d.Candidates(ctx, origin, radiusKm)
	if err != nil {
		return nil, err
	}
	return geo.Within(origin, candidates, radiusKm)
}

// Nearest returns the directory's point of interest closest to origin
func (d *Directory) Nearest(ctx context.Context, origin models.GeoPoint) (models.RankedResult, error) {
	// the KNN operator finds a bounding candidate; the radius query then
	// gathers every record that could tie or beat it
	var lat, lon float64
	err := d.db.QueryRowContext(ctx, `
		SELECT ST_Y(location::geometry), ST_X(location::geometry)
		FROM pois
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT 1
	`, origin.Lon, origin.Lat).Scan(&lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RankedResult{}, fmt.Errorf("%w: directory is empty", geo.ErrEmptyInput)
	}
	if err != nil {
		return models.RankedResult{}, fmt.Errorf("failed to find nearest candidate: %w", err)
	}

	bound := geo.Distance(origin, models.GeoPoint{Lat: lat, Lon: lon})
	candidates, err := d.Candidates(ctx, origin, bound)
	if err != nil {
		return models.RankedResult{}, err
	}
	return geo.Nearest(origin, candidates)
}

// NearestN returns up to n of the directory's points of interest, nearest
// first, with the same semantics as geo.NearestN
func (d *Directory) NearestN(ctx context.Context, origin models.GeoPoint, n int) ([]models.RankedResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", geo.ErrInvalidArgument, n)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT ST_Y(location::geometry), ST_X(location::geometry)
		FROM pois
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $3
	`, origin.Lon, origin.Lat, n)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearest candidates: %w", err)
	}
	defer rows.Close()

	// any n records bound the distance of the true n-th nearest
	found := 0
	bound := 0.0
	for rows.Next() {
		var lat, lon float64
		if err := rows.Scan(&lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bound = math.Max(bound, geo.Distance(origin, models.GeoPoint{Lat: lat, Lon: lon}))
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: directory is empty", geo.ErrEmptyInput)
	}
	if found < n {
		bound = math.Inf(1)
	}

	candidates, err := d.Candidates(ctx, origin, bound)
	if err != nil {
		return nil, err
	}
	return geo.NearestN(origin, candidates, n)
}

// All returns every point of interest in insertion order
func (d *Directory) All(ctx context.Context) ([]models.PointOfInterest, error) {
	return d.query(ctx, `
		SELECT name, category, rating, ST_Y(location::geometry), ST_X(location::geometry)
		FROM pois
		ORDER BY id
	`)
}

func (d *Directory) query(ctx context.Context, query string, args ...interface{}) ([]models.PointOfInterest, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []models.PointOfInterest
	for rows.Next() {
		var (
			poi    models.PointOfInterest
			rating sql.NullFloat64
		)
		if err := rows.Scan(&poi.Name, &poi.Category, &rating, &poi.Location.Lat, &poi.Location.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if rating.Valid {
			poi.Rating = models.Rating(rating.Float64)
		}
		results = append(results, poi)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}

// Count returns the number of points of interest in the database
func (d *Directory) Count(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pois").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count points of interest: %w", err)
	}
	return count, nil
}

// Stats returns table and index sizes for diagnostics
func (d *Directory) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var tableSize, indexSize string
	err := d.db.QueryRowContext(ctx, `
		SELECT
			pg_size_pretty(pg_total_relation_size('pois')) as total_size,
			pg_size_pretty(pg_indexes_size('pois')) as index_size
	`).Scan(&tableSize, &indexSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get table stats: %w", err)
	}
	stats["table_size"] = tableSize
	stats["index_size"] = indexSize

	count, err := d.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats["row_count"] = count

	return stats, nil
}

// Close closes the database connection
func (d *Directory) Close() error {
	return d.db.Close()
}
