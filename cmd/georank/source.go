package main

import (
	"context"

	"github.com/kass/go-geo-rank/pkg/models"
	"github.com/kass/go-geo-rank/pkg/postgis"
	"github.com/kass/go-geo-rank/pkg/rtree"
)

// source is where query commands read candidates from. *postgis.Directory
// satisfies it directly.
type source interface {
	NearestN(ctx context.Context, origin models.GeoPoint, n int) ([]models.RankedResult, error)
	Within(ctx context.Context, origin models.GeoPoint, radiusKm float64) ([]models.RankedResult, error)
	All(ctx context.Context) ([]models.PointOfInterest, error)
	Close() error
}

// indexSource adapts the in-memory index to source
type indexSource struct {
	index *rtree.POIIndex
}

func (s indexSource) NearestN(_ context.Context, origin models.GeoPoint, n int) ([]models.RankedResult, error) {
	return s.index.NearestN(origin, n)
}

func (s indexSource) Within(_ context.Context, origin models.GeoPoint, radiusKm float64) ([]models.RankedResult, error) {
	return s.index.Within(origin, radiusKm)
}

func (s indexSource) All(context.Context) ([]models.PointOfInterest, error) {
	return s.index.All(), nil
}

func (s indexSource) Close() error {
	return nil
}

// openSource returns the PostGIS directory with --postgis, otherwise the
// in-memory index
func openSource(ctx context.Context) (source, error) {
	if usePostGIS {
		db, err := postgis.NewDirectory(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	index, err := openIndex()
	if err != nil {
		return nil, err
	}
	return indexSource{index: index}, nil
}
