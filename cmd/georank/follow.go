package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/geo"
	"github.com/kass/go-geo-rank/pkg/location"
	"github.com/kass/go-geo-rank/pkg/models"
)

// follow re-runs a radius query for every position read from r, until r is
// exhausted or ctx ends. Every position is ranked; the reader waits for the
// previous one to be taken before publishing the next.
func follow(ctx context.Context, r io.Reader, src source, radius float64, out *printer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := location.NewFeed(location.WithLogger(log))
	defer feed.Close()

	sub, err := feed.Watch(ctx)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	go func() {
		defer feed.Close()
		readPositions(ctx, r, feed)
	}()

	for origin := range sub.Updates() {
		results, err := src.Within(ctx, origin, radius)
		if err != nil {
			return err
		}
		if categoryName != "" {
			results = geo.FilterCategory(results, categoryName)
		}
		if err := out.Results(fmt.Sprintf("Within %s of %s", formatKm(radius), formatPoint(origin)), results); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// readPositions publishes one position per "lat,lon" or "lat lon" line. It
// stops at the end of r or once ctx ends; a read already blocked on r is
// only noticed when it returns.
func readPositions(ctx context.Context, r io.Reader, feed *location.Feed) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p, err := parsePosition(line)
		if err != nil {
			log.Warn("skipping position", zap.String("line", line), zap.Error(err))
			continue
		}
		if err := feed.PublishWait(ctx, p); err != nil {
			log.Debug("stopped reading positions", zap.Error(err))
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error("failed to read positions", zap.Error(err))
	}
}

func parsePosition(line string) (models.GeoPoint, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return models.GeoPoint{}, fmt.Errorf("expected \"lat,lon\", got %q", line)
	}

	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("invalid longitude: %w", err)
	}
	return models.GeoPoint{Lat: lat, Lon: lon}, nil
}
