package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-rank/pkg/geo"
	"github.com/kass/go-geo-rank/pkg/models"
)

var distanceCmd = &cobra.Command{
	Use:   "distance LAT1 LON1 LAT2 LON2",
	Short: "Great-circle distance between two points in km",
	Args:  cobra.ExactArgs(4),
	RunE:  runDistance,
}

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the points of interest closest to an origin",
	Long: `Find the point of interest closest to an origin. With --limit, list the
closest records nearest first. Ties keep directory order.`,
	RunE: runNearest,
}

var withinCmd = &cobra.Command{
	Use:   "within",
	Short: "List points of interest inside a radius, best rated first",
	Long: `List every point of interest within --radius km of the origin (boundary
included), ordered by rating descending. Unrated records come last.`,
	RunE: runWithin,
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank every point of interest by distance or rating",
	RunE:  runRank,
}

var (
	nearestLimit int
	withinRadius float64
	rankBy       string
	rankLimit    int
	categoryName string
	followInput  bool
)

func init() {
	addOriginFlags(nearestCmd)
	nearestCmd.Flags().IntVarP(&nearestLimit, "limit", "n", 1, "Number of results")

	addOriginFlags(withinCmd)
	withinCmd.Flags().Float64VarP(&withinRadius, "radius", "r", 0, "Search radius in km (default query.radius_km)")
	withinCmd.Flags().StringVar(&categoryName, "category", "", "Only list this category")
	withinCmd.Flags().BoolVar(&followInput, "follow", false, "Read lat,lon lines from stdin and re-rank for each")

	addOriginFlags(rankCmd)
	rankCmd.Flags().StringVar(&rankBy, "by", "distance", "Sort key: distance or rating")
	rankCmd.Flags().IntVarP(&rankLimit, "limit", "n", 0, "Number of results (default query.limit)")
}

func runDistance(cmd *cobra.Command, args []string) error {
	coords := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", arg, err)
		}
		coords[i] = v
	}

	a := models.GeoPoint{Lat: coords[0], Lon: coords[1]}
	b := models.GeoPoint{Lat: coords[2], Lon: coords[3]}
	return newPrinter(cmd.OutOrStdout(), asJSON).Distance(a, b, geo.Distance(a, b))
}

func runNearest(cmd *cobra.Command, args []string) error {
	origin, err := resolveOrigin(cmd)
	if err != nil {
		return err
	}
	ctx := contextOf(cmd)
	src, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	results, err := src.NearestN(ctx, origin, nearestLimit)
	if err != nil {
		return err
	}
	return newPrinter(cmd.OutOrStdout(), asJSON).Results(
		fmt.Sprintf("Nearest to %s", formatPoint(origin)), results)
}

func runWithin(cmd *cobra.Command, args []string) error {
	radius := cfg.Query.RadiusKm
	if cmd.Flags().Changed("radius") {
		radius = withinRadius
	}

	ctx := contextOf(cmd)
	if followInput {
		src, err := openSource(ctx)
		if err != nil {
			return err
		}
		defer src.Close()
		return follow(ctx, cmd.InOrStdin(), src, radius, newPrinter(cmd.OutOrStdout(), asJSON))
	}

	origin, err := resolveOrigin(cmd)
	if err != nil {
		return err
	}

	src, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	results, err := src.Within(ctx, origin, radius)
	if err != nil {
		return err
	}
	if categoryName != "" {
		results = geo.FilterCategory(results, categoryName)
	}

	return newPrinter(cmd.OutOrStdout(), asJSON).Results(
		fmt.Sprintf("Within %s of %s", formatKm(radius), formatPoint(origin)), results)
}

func runRank(cmd *cobra.Command, args []string) error {
	by, err := geo.ParseSortKey(rankBy)
	if err != nil {
		return err
	}
	origin, err := resolveOrigin(cmd)
	if err != nil {
		return err
	}

	limit := cfg.Query.Limit
	if cmd.Flags().Changed("limit") {
		limit = rankLimit
	}
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", geo.ErrInvalidArgument, limit)
	}

	ctx := contextOf(cmd)
	src, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	pois, err := src.All(ctx)
	if err != nil {
		return err
	}

	results := geo.Rank(origin, pois, by)
	if len(results) > limit {
		results = results[:limit]
	}
	return newPrinter(cmd.OutOrStdout(), asJSON).Results(
		fmt.Sprintf("Ranked by %s from %s", by, formatPoint(origin)), results)
}
