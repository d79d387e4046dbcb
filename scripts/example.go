package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kass/go-geo-rank/pkg/geo"
	"github.com/kass/go-geo-rank/pkg/location"
	"github.com/kass/go-geo-rank/pkg/models"
	"github.com/kass/go-geo-rank/pkg/rtree"
)

func main() {
	// Stores and restaurants around the Bay Area; San Jose has no rating
	pois := []models.PointOfInterest{
		{Name: "Ferry Building Market", Location: models.GeoPoint{Lat: 37.7955, Lon: -122.3937}, Rating: models.Rating(4.6), Category: "store"},
		{Name: "Oakland Grocery", Location: models.GeoPoint{Lat: 37.8044, Lon: -122.2712}, Rating: models.Rating(4.1), Category: "store"},
		{Name: "San Jose Outlet", Location: models.GeoPoint{Lat: 37.3382, Lon: -121.8863}, Category: "store"},
		{Name: "Sacramento Diner", Location: models.GeoPoint{Lat: 38.5816, Lon: -121.4944}, Rating: models.Rating(4.8), Category: "restaurant"},
		{Name: "Berkeley Noodles", Location: models.GeoPoint{Lat: 37.8715, Lon: -122.2730}, Rating: models.Rating(4.1), Category: "restaurant"},
		{Name: "Palo Alto Cafe", Location: models.GeoPoint{Lat: 37.4419, Lon: -122.1430}, Rating: models.Rating(3.7), Category: "restaurant"},
	}
	sf := models.GeoPoint{Lat: 37.7749, Lon: -122.4194}

	// Example 1: distances straight from the ranker
	fmt.Println("=== Distances from San Francisco ===")
	for _, poi := range pois {
		fmt.Printf("  - %s: %.2f km\n", poi.Name, geo.Distance(sf, poi.Location))
	}

	// Example 2: the nearest store
	fmt.Println("\n=== Nearest store ===")
	nearest, err := geo.Nearest(sf, byCategory(pois, "store"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  %s, %.2f km away\n", nearest.POI.Name, nearest.DistanceKm)

	// Example 3: restaurants within 100 km, best rated first
	fmt.Println("\n=== Restaurants within 100 km ===")
	within, err := geo.Within(sf, byCategory(pois, "restaurant"), 100)
	if err != nil {
		log.Fatal(err)
	}
	printResults(within)

	// Example 4: the same queries through the R-Tree index
	index := rtree.NewPOIIndex()
	if err := index.IndexPOIs(pois); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nIndexed %d points of interest\n", index.Count())

	fmt.Println("\n=== Everything within 150 km (index) ===")
	within, err = index.Within(sf, 150)
	if err != nil {
		log.Fatal(err)
	}
	printResults(within)

	fmt.Println("\n=== 3 nearest (index) ===")
	closest, err := index.NearestN(sf, 3)
	if err != nil {
		log.Fatal(err)
	}
	printResults(closest)

	fmt.Println("\n=== East Bay (bounding box) ===")
	eastBay, err := index.QueryBox(models.BoundingBox{
		BottomLeft: models.GeoPoint{Lat: 37.7, Lon: -122.35},
		TopRight:   models.GeoPoint{Lat: 37.9, Lon: -122.2},
	})
	if err != nil {
		log.Fatal(err)
	}
	for _, poi := range eastBay {
		fmt.Printf("  - %s\n", poi.Name)
	}

	// Example 5: a moving origin; the feed keeps the latest published position
	fmt.Println("\n=== Nearest as the origin moves ===")
	feed := location.NewFeed()
	for _, stop := range []models.GeoPoint{sf, {Lat: 37.87, Lon: -122.27}, {Lat: 38.5, Lon: -121.5}} {
		feed.Publish(stop)
		origin, err := feed.Current(context.Background())
		if err != nil {
			log.Fatal(err)
		}
		best, err := index.Nearest(origin)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  from %.2f,%.2f: %s\n", origin.Lat, origin.Lon, best.POI.Name)
	}
	feed.Close()

	// Example 6: the error cases
	fmt.Println("\n=== Errors ===")
	if _, err := geo.Nearest(sf, nil); errors.Is(err, geo.ErrEmptyInput) {
		fmt.Printf("  empty input: %v\n", err)
	}
	if _, err := geo.Within(sf, pois, -1); errors.Is(err, geo.ErrInvalidArgument) {
		fmt.Printf("  negative radius: %v\n", err)
	}
}

func byCategory(pois []models.PointOfInterest, category string) []models.PointOfInterest {
	var out []models.PointOfInterest
	for _, poi := range pois {
		if poi.Category == category {
			out = append(out, poi)
		}
	}
	return out
}

func printResults(results []models.RankedResult) {
	for _, r := range results {
		rating := "unrated"
		if r.POI.HasRating() {
			rating = fmt.Sprintf("%.1f", *r.POI.Rating)
		}
		fmt.Printf("  - %s: %.2f km, %s\n", r.POI.Name, r.DistanceKm, rating)
	}
}
