package rtree

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/models"
)

// IndexData represents the serializable form of the index
type IndexData struct {
	POIs  []models.PointOfInterest `json:"pois"`
	Count int64                    `json:"count"`
}

// SaveToFile saves the index to a binary file. Records are written in
// insertion order so a reloaded index breaks ties the same way.
func (g *POIIndex) SaveToFile(filename string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// rtreego has no iterator, so pull everything through a world-sized query
	data := IndexData{
		POIs:  g.candidates(models.GeoPoint{}, math.Inf(1)),
		Count: g.itemCount.Load(),
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	g.logger.Info("index saved", zap.String("file", filename), zap.Int64("count", data.Count))
	return nil
}

// LoadFromFile replaces the contents of the index with those of a file
// written by SaveToFile
func (g *POIIndex) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data IndexData
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	if int64(len(data.POIs)) != data.Count {
		return fmt.Errorf("corrupt index file: header says %d records, found %d", data.Count, len(data.POIs))
	}

	g.Clear()
	if err := g.IndexPOIs(data.POIs); err != nil {
		return fmt.Errorf("failed to index points of interest: %w", err)
	}

	g.logger.Info("index loaded", zap.String("file", filename), zap.Int64("count", g.Count()))
	return nil
}
