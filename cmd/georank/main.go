package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/config"
	"github.com/kass/go-geo-rank/pkg/directory"
	"github.com/kass/go-geo-rank/pkg/location"
	"github.com/kass/go-geo-rank/pkg/logger"
	"github.com/kass/go-geo-rank/pkg/models"
	"github.com/kass/go-geo-rank/pkg/rtree"
)

var (
	configFile    string
	logLevel      string
	indexFile     string
	directoryFile string
	asJSON        bool
	usePostGIS    bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "georank",
	Short: "Rank points of interest by distance and rating",
	Long: `georank computes great-circle distances and ranks points of interest
around an origin: the nearest record, or every record inside a radius
ordered by rating.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./georank.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&indexFile, "file", "f", "", "Index file path")
	rootCmd.PersistentFlags().StringVarP(&directoryFile, "directory", "d", "", "JSON or YAML points of interest file")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&usePostGIS, "postgis", false, "Query the PostGIS directory instead of the index")

	rootCmd.AddCommand(distanceCmd, nearestCmd, withinCmd, rankCmd)
	rootCmd.AddCommand(loadCmd, importCmd, exportCmd, serveCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger; flags override config
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if indexFile != "" {
		cfg.Index.File = indexFile
	}
	if directoryFile != "" {
		cfg.Index.Directory = directoryFile
	}

	log, err = logger.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openIndex builds the index from the directory file when one is configured,
// otherwise from the saved index file
func openIndex() (*rtree.POIIndex, error) {
	index := rtree.NewPOIIndex(rtree.WithLogger(log))

	if cfg.Index.Directory != "" {
		pois, err := directory.Load(cfg.Index.Directory)
		if err != nil {
			return nil, err
		}
		if err := index.IndexPOIs(pois); err != nil {
			return nil, fmt.Errorf("failed to index points of interest: %w", err)
		}
		log.Debug("directory indexed",
			zap.String("file", cfg.Index.Directory),
			zap.Int64("count", index.Count()))
		return index, nil
	}

	if err := index.LoadFromFile(cfg.Index.File); err != nil {
		return nil, err
	}
	return index, nil
}

var errNoOrigin = errors.New("no origin: pass --lat and --lon or set query.origin_lat/query.origin_lon")

// originProvider resolves where queries start: explicit flags first, then
// the configured default origin
func originProvider(cmd *cobra.Command) (location.Provider, error) {
	flags := cmd.Flags()
	latSet, lonSet := flags.Changed("lat"), flags.Changed("lon")

	switch {
	case latSet && lonSet:
		lat, err := flags.GetFloat64("lat")
		if err != nil {
			return nil, err
		}
		lon, err := flags.GetFloat64("lon")
		if err != nil {
			return nil, err
		}
		return location.NewStatic(models.GeoPoint{Lat: lat, Lon: lon}), nil
	case latSet || lonSet:
		return nil, errors.New("--lat and --lon must be given together")
	case cfg.Query.Origin != nil:
		return location.NewStatic(*cfg.Query.Origin), nil
	default:
		return nil, errNoOrigin
	}
}

func resolveOrigin(cmd *cobra.Command) (models.GeoPoint, error) {
	provider, err := originProvider(cmd)
	if err != nil {
		return models.GeoPoint{}, err
	}
	return provider.Current(contextOf(cmd))
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func addOriginFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("lat", 0, "Origin latitude")
	cmd.Flags().Float64("lon", 0, "Origin longitude")
}
