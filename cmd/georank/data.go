package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-rank/pkg/directory"
	"github.com/kass/go-geo-rank/pkg/postgis"
	"github.com/kass/go-geo-rank/pkg/rtree"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Build the index file from a points of interest directory",
	Long: `Read a JSON or YAML points of interest file, validate every record and
save an R-Tree index that later commands load with --file.`,
	RunE: runLoad,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a points of interest directory into PostGIS",
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the indexed points of interest to a directory file",
	Long: `Write every point of interest from the index, the directory file or
PostGIS (with --postgis) to a JSON or YAML file chosen by the --out extension.
The output can be read back with --directory.`,
	RunE: runExport,
}

var (
	truncate   bool
	exportPath string
)

func init() {
	importCmd.Flags().BoolVar(&truncate, "truncate", false, "Remove existing points of interest first")

	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "Output file (.json, .yaml or .yml)")
	_ = exportCmd.MarkFlagRequired("out")
}

var errNoDirectory = errors.New("no directory file: pass --directory or set index.directory")

func runLoad(cmd *cobra.Command, args []string) error {
	if cfg.Index.Directory == "" {
		return errNoDirectory
	}

	start := time.Now()
	pois, err := directory.Load(cfg.Index.Directory)
	if err != nil {
		return err
	}

	index := rtree.NewPOIIndex(rtree.WithLogger(log))
	if err := index.IndexPOIs(pois); err != nil {
		return fmt.Errorf("failed to index points of interest: %w", err)
	}
	loadTime := time.Since(start)

	if dir := filepath.Dir(cfg.Index.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	if err := index.SaveToFile(cfg.Index.File); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	return newPrinter(cmd.OutOrStdout(), asJSON).Stats("Index built",
		[]string{"records", "load_time", "file"},
		map[string]interface{}{
			"records":   index.Count(),
			"load_time": loadTime.Round(time.Millisecond).String(),
			"file":      cfg.Index.File,
		})
}

func runImport(cmd *cobra.Command, args []string) error {
	if cfg.Index.Directory == "" {
		return errNoDirectory
	}

	pois, err := directory.Load(cfg.Index.Directory)
	if err != nil {
		return err
	}

	ctx := contextOf(cmd)
	db, err := postgis.NewDirectory(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	if truncate {
		if err := db.Truncate(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := db.BulkInsert(ctx, pois); err != nil {
		return err
	}
	elapsed := time.Since(start)

	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}
	stats["imported"] = len(pois)
	stats["elapsed"] = elapsed.Round(time.Millisecond).String()

	return newPrinter(cmd.OutOrStdout(), asJSON).Stats("PostGIS import",
		[]string{"imported", "elapsed", "row_count", "table_size", "index_size"}, stats)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	if dir := filepath.Dir(exportPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := directory.Save(exportPath, pois); err != nil {
		return err
	}

	return newPrinter(cmd.OutOrStdout(), asJSON).Stats("Directory exported",
		[]string{"records", "file"},
		map[string]interface{}{
			"records": len(pois),
			"file":    exportPath,
		})
}
