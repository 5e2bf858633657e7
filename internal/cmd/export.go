package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weathertiles/core/internal/engine"
	"github.com/weathertiles/core/internal/tile"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render a layer/style over a zoom range into a single MBTiles file",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("layer", "", "Layer ID to export")
	exportCmd.Flags().String("style", "", "Style ID to export")
	exportCmd.Flags().String("tile-matrix-set", "WebMercatorQuad", "Tile matrix set ID")
	exportCmd.Flags().Int("min-zoom", 0, "Minimum zoom level")
	exportCmd.Flags().Int("max-zoom", 4, "Maximum zoom level")
	exportCmd.Flags().String("out", "export.mbtiles", "Output MBTiles path")

	mustBind := func(key, name string) {
		if err := viper.BindPFlag(key, exportCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("export.layer", "layer")
	mustBind("export.style", "style")
	mustBind("export.tile_matrix_set", "tile-matrix-set")
	mustBind("export.min_zoom", "min-zoom")
	mustBind("export.max_zoom", "max-zoom")
	mustBind("export.out", "out")
}

func runExport(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	layerID := viper.GetString("export.layer")
	styleID := viper.GetString("export.style")
	if layerID == "" || styleID == "" {
		return fmt.Errorf("--layer and --style are required")
	}
	tms := viper.GetString("export.tile_matrix_set")
	minZoom := viper.GetInt("export.min_zoom")
	maxZoom := viper.GetInt("export.max_zoom")
	outPath := viper.GetString("export.out")

	ctx := context.Background()
	e, err := buildEngine(ctx, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	dw, err := engine.NewDumpWriter(outPath, layerID, styleID, minZoom, maxZoom)
	if err != nil {
		return fmt.Errorf("open dump writer: %w", err)
	}

	fps := enumerateFingerprints(layerID, styleID, tms, minZoom, maxZoom)
	logger.Info("exporting tiles", "layer", layerID, "style", styleID, "count", len(fps), "out", outPath)

	start := time.Now()
	n, err := dw.Dump(ctx, e, fps)
	if err != nil {
		dw.Close()
		return fmt.Errorf("dump tiles (%d written): %w", n, err)
	}
	logger.Info("export complete", "written", n, "elapsed", time.Since(start))

	if err := dw.Close(); err != nil {
		return fmt.Errorf("close dump writer: %w", err)
	}
	if err := engine.VerifyExport(outPath, fps); err != nil {
		return fmt.Errorf("verify export: %w", err)
	}
	logger.Info("export verified", "tiles", len(fps))
	return nil
}

// enumerateFingerprints lists every tile in [minZoom, maxZoom] for the given
// layer/style/tileMatrixSet, queried at the latest available time.
func enumerateFingerprints(layerID, styleID, tms string, minZoom, maxZoom int) []tile.Fingerprint {
	var fps []tile.Fingerprint
	now := time.Now()
	for z := minZoom; z <= maxZoom; z++ {
		n := uint32(1) << uint32(z)
		for row := uint32(0); row < n; row++ {
			for col := uint32(0); col < n; col++ {
				fps = append(fps, tile.Fingerprint{
					LayerID:         layerID,
					StyleID:         styleID,
					TileMatrixSetID: tms,
					Zoom:            uint32(z),
					Col:             col,
					Row:             row,
					Time:            tile.Latest(now),
				})
			}
		}
	}
	return fps
}
