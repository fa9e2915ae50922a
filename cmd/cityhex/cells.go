package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cityhex/cityhex/internal/config"
	"github.com/cityhex/cityhex/internal/geom"
	"github.com/cityhex/cityhex/internal/metrics"
	"github.com/cityhex/cityhex/internal/pipeline"
)

func newCellsCommand(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cells",
		Short: "Tile a local GeoJSON boundary and write a cells-only map",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("in")
			c := cfg
			c.Resolution, _ = cmd.Flags().GetInt("res")
			c.Output, _ = cmd.Flags().GetString("out")
			c.Workers, _ = cmd.Flags().GetInt("workers")
			c.Place, _ = cmd.Flags().GetString("label")
			c.Quantize, _ = cmd.Flags().GetString("quantize")
			ndjsonPath, _ := cmd.Flags().GetString("ndjson")
			parquetPath, _ := cmd.Flags().GetString("parquet")

			g, _, err := geom.ReadGeoJSON(input)
			if err != nil {
				return err
			}

			log := commandLogger(cmd, "cells")
			prov := metrics.New(metrics.BuildInfo{Version: version, Commit: commit}, false)
			opts, err := pipelineOptions(c, log, prov)
			if err != nil {
				return err
			}
			opts.NDJSONPath = ndjsonPath
			opts.ParquetPath = parquetPath

			result, err := pipeline.RunCells(cmd.Context(), g, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✔ %d cells at resolution %d in %s\n", len(result.Cells), c.Resolution, formatDuration(result.Duration))
			fmt.Fprintf(out, "  center: %.6f, %.6f\n", result.Document.Center.Lat, result.Document.Center.Lng)
			fmt.Fprintf(out, "  map: %s (%s)\n", result.OutputPath, formatBytes(fileSize(result.OutputPath)))
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("in", "", "Boundary GeoJSON (Feature, FeatureCollection or Polygon)")
	cmd.Flags().Int("res", cfg.Resolution, "H3 resolution (0-15)")
	cmd.Flags().String("out", "hexagons_map.html", "Output HTML file path")
	cmd.Flags().Int("workers", cfg.Workers, "Cell rendering workers (default: runtime.NumCPU())")
	cmd.Flags().String("label", "", "Place name stored on every cell")
	cmd.Flags().String("quantize", cfg.Quantize, "Rounding directives (coord=0.000001,area_km2=0.01)")
	cmd.Flags().String("ndjson", "", "Also write cell outlines as NDJSON")
	cmd.Flags().String("parquet", "", "Also write tiled cells as Parquet")
	cmd.MarkFlagRequired("in")

	return cmd
}
