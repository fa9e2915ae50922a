package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cityhex/cityhex/internal/geom"
	"github.com/cityhex/cityhex/internal/validate"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that GeoJSON boundary files can be tiled",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, _ := cmd.Flags().GetStringArray("in")
			if len(inputs) == 0 {
				return fmt.Errorf("no input files provided")
			}
			latLon, _ := cmd.Flags().GetBool("lat-lon")
			order := geom.LonLat
			if latLon {
				order = geom.LatLon
			}

			failed := 0
			out := cmd.OutOrStdout()
			for _, path := range inputs {
				rep, err := validate.Boundary(path, order)
				fmt.Fprintf(out, "%s\n", path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "  ✘ %v\n", err)
					continue
				}
				fmt.Fprintf(out, "  type: %s (axis order %s)\n", rep.GeometryType, order)
				fmt.Fprintf(out, "  ring: %d points, %d distinct, closed in source: %t\n", rep.Points, rep.DistinctPoints, rep.WasClosed)
				fmt.Fprintf(out, "  area: %.2f km²\n", rep.AreaKm2)
				fmt.Fprintf(out, "  centroid: %.6f, %.6f\n", rep.CentroidLat, rep.CentroidLng)
				if name, ok := rep.Properties["name"]; ok {
					fmt.Fprintf(out, "  name: %v\n", name)
				}
			}

			if failed > 0 {
				return fmt.Errorf("validation failed: %d of %d boundaries cannot be tiled", failed, len(inputs))
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().StringArray("in", nil, "Boundary GeoJSON files")
	cmd.Flags().Bool("lat-lon", false, "Coordinates are stored as (lat, lon) instead of GeoJSON order")
	cmd.MarkFlagRequired("in")

	return cmd
}
