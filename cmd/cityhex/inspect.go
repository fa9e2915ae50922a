package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cityhex/cityhex/internal/validate"
)

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarise a cells Parquet file written by map --parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("in")
			minRes, _ := cmd.Flags().GetInt("min-res")
			maxRes, _ := cmd.Flags().GetInt("max-res")
			sampleLimit, _ := cmd.Flags().GetInt("sample")

			res, err := validate.Cells(cmd.Context(), validate.Options{
				InputPath:     input,
				MinResolution: minRes,
				MaxResolution: maxRes,
				SampleLimit:   sampleLimit,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", input)
			fmt.Fprintf(out, "  rows: %d valid: %d invalid: %d filtered: %d\n", res.TotalRows, res.ValidRows, res.InvalidCells, res.ResolutionFiltered)
			fmt.Fprintf(out, "  covered area: %.2f km²\n", res.AreaKm2)
			if len(res.Places) > 0 {
				fmt.Fprintf(out, "  places:\n")
				for _, p := range res.Places {
					fmt.Fprintf(out, "    %s\n", p)
				}
			}
			if keys := res.Resolutions(); len(keys) > 0 {
				fmt.Fprintf(out, "  resolutions:\n")
				for _, r := range keys {
					fmt.Fprintf(out, "    r%d: %d\n", r, res.ResolutionHistogram[r])
				}
			}
			fmt.Fprintf(out, "  duration: %s\n", formatDuration(res.Duration))

			if res.InvalidCells > 0 {
				fmt.Fprintf(out, "  invalid samples:\n")
				for _, sample := range res.InvalidSamples {
					fmt.Fprintf(out, "    row %d (%s): %s\n", sample.RowNumber, sample.H3, sample.Message)
				}
				if int64(len(res.InvalidSamples)) < res.InvalidCells {
					fmt.Fprintf(out, "    ... %d more\n", res.InvalidCells-int64(len(res.InvalidSamples)))
				}
				return fmt.Errorf("inspection failed: invalid H3 cells detected")
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("in", "", "Cells Parquet file")
	cmd.Flags().Int("min-res", -1, "Minimum allowed H3 resolution")
	cmd.Flags().Int("max-res", -1, "Maximum allowed H3 resolution")
	cmd.Flags().Int("sample", 5, "Number of invalid samples to display")
	cmd.MarkFlagRequired("in")

	return cmd
}
