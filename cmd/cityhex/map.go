package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cityhex/cityhex/internal/boundary"
	"github.com/cityhex/cityhex/internal/cache"
	"github.com/cityhex/cityhex/internal/config"
	"github.com/cityhex/cityhex/internal/httpclient"
	"github.com/cityhex/cityhex/internal/mapdoc"
	"github.com/cityhex/cityhex/internal/metrics"
	"github.com/cityhex/cityhex/internal/osm"
	"github.com/cityhex/cityhex/internal/pipeline"
	"github.com/cityhex/cityhex/internal/props"
)

func newMapCommand(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Fetch a city boundary, tile it with H3 cells and write an HTML map",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg
			c.Place, _ = cmd.Flags().GetString("place")
			c.Resolution, _ = cmd.Flags().GetInt("res")
			c.Output, _ = cmd.Flags().GetString("out")
			c.Country, _ = cmd.Flags().GetString("country")
			c.AdminLevel, _ = cmd.Flags().GetString("admin-level")
			c.OverpassURL, _ = cmd.Flags().GetString("overpass-url")
			c.NominatimURL, _ = cmd.Flags().GetString("nominatim-url")
			c.HTTPTimeout, _ = cmd.Flags().GetDuration("timeout")
			c.Fallback, _ = cmd.Flags().GetBool("geocode-fallback")
			noCache, _ := cmd.Flags().GetBool("no-cache")
			c.Cache.Enabled = c.Cache.Enabled && !noCache
			c.Cache.RedisAddr, _ = cmd.Flags().GetString("redis")
			c.Workers, _ = cmd.Flags().GetInt("workers")
			tags, _ := cmd.Flags().GetString("tags")
			c.TagKeys = props.ParseList(tags)
			c.Quantize, _ = cmd.Flags().GetString("quantize")
			ndjsonPath, _ := cmd.Flags().GetString("ndjson")
			parquetPath, _ := cmd.Flags().GetString("parquet")
			metricsFile, _ := cmd.Flags().GetString("metrics-file")

			ctx := cmd.Context()
			log := commandLogger(cmd, "map")
			prov := metrics.New(metrics.BuildInfo{Version: version, Commit: commit}, false)

			resolver, cleanup, err := newResolver(ctx, c, log, prov)
			if err != nil {
				return err
			}
			defer cleanup()

			opts, err := pipelineOptions(c, log, prov)
			if err != nil {
				return err
			}
			opts.Resolver = resolver
			opts.NDJSONPath = ndjsonPath
			opts.ParquetPath = parquetPath
			opts.MetricsFile = metricsFile

			result, err := pipeline.Run(ctx, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Fallback {
				fmt.Fprintf(out, "⚠ no boundary found for %q (%v); default map written\n", c.Place, result.FallbackReason)
			} else {
				fmt.Fprintf(out, "✔ map written in %s\n", formatDuration(result.Duration))
				fmt.Fprintf(out, "  boundary: %s (%s, admin_level %s)\n", result.Boundary.Name, result.Boundary.Source, result.Boundary.AdminLevel)
				fmt.Fprintf(out, "  cells: %d at resolution %d (%d outline points)\n", len(result.Cells), c.Resolution, result.Stats.Points)
			}
			fmt.Fprintf(out, "  map: %s (%s)\n", result.OutputPath, formatBytes(fileSize(result.OutputPath)))
			if result.NDJSONPath != "" {
				fmt.Fprintf(out, "  ndjson: %s\n", result.NDJSONPath)
			}
			if result.ParquetPath != "" {
				fmt.Fprintf(out, "  parquet: %s\n", result.ParquetPath)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("place", cfg.Place, "City name as written in OpenStreetMap")
	cmd.Flags().Int("res", cfg.Resolution, "H3 resolution (0-15)")
	cmd.Flags().String("out", cfg.Output, "Output HTML file path")
	cmd.Flags().String("country", cfg.Country, "Country used to scope the search (empty disables)")
	cmd.Flags().String("admin-level", cfg.AdminLevel, "OSM admin_level of the city boundary")
	cmd.Flags().String("overpass-url", cfg.OverpassURL, "Overpass API interpreter URL")
	cmd.Flags().String("nominatim-url", cfg.NominatimURL, "Nominatim search URL")
	cmd.Flags().Duration("timeout", cfg.HTTPTimeout, "HTTP timeout per request")
	cmd.Flags().Bool("geocode-fallback", cfg.Fallback, "Fall back to Nominatim when no relation matches")
	cmd.Flags().Bool("no-cache", false, "Disable the response cache")
	cmd.Flags().String("redis", cfg.Cache.RedisAddr, "Redis address for a shared response cache")
	cmd.Flags().Int("workers", cfg.Workers, "Cell rendering workers (default: runtime.NumCPU())")
	cmd.Flags().String("tags", strings.Join(cfg.TagKeys, ","), "Comma-separated OSM tags kept on the boundary feature")
	cmd.Flags().String("quantize", cfg.Quantize, "Rounding directives (coord=0.000001,area_km2=0.01)")
	cmd.Flags().String("ndjson", "", "Also write map features as NDJSON")
	cmd.Flags().String("parquet", "", "Also write tiled cells as Parquet")
	cmd.Flags().String("metrics-file", "", "Write run metrics in Prometheus textfile format")

	return cmd
}

// newResolver wires the OSM client, response caches and boundary loader.
func newResolver(ctx context.Context, c config.Config, log zerolog.Logger, prov *metrics.Provider) (*boundary.Loader, func(), error) {
	client := &osm.Client{
		HTTP:            httpclient.NewOutbound(c.HTTPTimeout),
		UserAgent:       c.UserAgent,
		OverpassURL:     c.OverpassURL,
		NominatimURL:    c.NominatimURL,
		OverpassTimeout: c.OverpassTimeout,
		Log:             log.With().Str("component", "osm").Logger(),
	}

	cleanup := func() {}
	if c.Cache.Enabled {
		layers := []cache.Named{{Name: "memory", Store: cache.NewMemory(c.Cache.Size, c.Cache.TTL)}}
		if c.Cache.RedisAddr != "" {
			rc, err := cache.NewRedis(ctx, c.Cache.RedisAddr, c.Cache.TTL, cache.WithDB(c.Cache.RedisDB))
			if err != nil {
				log.Warn().Err(err).Str("addr", c.Cache.RedisAddr).Msg("redis cache unavailable, continuing without it")
			} else {
				layers = append(layers, cache.Named{Name: "redis", Store: rc})
				cleanup = func() { _ = rc.Close() }
			}
		}
		client.Cache = cache.NewTiered(prov, layers...)
	}

	opts := []boundary.Option{
		boundary.WithCountry(c.Country),
		boundary.WithAdminLevel(c.AdminLevel),
		boundary.WithLogger(log.With().Str("component", "boundary").Logger()),
		boundary.WithRecorder(prov),
	}
	if len(c.TagKeys) > 0 {
		opts = append(opts, boundary.WithTagFilter(props.NewFilter(c.TagKeys, nil)))
	}
	if !c.Fallback {
		opts = append(opts, boundary.WithoutFallback())
	}
	return boundary.NewLoader(client, client, opts...), cleanup, nil
}

func pipelineOptions(c config.Config, log zerolog.Logger, prov *metrics.Provider) (pipeline.Options, error) {
	q, err := props.Parse(c.Quantize)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("parse quantize directives: %w", err)
	}

	opts := pipeline.DefaultOptions()
	opts.Place = c.Place
	opts.Resolution = c.Resolution
	opts.Output = c.Output
	opts.Workers = c.Workers
	opts.Quantizer = q
	if len(c.TagKeys) > 0 {
		opts.TagFilter = props.NewFilter(c.TagKeys, nil)
	}
	opts.BoundaryStyle = mapdoc.Style{
		FillColor:   c.Style.BoundaryFill,
		FillOpacity: opts.BoundaryStyle.FillOpacity,
		Color:       c.Style.BoundaryStroke,
		Weight:      c.Style.BoundaryWeight,
		Opacity:     opts.BoundaryStyle.Opacity,
	}
	opts.CellStyle = mapdoc.Style{
		Color:   c.Style.CellStroke,
		Weight:  c.Style.CellWeight,
		Opacity: c.Style.CellOpacity,
	}
	opts.Metrics = prov
	opts.Log = log
	return opts, nil
}
