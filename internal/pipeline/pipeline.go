// Package pipeline runs boundary lookup, normalization, H3 tiling, cell
// rendering and map assembly as one linear pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/cityhex/cityhex/internal/boundary"
	"github.com/cityhex/cityhex/internal/geom"
	"github.com/cityhex/cityhex/internal/hexgrid"
	"github.com/cityhex/cityhex/internal/mapdoc"
	"github.com/cityhex/cityhex/internal/metrics"
	"github.com/cityhex/cityhex/internal/props"
	"github.com/cityhex/cityhex/internal/render"
)

// Resolver turns a place name into a boundary. *boundary.Loader satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*boundary.Boundary, error)
}

// Options describe a pipeline invocation.
type Options struct {
	Place      string
	Resolution int
	Output     string
	Resolver   Resolver

	Workers       int
	BoundaryLayer string
	CellLayer     string
	BoundaryStyle mapdoc.Style
	CellStyle     mapdoc.Style
	TooltipPrefix string
	Tiles         mapdoc.TileLayer

	DefaultCenter mapdoc.LatLng
	DefaultZoom   int
	BoundaryZoom  int
	CellsZoom     int

	Quantizer props.Quantizer
	// TagFilter picks the boundary tags listed in the boundary tooltip.
	TagFilter *props.Filter

	NDJSONPath  string
	ParquetPath string
	MetricsFile string

	Metrics *metrics.Provider
	Log     zerolog.Logger
}

// DefaultOptions returns the settings of the reference run: Краснодар at
// resolution 8 written to output_map.html.
func DefaultOptions() Options {
	return Options{
		Place:         "Краснодар",
		Resolution:    8,
		Output:        "output_map.html",
		BoundaryLayer: "Границы города",
		CellLayer:     "Гексагоны",
		BoundaryStyle: mapdoc.Style{FillColor: "#a1a1a1", FillOpacity: 0.2, Color: "red", Weight: 5, Opacity: 1},
		CellStyle:     mapdoc.Style{Color: "grey", Weight: 3, Opacity: 0.8},
		TooltipPrefix: "H3-гексагон: ",
		Tiles:         mapdoc.CartoDBPositron,
		DefaultCenter: mapdoc.LatLng{Lat: 55.751244, Lng: 37.618423},
		DefaultZoom:   10,
		BoundaryZoom:  12,
		CellsZoom:     14,
		TagFilter:     props.NewFilter(props.DefaultTags, nil),
		Log:           zerolog.Nop(),
	}
}

// Result reports what a run produced.
type Result struct {
	Document *mapdoc.Document
	Boundary *boundary.Boundary
	Ring     geom.Ring
	Cells    hexgrid.CellSet
	Stats    render.Stats

	// Fallback is set when no boundary was found and the default document
	// was written instead. FallbackReason holds the lookup error.
	Fallback       bool
	FallbackReason error

	OutputPath  string
	NDJSONPath  string
	ParquetPath string
	Duration    time.Duration
}

func validateOptions(opts Options) error {
	if strings.TrimSpace(opts.Output) == "" {
		return errors.New("output path is required")
	}
	if err := hexgrid.ValidateResolution(opts.Resolution); err != nil {
		return err
	}
	return nil
}

// Run resolves opts.Place and writes the map. A boundary that cannot be found
// (including transport failures) yields the default document and no error.
// Unsupported or invalid geometries abort the run before anything is written.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if opts.Resolver == nil {
		return nil, errors.New("boundary resolver is required")
	}
	start := time.Now()
	log := opts.Log.With().Str("place", opts.Place).Int("res", opts.Resolution).Logger()

	res := &Result{}
	var err error
	res.OutputPath, err = filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	done := opts.Metrics.Stage("load")
	b, err := opts.Resolver.Resolve(ctx, opts.Place)
	done()
	if err != nil {
		if !errors.Is(err, boundary.ErrNotFound) || ctx.Err() != nil {
			return nil, fmt.Errorf("resolve boundary: %w", err)
		}
		log.Warn().Err(err).Msg("no boundary data, writing default map")
		res.Fallback = true
		res.FallbackReason = err
		res.Document = FallbackDocument(opts)
		if err := finish(res, opts); err != nil {
			return nil, err
		}
		res.Duration = time.Since(start)
		return res, nil
	}
	res.Boundary = b

	done = opts.Metrics.Stage("normalize")
	res.Ring, err = geom.Normalize(b.Geometry, geom.LonLat)
	done()
	if err != nil {
		return nil, fmt.Errorf("normalize boundary %q: %w", b.Name, err)
	}

	done = opts.Metrics.Stage("tile")
	res.Cells, err = hexgrid.PolygonToCells(res.Ring, opts.Resolution)
	done()
	if err != nil {
		return nil, fmt.Errorf("tile boundary %q: %w", b.Name, err)
	}
	opts.Metrics.SetCells(len(res.Cells))
	log.Info().Int("cells", len(res.Cells)).Int("ring_points", len(res.Ring)).Msg("boundary tiled")

	lat, lng := geom.Centroid(res.Ring)
	doc := mapdoc.New(mapdoc.LatLng{Lat: lat, Lng: lng}, opts.BoundaryZoom, opts.Tiles)
	doc.Title = b.Name
	doc.AddLayer(BoundaryLayer(b, opts))
	cellLayer := doc.AddLayer(mapdoc.NewLayer(opts.CellLayer, opts.CellStyle))

	done = opts.Metrics.Stage("render")
	res.Stats, err = render.Cells(ctx, res.Cells, cellLayer, render.Options{
		Tooltip:       true,
		TooltipPrefix: opts.TooltipPrefix,
		Workers:       opts.Workers,
		Decorate:      func(p map[string]any) { p["place"] = b.Name },
	})
	done()
	if err != nil {
		return nil, fmt.Errorf("render cells: %w", err)
	}

	quantize(doc, opts.Quantizer)
	res.Document = doc

	if err := finish(res, opts); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	log.Info().Str("out", res.OutputPath).Dur("took", res.Duration).Msg("map written")
	return res, nil
}

// RunCells tiles a local boundary geometry in GeoJSON order and writes a map
// with the cell outlines only, centred on their average coordinate.
func RunCells(ctx context.Context, g orb.Geometry, opts Options) (*Result, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	start := time.Now()

	res := &Result{}
	var err error
	res.OutputPath, err = filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	res.Ring, err = geom.Normalize(g, geom.LonLat)
	if err != nil {
		return nil, fmt.Errorf("normalize boundary: %w", err)
	}
	res.Cells, err = hexgrid.PolygonToCells(res.Ring, opts.Resolution)
	if err != nil {
		return nil, fmt.Errorf("tile boundary: %w", err)
	}
	opts.Metrics.SetCells(len(res.Cells))

	layer := mapdoc.NewLayer(opts.CellLayer, opts.CellStyle)
	res.Stats, err = render.Cells(ctx, res.Cells, layer, render.Options{
		Tooltip:       true,
		TooltipPrefix: opts.TooltipPrefix,
		Workers:       opts.Workers,
		Decorate: func(p map[string]any) {
			if opts.Place != "" {
				p["place"] = opts.Place
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("render cells: %w", err)
	}

	doc := mapdoc.New(render.AverageCenter(layer, render.KrasnodarCenter), opts.CellsZoom, opts.Tiles)
	doc.LayerControl = false
	doc.AddLayer(layer)
	quantize(doc, opts.Quantizer)
	res.Document = doc

	if err := finish(res, opts); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

// FallbackDocument is the map written when no boundary exists: the default
// center and zoom with empty boundary and cell layers.
func FallbackDocument(opts Options) *mapdoc.Document {
	doc := mapdoc.New(opts.DefaultCenter, opts.DefaultZoom, opts.Tiles)
	doc.AddLayer(mapdoc.NewLayer(opts.BoundaryLayer, opts.BoundaryStyle))
	doc.AddLayer(mapdoc.NewLayer(opts.CellLayer, opts.CellStyle))
	return doc
}

// BoundaryLayer builds the boundary layer. The tooltip always starts with
// "name" and then lists every tag kept by opts.TagFilter that the boundary
// carries.
func BoundaryLayer(b *boundary.Boundary, opts Options) *mapdoc.Layer {
	layer := mapdoc.NewLayer(opts.BoundaryLayer, opts.BoundaryStyle)
	layer.TooltipFields = []string{"name"}
	layer.TooltipAliases = []string{"Город:"}
	for _, key := range opts.TagFilter.Present(b.Tags) {
		if key == "name" {
			continue
		}
		layer.TooltipFields = append(layer.TooltipFields, key)
		layer.TooltipAliases = append(layer.TooltipAliases, key+":")
	}
	layer.Add(mapdoc.Feature{
		ID:         fmt.Sprintf("%s/%d", b.Source, b.OSMID),
		Geometry:   orb.Clone(b.Geometry),
		Properties: b.Properties(),
	})
	return layer
}

func quantize(doc *mapdoc.Document, q props.Quantizer) {
	if q.Zero() {
		return
	}
	for _, l := range doc.Layers {
		for _, f := range l.Features {
			q.Geometry(f.Geometry)
			q.Properties(f.Properties)
		}
	}
}
