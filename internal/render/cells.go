// Package render turns H3 cell sets into styled outline features on a map layer.
package render

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/cityhex/cityhex/internal/hexgrid"
	"github.com/cityhex/cityhex/internal/mapdoc"
)

// KrasnodarCenter is used when no outline coordinates are available.
var KrasnodarCenter = mapdoc.LatLng{Lat: 45.035470, Lng: 38.975313}

// Options configures cell rendering.
type Options struct {
	// Tooltip attaches "<TooltipPrefix><cell id>" to every outline.
	Tooltip       bool
	TooltipPrefix string
	// Workers > 1 computes outlines concurrently. Layer mutation stays serial.
	Workers int
	// Decorate, when set, may adjust the properties of each feature before it
	// is appended. It is called from worker goroutines.
	Decorate func(props map[string]any)
}

// Stats summarises a rendering pass.
type Stats struct {
	Cells    int
	Features int
	Points   int
}

type outlineResult struct {
	Seq     int
	Feature mapdoc.Feature
	Err     error
}

// Cells appends one closed outline per cell to layer. An empty set leaves the
// layer untouched. cells is never modified.
func Cells(ctx context.Context, cells hexgrid.CellSet, layer *mapdoc.Layer, opts Options) (Stats, error) {
	stats := Stats{Cells: len(cells)}
	if len(cells) == 0 {
		return stats, nil
	}
	if layer == nil {
		return stats, fmt.Errorf("render: nil layer")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(cells) {
		workers = len(cells)
	}

	if workers == 1 {
		for i, c := range cells {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			res := buildOutline(i, c, opts)
			if res.Err != nil {
				return stats, res.Err
			}
			appendFeature(layer, res.Feature, &stats)
		}
		return stats, nil
	}

	return renderParallel(ctx, cells, layer, opts, workers, stats)
}

func renderParallel(ctx context.Context, cells hexgrid.CellSet, layer *mapdoc.Layer, opts Options, workers int, stats Stats) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		seq  int
		cell h3.Cell
	}
	jobs := make(chan job)
	results := make(chan outlineResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-jobs:
					if !ok {
						return
					}
					select {
					case results <- buildOutline(j.seq, j.cell, opts):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, c := range cells {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{seq: i, cell: c}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// results arrive out of order; append strictly by sequence number
	expected := 0
	pending := make(map[int]outlineResult)
	for res := range results {
		if res.Err != nil {
			cancel()
			wg.Wait()
			return stats, res.Err
		}
		pending[res.Seq] = res
		for {
			next, ok := pending[expected]
			if !ok {
				break
			}
			delete(pending, expected)
			expected++
			appendFeature(layer, next.Feature, &stats)
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if expected != len(cells) {
		return stats, fmt.Errorf("incomplete rendering: %d of %d cells", expected, len(cells))
	}
	return stats, nil
}

func appendFeature(layer *mapdoc.Layer, f mapdoc.Feature, stats *Stats) {
	layer.Add(f)
	stats.Features++
	if ls, ok := f.Geometry.(orb.LineString); ok {
		stats.Points += len(ls)
	}
}

func buildOutline(seq int, cell h3.Cell, opts Options) outlineResult {
	outline, err := hexgrid.Outline(cell)
	if err != nil {
		return outlineResult{Seq: seq, Err: fmt.Errorf("outline %s: %w", cell.String(), err)}
	}

	id := cell.String()
	props := map[string]any{
		"h3":         id,
		"resolution": cell.Resolution(),
		"area_km2":   hexgrid.RingAreaKm2(outline),
	}
	if opts.Decorate != nil {
		opts.Decorate(props)
	}

	f := mapdoc.Feature{
		ID:         id,
		Geometry:   orb.LineString(outline.Orb()),
		Properties: props,
	}
	if opts.Tooltip {
		f.Tooltip = opts.TooltipPrefix + id
	}
	return outlineResult{Seq: seq, Feature: f}
}

// AverageCenter averages every outline coordinate on layer. An empty layer
// yields fallback.
func AverageCenter(layer *mapdoc.Layer, fallback mapdoc.LatLng) mapdoc.LatLng {
	var sumLat, sumLng float64
	n := 0
	if layer != nil {
		for _, f := range layer.Features {
			for _, p := range points(f.Geometry) {
				sumLng += p[0]
				sumLat += p[1]
				n++
			}
		}
	}
	if n == 0 {
		return fallback
	}
	return mapdoc.LatLng{Lat: sumLat / float64(n), Lng: sumLng / float64(n)}
}

func points(g orb.Geometry) []orb.Point {
	switch v := g.(type) {
	case orb.LineString:
		return v
	case orb.Ring:
		return v
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		return v[0]
	case orb.Point:
		return []orb.Point{v}
	default:
		return nil
	}
}
