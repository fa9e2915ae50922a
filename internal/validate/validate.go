// Package validate checks boundary files and exported cell files.
package validate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/cityhex/cityhex/internal/geom"
	"github.com/cityhex/cityhex/internal/hexgrid"
	parquetreader "github.com/cityhex/cityhex/internal/parquet"
)

// BoundaryReport describes a normalized boundary ring.
type BoundaryReport struct {
	Path           string
	GeometryType   string
	Points         int
	DistinctPoints int
	WasClosed      bool
	AreaKm2        float64
	CentroidLat    float64
	CentroidLng    float64
	Properties     map[string]any
}

// Boundary loads a GeoJSON file and runs it through the normalizer. The
// returned error wraps geom.ErrUnsupportedGeometry or geom.ErrInvalidPolygon.
func Boundary(path string, order geom.AxisOrder) (*BoundaryReport, error) {
	g, props, err := geom.ReadGeoJSON(path)
	if err != nil {
		return nil, err
	}

	rep := &BoundaryReport{Path: path, GeometryType: g.GeoJSONType(), Properties: props}
	ring, err := geom.Normalize(g, order)
	if err != nil {
		return rep, fmt.Errorf("normalize %s: %w", path, err)
	}

	rep.Points = len(ring)
	rep.DistinctPoints = geom.DistinctPoints(ring)
	rep.WasClosed = rawClosed(g)
	rep.AreaKm2 = hexgrid.RingAreaKm2(ring)
	rep.CentroidLat, rep.CentroidLng = geom.Centroid(ring)
	return rep, nil
}

func rawClosed(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return len(v) > 0 && v[0].Closed()
	case orb.MultiPolygon:
		return len(v) == 1 && len(v[0]) > 0 && v[0][0].Closed()
	}
	return false
}

// Options configures validation of a cells Parquet file.
type Options struct {
	InputPath       string
	MinResolution   int
	MaxResolution   int
	SampleLimit     int
	ReaderBatchSize int
}

// Issue captures an invalid row sample.
type Issue struct {
	RowNumber int64
	H3        string
	Message   string
}

// CellsReport summarises a cells Parquet file.
type CellsReport struct {
	TotalRows           int64
	ValidRows           int64
	InvalidCells        int64
	ResolutionFiltered  int64
	ResolutionHistogram map[int]int64
	Places              []string
	AreaKm2             float64
	InvalidSamples      []Issue
	Duration            time.Duration
}

// Resolutions returns the histogram keys in ascending order.
func (r *CellsReport) Resolutions() []int {
	keys := make([]int, 0, len(r.ResolutionHistogram))
	for res := range r.ResolutionHistogram {
		keys = append(keys, res)
	}
	sort.Ints(keys)
	return keys
}

// Cells scans every row of a cells Parquet file. Negative resolution bounds
// disable the corresponding filter.
func Cells(ctx context.Context, opts Options) (*CellsReport, error) {
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 10
	}
	if opts.ReaderBatchSize <= 0 {
		opts.ReaderBatchSize = 2048
	}

	reader, err := parquetreader.NewReader(opts.InputPath, parquetreader.ReaderOptions{BatchSize: opts.ReaderBatchSize})
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}
	defer reader.Close()

	res := &CellsReport{ResolutionHistogram: make(map[int]int64)}
	places := make(map[string]struct{})
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet row: %w", err)
		}

		res.TotalRows++

		if row.Err != nil {
			res.InvalidCells++
			if len(res.InvalidSamples) < opts.SampleLimit {
				res.InvalidSamples = append(res.InvalidSamples, Issue{
					RowNumber: row.RowNumber,
					H3:        row.H3,
					Message:   row.Err.Error(),
				})
			}
			continue
		}

		cellRes := row.Cell.Resolution()
		if opts.MinResolution >= 0 && cellRes < opts.MinResolution {
			res.ResolutionFiltered++
			continue
		}
		if opts.MaxResolution >= 0 && cellRes > opts.MaxResolution {
			res.ResolutionFiltered++
			continue
		}

		res.ValidRows++
		res.ResolutionHistogram[cellRes]++
		res.AreaKm2 += row.AreaKm2
		if row.Place != "" {
			places[row.Place] = struct{}{}
		}
	}

	for p := range places {
		res.Places = append(res.Places, p)
	}
	sort.Strings(res.Places)
	res.Duration = time.Since(start)
	return res, nil
}
