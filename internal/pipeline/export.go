package pipeline

import (
	"fmt"
	"path/filepath"

	h3 "github.com/uber/h3-go/v4"

	"github.com/cityhex/cityhex/internal/hexgrid"
	"github.com/cityhex/cityhex/internal/ndjson"
	"github.com/cityhex/cityhex/internal/parquet"
)

// finish writes the HTML document and the optional side outputs.
func finish(res *Result, opts Options) error {
	done := opts.Metrics.Stage("save")
	err := res.Document.Save(res.OutputPath)
	done()
	if err != nil {
		return err
	}
	for _, l := range res.Document.Layers {
		opts.Metrics.SetLayerFeatures(l.Name, l.Len())
	}

	if opts.NDJSONPath != "" && !res.Fallback {
		path, err := filepath.Abs(opts.NDJSONPath)
		if err != nil {
			return fmt.Errorf("resolve ndjson path: %w", err)
		}
		if err := writeNDJSON(path, res, opts); err != nil {
			return err
		}
		res.NDJSONPath = path
	}

	if opts.ParquetPath != "" && !res.Fallback {
		path, err := filepath.Abs(opts.ParquetPath)
		if err != nil {
			return fmt.Errorf("resolve parquet path: %w", err)
		}
		if err := writeParquet(path, res, opts); err != nil {
			return err
		}
		res.ParquetPath = path
	}

	if opts.MetricsFile != "" && opts.Metrics != nil {
		if err := opts.Metrics.WriteTextfile(opts.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}

func writeNDJSON(path string, res *Result, opts Options) (err error) {
	w, err := ndjson.NewWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close NDJSON writer: %w", cerr)
		}
		if err == nil {
			opts.Log.Debug().Str("path", path).Int64("features", w.Count()).Msg("ndjson written")
		}
	}()
	for _, l := range res.Document.Layers {
		if err := w.WriteLayer(l); err != nil {
			return fmt.Errorf("write layer %q: %w", l.Name, err)
		}
	}
	return nil
}

func writeParquet(path string, res *Result, opts Options) (err error) {
	place := opts.Place
	if res.Boundary != nil && res.Boundary.Name != "" {
		place = res.Boundary.Name
	}

	w, err := parquet.NewWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err == nil {
			opts.Log.Debug().Str("path", path).Int64("rows", w.Count()).Msg("parquet written")
		}
	}()

	rows := make([]parquet.CellRow, 0, len(res.Cells))
	for _, c := range res.Cells {
		row, err := cellRow(c, place)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	return w.Write(rows...)
}

func cellRow(c h3.Cell, place string) (parquet.CellRow, error) {
	center, err := c.LatLng()
	if err != nil {
		return parquet.CellRow{}, fmt.Errorf("cell %s center: %w", c, err)
	}
	area, err := hexgrid.AreaKm2(c)
	if err != nil {
		return parquet.CellRow{}, err
	}
	return parquet.CellRow{
		H3:         c.String(),
		Resolution: int32(c.Resolution()),
		Place:      place,
		Lat:        center.Lat,
		Lng:        center.Lng,
		AreaKm2:    area,
	}, nil
}
