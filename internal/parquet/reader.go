// Package parquet exports and reads tiled H3 cells as Parquet rows.
package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/parquet-go/parquet-go"
	h3 "github.com/uber/h3-go/v4"
)

// CellRow is the on-disk schema of one tiled cell.
type CellRow struct {
	H3         string  `parquet:"h3"`
	Resolution int32   `parquet:"resolution"`
	Place      string  `parquet:"place"`
	Lat        float64 `parquet:"lat"`
	Lng        float64 `parquet:"lng"`
	AreaKm2    float64 `parquet:"area_km2"`
}

// ReaderOptions controls how Parquet rows are streamed.
type ReaderOptions struct {
	// BatchSize controls how many rows are fetched per request.
	BatchSize int
}

// Row is a decoded CellRow with its parsed cell. Err is set for rows whose
// h3 column does not hold a valid cell.
type Row struct {
	RowNumber int64
	Cell      h3.Cell
	CellRow
	Err error
}

// ErrInvalidCell is reported for rows whose h3 value is not a valid cell.
var ErrInvalidCell = errors.New("invalid H3 cell")

// Reader streams cell rows from a Parquet file.
type Reader struct {
	opts      ReaderOptions
	filePath  string
	file      *os.File
	reader    *parquet.GenericReader[CellRow]
	totalRows int64

	mu     sync.Mutex
	buffer []CellRow
	cursor int
	read   int64
	eof    bool
}

// NewReader opens a Parquet file written by Writer.
func NewReader(path string, opts ReaderOptions) (*Reader, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4096
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewGenericReader[CellRow](file)

	return &Reader{
		opts:      opts,
		filePath:  filepath.Clean(path),
		file:      file,
		reader:    reader,
		totalRows: reader.NumRows(),
	}, nil
}

// Close releases Parquet reader resources.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.reader = nil
	r.buffer = nil
	return err
}

// TotalRows returns the number of rows reported by the Parquet footer.
func (r *Reader) TotalRows() int64 {
	return r.totalRows
}

// Next returns the next decoded row, or io.EOF when all rows are consumed.
func (r *Reader) Next() (*Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader == nil {
		return nil, fmt.Errorf("reader closed")
	}

	if r.cursor >= len(r.buffer) {
		if err := r.fillBuffer(); err != nil {
			return nil, err
		}
	}

	raw := r.buffer[r.cursor]
	r.cursor++
	r.read++

	row := &Row{RowNumber: r.read, CellRow: raw}
	cell, err := stringToCell(raw.H3)
	if err != nil {
		row.Err = fmt.Errorf("row %d: %w", r.read, err)
		return row, nil
	}
	row.Cell = cell
	return row, nil
}

func (r *Reader) fillBuffer() error {
	if r.eof {
		return io.EOF
	}
	if cap(r.buffer) < r.opts.BatchSize {
		r.buffer = make([]CellRow, r.opts.BatchSize)
	}
	r.buffer = r.buffer[:r.opts.BatchSize]

	n, err := r.reader.Read(r.buffer)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("read parquet rows: %w", err)
		}
		r.eof = true
	}
	r.buffer = r.buffer[:n]
	r.cursor = 0
	if n == 0 {
		return io.EOF
	}
	return nil
}

func stringToCell(s string) (h3.Cell, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidCell)
	}
	cell := h3.Cell(h3.IndexFromString(strings.TrimPrefix(strings.ToLower(s), "0x")))
	if !cell.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCell, s)
	}
	return cell, nil
}
