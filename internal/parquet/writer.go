package parquet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// Writer buffers cell rows into a Parquet file.
type Writer struct {
	file   *os.File
	writer *parquet.GenericWriter[CellRow]
	count  int64
}

// NewWriter creates path (and parent directories) for writing.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parquet directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}
	return &Writer{
		file:   f,
		writer: parquet.NewGenericWriter[CellRow](f),
	}, nil
}

func (w *Writer) Write(rows ...CellRow) error {
	if w.writer == nil {
		return fmt.Errorf("writer closed")
	}
	n, err := w.writer.Write(rows)
	w.count += int64(n)
	if err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	return nil
}

func (w *Writer) Count() int64 { return w.count }

// Close flushes the footer and closes the file.
func (w *Writer) Close() error {
	if w.writer == nil {
		return nil
	}
	err := w.writer.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.writer = nil
	if err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
