package parquet

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	h3 "github.com/uber/h3-go/v4"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 45.03547, Lng: 38.975313}, 8)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "cells.parquet")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	rows := []CellRow{
		{H3: cell.String(), Resolution: 8, Place: "Краснодар", Lat: 45.03, Lng: 38.97, AreaKm2: 0.73},
		{H3: "not-a-cell", Resolution: 8, Place: "Краснодар"},
	}
	if err := w.Write(rows...); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.Count() != 2 {
		t.Fatalf("Count=%d want 2", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Write(rows[0]); err == nil {
		t.Fatalf("write after close must fail")
	}

	r, err := NewReader(path, ReaderOptions{BatchSize: 1})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if r.TotalRows() != 2 {
		t.Fatalf("TotalRows=%d want 2", r.TotalRows())
	}

	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Err != nil || first.Cell != cell || first.Place != "Краснодар" || first.Resolution != 8 {
		t.Fatalf("unexpected first row: %+v", first)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !errors.Is(second.Err, ErrInvalidCell) || second.RowNumber != 2 {
		t.Fatalf("second row should carry ErrInvalidCell: %+v", second)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

func TestNewReader_MissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "absent.parquet"), ReaderOptions{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
