package validate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/cityhex/cityhex/internal/geom"
	parquetwriter "github.com/cityhex/cityhex/internal/parquet"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestBoundary_OpenPolygon(t *testing.T) {
	path := writeFile(t, "open.geojson", `{"type":"Feature","properties":{"name":"Краснодар"},
		"geometry":{"type":"Polygon","coordinates":[[[38.9,45.0],[39.1,45.0],[39.1,45.1],[38.9,45.1]]]}}`)

	rep, err := Boundary(path, geom.LonLat)
	if err != nil {
		t.Fatalf("Boundary: %v", err)
	}
	if rep.GeometryType != "Polygon" || rep.WasClosed {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Points != 5 || rep.DistinctPoints != 4 {
		t.Fatalf("points=%d distinct=%d", rep.Points, rep.DistinctPoints)
	}
	if rep.CentroidLat < 45.0 || rep.CentroidLat > 45.1 || rep.CentroidLng < 38.9 || rep.CentroidLng > 39.1 {
		t.Fatalf("centroid %v,%v outside polygon", rep.CentroidLat, rep.CentroidLng)
	}
	if rep.AreaKm2 <= 0 || rep.Properties["name"] != "Краснодар" {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestBoundary_Errors(t *testing.T) {
	line := writeFile(t, "line.geojson", `{"type":"LineString","coordinates":[[38.9,45.0],[39.1,45.0]]}`)
	if _, err := Boundary(line, geom.LonLat); !errors.Is(err, geom.ErrUnsupportedGeometry) {
		t.Fatalf("want ErrUnsupportedGeometry, got %v", err)
	}

	twoPoint := writeFile(t, "two.geojson", `{"type":"Polygon","coordinates":[[[38.9,45.0],[39.1,45.0]]]}`)
	rep, err := Boundary(twoPoint, geom.LonLat)
	if !errors.Is(err, geom.ErrInvalidPolygon) {
		t.Fatalf("want ErrInvalidPolygon, got %v", err)
	}
	if rep == nil || rep.GeometryType != "Polygon" {
		t.Fatalf("partial report expected on normalization error: %+v", rep)
	}
}

func TestCells(t *testing.T) {
	c8, _ := h3.LatLngToCell(h3.LatLng{Lat: 45.03, Lng: 38.97}, 8)
	c9, _ := h3.LatLngToCell(h3.LatLng{Lat: 45.03, Lng: 38.97}, 9)

	path := filepath.Join(t.TempDir(), "cells.parquet")
	w, err := parquetwriter.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(
		parquetwriter.CellRow{H3: c8.String(), Resolution: 8, Place: "Краснодар", AreaKm2: 0.7},
		parquetwriter.CellRow{H3: c9.String(), Resolution: 9, Place: "Сочи", AreaKm2: 0.1},
		parquetwriter.CellRow{H3: "zzz", Place: "Краснодар"},
	); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rep, err := Cells(context.Background(), Options{InputPath: path, MinResolution: -1, MaxResolution: -1})
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if rep.TotalRows != 3 || rep.ValidRows != 2 || rep.InvalidCells != 1 || len(rep.InvalidSamples) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := rep.Resolutions(); len(got) != 2 || got[0] != 8 || got[1] != 9 {
		t.Fatalf("Resolutions=%v", got)
	}
	if len(rep.Places) != 2 || rep.Places[0] != "Краснодар" {
		t.Fatalf("Places=%v", rep.Places)
	}

	filtered, err := Cells(context.Background(), Options{InputPath: path, MinResolution: 9, MaxResolution: -1})
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if filtered.ValidRows != 1 || filtered.ResolutionFiltered != 1 {
		t.Fatalf("unexpected filtered report: %+v", filtered)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Cells(ctx, Options{InputPath: path}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
