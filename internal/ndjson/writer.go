// Package ndjson streams map layers as newline-delimited GeoJSON features.
package ndjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/cityhex/cityhex/internal/mapdoc"
)

// Writer writes one GeoJSON feature per line. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
	count   int64
}

// NewWriter creates a writer that outputs to path, creating parent
// directories as needed.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create NDJSON directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create NDJSON file: %w", err)
	}

	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	return &Writer{file: f, buf: buf, encoder: enc}, nil
}

// Close flushes buffered lines and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.buf.Flush()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	w.encoder = nil
	return err
}

// Count returns how many features have been written.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// WriteFeature appends f as a single line. The layer name, when not empty,
// is stored in the "layer" property of the written copy.
func (w *Writer) WriteFeature(layer string, f mapdoc.Feature) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder == nil {
		return fmt.Errorf("writer closed")
	}
	if err := w.encoder.Encode(toGeoJSON(layer, f)); err != nil {
		return fmt.Errorf("encode feature: %w", err)
	}
	w.count++
	return nil
}

// WriteLayer writes every feature of layer in order.
func (w *Writer) WriteLayer(layer *mapdoc.Layer) error {
	if layer == nil {
		return nil
	}
	for _, f := range layer.Features {
		if err := w.WriteFeature(layer.Name, f); err != nil {
			return err
		}
	}
	return nil
}

func toGeoJSON(layer string, f mapdoc.Feature) *geojson.Feature {
	payload := geojson.NewFeature(f.Geometry)
	for k, v := range f.Properties {
		payload.Properties[k] = v
	}
	if layer != "" {
		payload.Properties["layer"] = layer
	}
	if f.ID != "" {
		payload.ID = f.ID
	}
	return payload
}
