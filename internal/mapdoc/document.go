// Package mapdoc models an interactive web map (base tiles plus styled vector
// layers) and serialises it as a self-contained Leaflet HTML page.
package mapdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LatLng is a map position in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// TileLayer describes the base raster tiles.
type TileLayer struct {
	Name        string
	URL         string
	Attribution string
	MaxZoom     int
}

// CartoDBPositron is the default light base map.
var CartoDBPositron = TileLayer{
	Name:        "CartoDB positron",
	URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
	Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
	MaxZoom:     20,
}

// Style holds the Leaflet path options applied to every feature of a layer.
type Style struct {
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity"`
	Color       string  `json:"color,omitempty"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
}

// Feature is one geometry on a layer. Geometries are in GeoJSON (lon, lat) order.
type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Properties map[string]any
	Tooltip    string
}

// Layer is a named, stylable group of features with its own toggle in the
// layer control.
type Layer struct {
	Name           string
	Show           bool
	Style          Style
	TooltipFields  []string
	TooltipAliases []string
	Features       []Feature
}

// NewLayer returns a visible, empty layer.
func NewLayer(name string, style Style) *Layer {
	return &Layer{Name: name, Show: true, Style: style}
}

// Add appends f to the layer.
func (l *Layer) Add(f Feature) {
	l.Features = append(l.Features, f)
}

// Len returns the number of features on the layer.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// FeatureCollection converts the layer into GeoJSON.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Features {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		if f.Tooltip != "" {
			gf.Properties["tooltip"] = f.Tooltip
		}
		if f.ID != "" {
			gf.ID = f.ID
		}
		fc.Append(gf)
	}
	return fc
}

// Document is the top-level map artifact.
type Document struct {
	Title        string
	Center       LatLng
	Zoom         int
	Tiles        TileLayer
	LayerControl bool
	Layers       []*Layer
}

// New creates a document centred on center with the given base tiles.
func New(center LatLng, zoom int, tiles TileLayer) *Document {
	if tiles.URL == "" {
		tiles = CartoDBPositron
	}
	return &Document{
		Title:        "cityhex",
		Center:       center,
		Zoom:         zoom,
		Tiles:        tiles,
		LayerControl: true,
	}
}

// AddLayer appends l to the document and returns it.
func (d *Document) AddLayer(l *Layer) *Layer {
	d.Layers = append(d.Layers, l)
	return l
}

// Layer returns the layer with the given name, or nil.
func (d *Document) Layer(name string) *Layer {
	for _, l := range d.Layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}

type layerView struct {
	Name    string
	Show    bool
	Style   template.JS
	Fields  template.JS
	Aliases template.JS
	Data    template.JS
}

type documentView struct {
	Title        string
	Center       LatLng
	Zoom         int
	Tiles        TileLayer
	LayerControl bool
	Layers       []layerView
}

// Render writes the HTML page to w.
func (d *Document) Render(w io.Writer) error {
	view := documentView{
		Title:        d.Title,
		Center:       d.Center,
		Zoom:         d.Zoom,
		Tiles:        d.Tiles,
		LayerControl: d.LayerControl,
	}
	for _, l := range d.Layers {
		lv, err := newLayerView(l)
		if err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
		view.Layers = append(view.Layers, lv)
	}

	if err := pageTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("execute map template: %w", err)
	}
	return nil
}

// Save renders the document and writes it to path, creating parent directories.
func (d *Document) Save(path string) error {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write map: %w", err)
	}
	return nil
}

func newLayerView(l *Layer) (layerView, error) {
	data, err := scriptJSON(l.FeatureCollection())
	if err != nil {
		return layerView{}, fmt.Errorf("encode features: %w", err)
	}
	style, err := scriptJSON(l.Style)
	if err != nil {
		return layerView{}, fmt.Errorf("encode style: %w", err)
	}
	fields, err := scriptJSON(nonNil(l.TooltipFields))
	if err != nil {
		return layerView{}, err
	}
	aliases, err := scriptJSON(nonNil(l.TooltipAliases))
	if err != nil {
		return layerView{}, err
	}
	return layerView{
		Name:    l.Name,
		Show:    l.Show,
		Style:   style,
		Fields:  fields,
		Aliases: aliases,
		Data:    data,
	}, nil
}

// scriptJSON encodes v for direct embedding inside a <script> element.
func scriptJSON(v any) (template.JS, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	json.HTMLEscape(&buf, raw)
	return template.JS(buf.String()), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var pageTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width, initial-scale=1.0" />
<title>{{ .Title }}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" />
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
  html, body { height: 100%; margin: 0; }
  #map { height: 100%; width: 100%; }
  .cityhex-tooltip th { text-align: left; padding-right: 6px; }
</style>
</head>
<body>
<div id="map"></div>
<script>
(function() {
  const map = L.map("map").setView([{{ .Center.Lat }}, {{ .Center.Lng }}], {{ .Zoom }});
  const base = L.tileLayer({{ .Tiles.URL }}, {
    attribution: {{ .Tiles.Attribution }},
    maxZoom: {{ .Tiles.MaxZoom }}
  }).addTo(map);

  function tooltip(feature, fields, aliases) {
    const props = feature.properties || {};
    if (props.tooltip) {
      return String(props.tooltip);
    }
    if (!fields.length) {
      return null;
    }
    const table = document.createElement("table");
    table.className = "cityhex-tooltip";
    fields.forEach(function(field, i) {
      if (props[field] === undefined) {
        return;
      }
      const row = table.insertRow();
      const th = document.createElement("th");
      th.textContent = aliases[i] || field;
      row.appendChild(th);
      row.insertCell().textContent = String(props[field]);
    });
    return table.rows.length ? table : null;
  }

  const baseLayers = {};
  baseLayers[{{ .Tiles.Name }}] = base;
  const overlays = {};
{{ range .Layers }}
  (function() {
    const style = {{ .Style }};
    const fields = {{ .Fields }};
    const aliases = {{ .Aliases }};
    const layer = L.geoJSON({{ .Data }}, {
      style: function() { return style; },
      onEachFeature: function(feature, path) {
        const content = tooltip(feature, fields, aliases);
        if (content) {
          path.bindTooltip(content, { sticky: true });
        }
      }
    });
    {{ if .Show }}layer.addTo(map);{{ end }}
    overlays[{{ .Name }}] = layer;
  })();
{{ end }}
{{ if .LayerControl }}
  L.control.layers(baseLayers, overlays).addTo(map);
{{ end }}
})();
</script>
</body>
</html>`))
