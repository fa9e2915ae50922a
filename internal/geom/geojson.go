package geom

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DecodeGeoJSON returns the first geometry of a FeatureCollection, a Feature
// or a bare geometry object together with its properties (nil for bare
// geometries).
func DecodeGeoJSON(data []byte) (orb.Geometry, map[string]any, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, nil, fmt.Errorf("decode geojson: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, nil, fmt.Errorf("decode feature collection: %w", err)
		}
		for _, f := range fc.Features {
			if f.Geometry != nil {
				return f.Geometry, f.Properties, nil
			}
		}
		return nil, nil, fmt.Errorf("feature collection has no geometry: %w", ErrUnsupportedGeometry)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, nil, fmt.Errorf("decode feature: %w", err)
		}
		if f.Geometry == nil {
			return nil, nil, fmt.Errorf("feature has no geometry: %w", ErrUnsupportedGeometry)
		}
		return f.Geometry, f.Properties, nil
	case "":
		return nil, nil, fmt.Errorf("geojson object has no type: %w", ErrUnsupportedGeometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, nil, fmt.Errorf("decode geometry: %w", err)
		}
		return g.Geometry(), nil, nil
	}
}

// ReadGeoJSON loads path and decodes it with DecodeGeoJSON.
func ReadGeoJSON(path string) (orb.Geometry, map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read geojson: %w", err)
	}
	return DecodeGeoJSON(data)
}
