package osm

import (
	"context"
	"fmt"
	"net/url"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/cityhex/cityhex/internal/cache"
)

// Place is a Nominatim search hit with its outline (or point) geometry.
type Place struct {
	OSMType     string
	OSMID       int64
	Name        string
	DisplayName string
	Class       string
	Type        string
	Geometry    orb.Geometry
	Properties  map[string]any
}

// Geocode runs a free-form Nominatim search and returns up to limit places
// with polygon geometry requested.
func (c *Client) Geocode(ctx context.Context, query string, limit int) ([]Place, error) {
	endpoint := c.NominatimURL
	if endpoint == "" {
		endpoint = DefaultNominatimURL
	}
	if limit <= 0 {
		limit = 1
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid nominatim url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "geojson")
	q.Set("polygon_geojson", "1")
	q.Set("limit", fmt.Sprint(limit))
	u.RawQuery = q.Encode()

	body, err := c.fetch(ctx, "nominatim", cache.Key("nominatim", u.String()), c.getURL(u.String()))
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("failed decoding nominatim response: %w", err)
	}

	places := make([]Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		p := Place{
			OSMType:     f.Properties.MustString("osm_type", ""),
			OSMID:       int64(number(f.Properties["osm_id"])),
			Name:        f.Properties.MustString("name", ""),
			DisplayName: f.Properties.MustString("display_name", ""),
			Class:       f.Properties.MustString("category", f.Properties.MustString("class", "")),
			Type:        f.Properties.MustString("type", ""),
			Geometry:    f.Geometry,
			Properties:  map[string]any(f.Properties),
		}
		places = append(places, p)
	}
	return places, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
