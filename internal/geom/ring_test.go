package geom

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

func square() orb.Polygon {
	// lon,lat around central Krasnodar
	return orb.Polygon{{
		{38.90, 45.00}, {39.05, 45.00}, {39.05, 45.10}, {38.90, 45.10},
	}}
}

func TestNormalize_SwapsAndCloses(t *testing.T) {
	ring, err := Normalize(square(), LonLat)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !Closed(ring) {
		t.Fatalf("ring must be closed: %v", ring)
	}
	if len(ring) != 5 {
		t.Fatalf("len=%d want 5", len(ring))
	}
	if ring[0] != [2]float64{45.00, 38.90} {
		t.Fatalf("first point must be lat,lon: %v", ring[0])
	}
}

func TestNormalize_LatLonInputIsNotSwapped(t *testing.T) {
	poly := orb.Polygon{{{45.00, 38.90}, {45.00, 39.05}, {45.10, 39.05}, {45.00, 38.90}}}
	ring, err := Normalize(poly, LatLon)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if ring[1] != [2]float64{45.00, 39.05} {
		t.Fatalf("unexpected order: %v", ring[1])
	}
	if len(ring) != 4 {
		t.Fatalf("already closed ring must not grow, len=%d", len(ring))
	}
}

func TestNormalize_UnsupportedGeometry(t *testing.T) {
	cases := map[string]orb.Geometry{
		"point":        orb.Point{38.9, 45.0},
		"linestring":   orb.LineString{{38.9, 45.0}, {39.0, 45.1}},
		"multipolygon": orb.MultiPolygon{square(), square()},
		"nil":          nil,
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(g, LonLat)
			if !errors.Is(err, ErrUnsupportedGeometry) {
				t.Fatalf("err=%v want ErrUnsupportedGeometry", err)
			}
		})
	}
}

func TestNormalize_SingleMemberMultiPolygon(t *testing.T) {
	ring, err := Normalize(orb.MultiPolygon{square()}, LonLat)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !Closed(ring) {
		t.Fatalf("ring must be closed")
	}
}

func TestNormalize_Degenerate(t *testing.T) {
	poly := orb.Polygon{{{38.9, 45.0}, {39.0, 45.1}, {38.9, 45.0}}}
	_, err := Normalize(poly, LonLat)
	if !errors.Is(err, ErrInvalidPolygon) {
		t.Fatalf("err=%v want ErrInvalidPolygon", err)
	}
	if _, err := Normalize(orb.Polygon{}, LonLat); !errors.Is(err, ErrInvalidPolygon) {
		t.Fatalf("empty polygon err=%v want ErrInvalidPolygon", err)
	}
}

func TestCloseRing_Idempotent(t *testing.T) {
	open := Ring{{45.0, 38.9}, {45.0, 39.0}, {45.1, 39.0}}
	once := CloseRing(open)
	twice := CloseRing(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("CloseRing not idempotent: %v vs %v", once, twice)
	}
	if len(open) != 3 {
		t.Fatalf("input must not be mutated")
	}
	if CloseRing(nil) != nil {
		t.Fatalf("nil ring must stay nil")
	}
}

func TestSwapAxes_RoundTrip(t *testing.T) {
	r := Ring{{38.9, 45.0}, {39.0, 45.0}, {39.0, 45.1}, {38.9, 45.0}}
	back := SwapAxes(SwapAxes(r))
	if !reflect.DeepEqual(r, back) {
		t.Fatalf("round trip mismatch: %v vs %v", r, back)
	}
	if reflect.DeepEqual(r, SwapAxes(r)) {
		t.Fatalf("single swap must change order")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Ring{{1, 1}, {2, 2}}); !errors.Is(err, ErrInvalidPolygon) {
		t.Fatalf("two points: err=%v", err)
	}
	if err := Validate(Ring{{1, 1}, {2, 2}, {3, 1}}); !errors.Is(err, ErrInvalidPolygon) {
		t.Fatalf("open ring: err=%v", err)
	}
	if err := Validate(Ring{{1, 1}, {2, 2}, {3, 1}, {1, 1}}); err != nil {
		t.Fatalf("valid ring: %v", err)
	}
}

func TestCentroid(t *testing.T) {
	ring, err := Normalize(square(), LonLat)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	lat, lng := Centroid(ring)
	if math.Abs(lat-45.05) > 1e-9 || math.Abs(lng-38.975) > 1e-9 {
		t.Fatalf("centroid=(%f,%f)", lat, lng)
	}

	line := Ring{{1, 1}, {2, 2}, {3, 3}, {1, 1}}
	lat, lng = Centroid(line)
	if lat != 2 || lng != 2 {
		t.Fatalf("zero-area fallback=(%f,%f) want (2,2)", lat, lng)
	}
}

func TestOrb_ReturnsLonLat(t *testing.T) {
	r := Ring{{45.0, 38.9}}
	o := r.Orb()
	if o[0] != (orb.Point{38.9, 45.0}) {
		t.Fatalf("Orb()=%v", o)
	}
}
