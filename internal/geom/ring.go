// Package geom normalizes boundary geometries into closed (latitude, longitude)
// rings accepted by the hex tiler and the map renderer.
package geom

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	// ErrUnsupportedGeometry is returned for anything other than a single polygon.
	ErrUnsupportedGeometry = errors.New("unsupported geometry")
	// ErrInvalidPolygon is returned for rings with fewer than 3 distinct points
	// or rings that cannot be closed.
	ErrInvalidPolygon = errors.New("invalid polygon")
)

// AxisOrder names the coordinate order of a source geometry.
type AxisOrder int

const (
	// LonLat is the GeoJSON / OSM order.
	LonLat AxisOrder = iota
	// LatLon is the order used by Ring and the H3 library.
	LatLon
)

func (o AxisOrder) String() string {
	if o == LatLon {
		return "lat,lon"
	}
	return "lon,lat"
}

// Ring is an ordered sequence of coordinate pairs. Rings returned by Normalize
// are always in (latitude, longitude) order and closed.
type Ring [][2]float64

// Normalize converts a raw boundary geometry in the given axis order into a
// closed (latitude, longitude) ring. Only polygons are accepted; holes are
// dropped and a multipolygon with exactly one member is unwrapped.
func Normalize(g orb.Geometry, order AxisOrder) (Ring, error) {
	outer, err := outerRing(g)
	if err != nil {
		return nil, err
	}

	ring := make(Ring, 0, len(outer)+1)
	for _, p := range outer {
		ring = append(ring, [2]float64{p[0], p[1]})
	}
	if order == LonLat {
		ring = SwapAxes(ring)
	}
	ring = CloseRing(ring)

	if err := Validate(ring); err != nil {
		return nil, err
	}
	return ring, nil
}

func outerRing(g orb.Geometry) (orb.Ring, error) {
	switch v := g.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty geometry", ErrUnsupportedGeometry)
	case orb.Polygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: polygon has no rings", ErrInvalidPolygon)
		}
		return v[0], nil
	case orb.MultiPolygon:
		if len(v) != 1 {
			return nil, fmt.Errorf("%w: multipolygon with %d members", ErrUnsupportedGeometry, len(v))
		}
		return outerRing(v[0])
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
	}
}

// SwapAxes returns a copy of r with each pair's components exchanged.
func SwapAxes(r Ring) Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	for i, p := range r {
		out[i] = [2]float64{p[1], p[0]}
	}
	return out
}

// CloseRing returns r with its first point appended when the ring is open.
// Closed and empty rings are returned unchanged.
func CloseRing(r Ring) Ring {
	if len(r) == 0 || Closed(r) {
		return r
	}
	out := make(Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}

// Closed reports whether the first and last points are identical.
func Closed(r Ring) bool {
	if len(r) < 2 {
		return false
	}
	return r[0] == r[len(r)-1]
}

// DistinctPoints counts unique coordinate pairs in r.
func DistinctPoints(r Ring) int {
	seen := make(map[[2]float64]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// Validate checks that r is closed and has at least three distinct points.
func Validate(r Ring) error {
	if n := DistinctPoints(r); n < 3 {
		return fmt.Errorf("%w: %d distinct points", ErrInvalidPolygon, n)
	}
	if !Closed(r) {
		return fmt.Errorf("%w: ring is not closed", ErrInvalidPolygon)
	}
	return nil
}

// Orb converts a (latitude, longitude) ring back into an orb ring in GeoJSON order.
func (r Ring) Orb() orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i] = orb.Point{p[1], p[0]}
	}
	return out
}

// Centroid returns the area centroid of r as (lat, lng). Degenerate rings with
// zero area fall back to the average of their vertices.
func Centroid(r Ring) (lat, lng float64) {
	if len(r) == 0 {
		return 0, 0
	}
	c, area := planar.CentroidArea(orb.Polygon{r.Orb()})
	if area != 0 {
		return c[1], c[0]
	}

	pts := r
	if Closed(pts) {
		pts = pts[:len(pts)-1]
	}
	for _, p := range pts {
		lat += p[0]
		lng += p[1]
	}
	n := float64(len(pts))
	return lat / n, lng / n
}
