// Package hexgrid tiles normalized rings with H3 cells and converts cells back
// into outline rings.
package hexgrid

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	h3 "github.com/uber/h3-go/v4"

	"github.com/cityhex/cityhex/internal/geom"
)

const (
	MinResolution = 0
	MaxResolution = 15
)

// ErrInvalidResolution is returned for resolutions outside 0..15.
var ErrInvalidResolution = errors.New("invalid H3 resolution")

// CellSet holds the unique cells produced by one tiling call, sorted by index.
type CellSet []h3.Cell

// Contains reports whether c is part of the set.
func (s CellSet) Contains(c h3.Cell) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= c })
	return i < len(s) && s[i] == c
}

// ValidateResolution checks res against the H3 range.
func ValidateResolution(res int) error {
	if res < MinResolution || res > MaxResolution {
		return fmt.Errorf("%w %d (must be %d..%d)", ErrInvalidResolution, res, MinResolution, MaxResolution)
	}
	return nil
}

// PolygonToCells returns every cell whose centre lies inside the closed
// (latitude, longitude) ring at the given resolution. A ring too small to hold
// any cell centre yields the cells it overlaps instead, so a valid ring never
// produces an empty set.
func PolygonToCells(ring geom.Ring, res int) (CellSet, error) {
	if err := ValidateResolution(res); err != nil {
		return nil, err
	}
	if err := geom.Validate(ring); err != nil {
		return nil, err
	}

	poly := h3.GeoPolygon{GeoLoop: toLoop(ring)}
	cells, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	if len(cells) == 0 {
		cells, err = h3.PolygonToCellsExperimental(poly, res, h3.ContainmentOverlapping)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill (overlapping): %w", err)
		}
	}

	seen := make(map[h3.Cell]struct{}, len(cells))
	out := make(CellSet, 0, len(cells))
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// toLoop drops the duplicated closing vertex; H3 loops are implicitly closed.
func toLoop(ring geom.Ring) h3.GeoLoop {
	pts := ring
	if geom.Closed(pts) {
		pts = pts[:len(pts)-1]
	}
	loop := make(h3.GeoLoop, 0, len(pts))
	for _, p := range pts {
		loop = append(loop, h3.LatLng{Lat: p[0], Lng: p[1]})
	}
	return loop
}

// Boundary returns the open (latitude, longitude) boundary of cell as reported
// by the H3 library.
func Boundary(cell h3.Cell) (geom.Ring, error) {
	if !cell.IsValid() {
		return nil, fmt.Errorf("invalid H3 cell index %s", cell.String())
	}

	boundary, err := cell.Boundary()
	if err != nil {
		return nil, fmt.Errorf("compute boundary: %w", err)
	}
	if len(boundary) == 0 {
		return nil, fmt.Errorf("empty boundary for cell %s", cell.String())
	}

	ring := make(geom.Ring, 0, len(boundary)+1)
	for _, v := range boundary {
		ring = append(ring, [2]float64{v.Lat, v.Lng})
	}
	return ring, nil
}

// Outline returns the boundary of cell re-closed by appending its first vertex.
func Outline(cell h3.Cell) (geom.Ring, error) {
	ring, err := Boundary(cell)
	if err != nil {
		return nil, err
	}
	return geom.CloseRing(ring), nil
}

// AreaKm2 returns the geodesic area of cell in square kilometres.
func AreaKm2(cell h3.Cell) (float64, error) {
	outline, err := Outline(cell)
	if err != nil {
		return 0, err
	}
	return RingAreaKm2(outline), nil
}

// CoveredAreaKm2 sums the area of every cell in s.
func CoveredAreaKm2(s CellSet) (float64, error) {
	total := 0.0
	for _, c := range s {
		a, err := AreaKm2(c)
		if err != nil {
			return 0, err
		}
		total += a
	}
	return total, nil
}

// RingAreaKm2 returns the geodesic area of a (latitude, longitude) ring.
func RingAreaKm2(ring geom.Ring) float64 {
	a := geo.Area(orb.Polygon{ring.Orb()})
	if a < 0 {
		a = -a
	}
	return a / 1e6
}
