package osm

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var ErrNoGeometry = errors.New("relation has no closed outer ring")

// Stitch joins way fragments end to end into rings. Fragments may be
// reversed to connect. A chain that cannot be completed is closed as is;
// chains with fewer than three distinct points are dropped.
func Stitch(ways []orb.LineString) []orb.Ring {
	remaining := make([]orb.LineString, 0, len(ways))
	for _, w := range ways {
		if len(w) > 0 {
			remaining = append(remaining, w)
		}
	}

	var rings []orb.Ring
	for len(remaining) > 0 {
		cur := append(orb.LineString(nil), remaining[0]...)
		remaining = remaining[1:]

		for !cur[0].Equal(cur[len(cur)-1]) {
			end := cur[len(cur)-1]
			idx := -1
			for i, w := range remaining {
				if w[0].Equal(end) {
					cur = append(cur, w[1:]...)
					idx = i
					break
				}
				if w[len(w)-1].Equal(end) {
					rev := w.Clone()
					rev.Reverse()
					cur = append(cur, rev[1:]...)
					idx = i
					break
				}
			}
			if idx < 0 {
				break
			}
			remaining = append(remaining[:idx], remaining[idx+1:]...)
		}

		ring := orb.Ring(cur)
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		if len(ring) >= 4 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// Assemble stitches outer and inner fragments into a Polygon, or a
// MultiPolygon when there is more than one outer ring. Inner rings are
// attached to the first outer ring that contains their first vertex.
func Assemble(outer, inner []orb.LineString) (orb.Geometry, error) {
	outers := Stitch(outer)
	if len(outers) == 0 {
		return nil, ErrNoGeometry
	}
	holes := Stitch(inner)

	if len(outers) == 1 {
		poly := orb.Polygon{outers[0]}
		poly = append(poly, holes...)
		return poly, nil
	}

	mp := make(orb.MultiPolygon, len(outers))
	for i, r := range outers {
		mp[i] = orb.Polygon{r}
	}
	for _, h := range holes {
		for i := range mp {
			if planar.RingContains(mp[i][0], h[0]) {
				mp[i] = append(mp[i], h)
				break
			}
		}
	}
	return mp, nil
}
