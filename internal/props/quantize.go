package props

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Quantizer rounds outline coordinates and float properties so the
// embedded GeoJSON stays small.
type Quantizer struct {
	CoordStep  float64            // Applied to every coordinate when >0.
	FloatStep  float64            // Applied to float properties when >0.
	FieldSteps map[string]float64 // Per-property overrides.
}

// Result captures quantization statistics.
type Result struct {
	MaxCoordError float64
	Changes       int
}

// Parse builds a Quantizer from a flag value such as "coord=1e-6,float=0.001,area_km2=0.01".
func Parse(expr string) (Quantizer, error) {
	q := Quantizer{FieldSteps: make(map[string]float64)}
	for _, token := range splitExpr(expr) {
		key, value, ok := strings.Cut(token, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return Quantizer{}, fmt.Errorf("invalid quantize token %q", token)
		}
		step, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Quantizer{}, fmt.Errorf("parse quantize value %q: %w", token, err)
		}
		if step < 0 {
			return Quantizer{}, fmt.Errorf("quantize step must be non-negative for %q", token)
		}
		switch strings.ToLower(key) {
		case "coord":
			q.CoordStep = step
		case "float":
			q.FloatStep = step
		default:
			q.FieldSteps[key] = step
		}
	}
	return q, nil
}

func splitExpr(expr string) []string {
	expr = strings.NewReplacer(";", ",", " ", ",", "\t", ",").Replace(expr)
	var out []string
	for _, f := range strings.Split(expr, ",") {
		if t := strings.TrimSpace(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Zero reports whether q changes nothing.
func (q Quantizer) Zero() bool {
	return q.CoordStep <= 0 && q.FloatStep <= 0 && len(q.FieldSteps) == 0
}

// Properties rounds float64 values in place.
func (q Quantizer) Properties(props map[string]any) Result {
	var res Result
	for key, value := range props {
		v, ok := value.(float64)
		if !ok {
			continue
		}
		step := q.FloatStep
		if s, ok := q.FieldSteps[key]; ok {
			step = s
		}
		if r, _, changed := round(v, step); changed {
			props[key] = r
			res.Changes++
		}
	}
	return res
}

// Geometry rounds the coordinates of line and polygon geometries in place.
func (q Quantizer) Geometry(g orb.Geometry) Result {
	var res Result
	if q.CoordStep <= 0 {
		return res
	}
	roundPoints := func(pts []orb.Point) {
		for i, p := range pts {
			for axis := 0; axis < 2; axis++ {
				if r, diff, changed := round(p[axis], q.CoordStep); changed {
					pts[i][axis] = r
					res.Changes++
					res.MaxCoordError = math.Max(res.MaxCoordError, diff)
				}
			}
		}
	}
	switch v := g.(type) {
	case orb.LineString:
		roundPoints(v)
	case orb.Ring:
		roundPoints(v)
	case orb.Polygon:
		for _, r := range v {
			roundPoints(r)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			for _, r := range p {
				roundPoints(r)
			}
		}
	}
	return res
}

func round(value, step float64) (float64, float64, bool) {
	if step <= 0 {
		return value, 0, false
	}
	quantized := math.Round(value/step) * step
	diff := math.Abs(quantized - value)
	if diff == 0 {
		return value, 0, false
	}
	return quantized, diff, true
}
