package props

import (
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

func TestFilter_IncludeAndDrop(t *testing.T) {
	tags := map[string]string{
		"name":        "Краснодар",
		"admin_level": "6",
		"name:en":     "Krasnodar",
		"wikidata":    "Q3646",
		"source":      "x",
	}

	f := NewFilter(DefaultTags, nil)
	got := f.Tags(tags)
	want := map[string]string{"name": "Краснодар", "admin_level": "6", "name:en": "Krasnodar"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tags=%v want %v", got, want)
	}
	if p := f.Present(tags); !reflect.DeepEqual(p, []string{"name", "admin_level", "name:en"}) {
		t.Fatalf("Present=%v", p)
	}

	drop := NewFilter(nil, []string{"name:*", "source"})
	got = drop.Tags(tags)
	if _, ok := got["name:en"]; ok {
		t.Fatalf("glob drop failed: %v", got)
	}
	if _, ok := got["source"]; ok || got["wikidata"] != "Q3646" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestFilter_NilAndDuplicates(t *testing.T) {
	var f *Filter
	if !f.Keep("anything") || f.Keys() != nil {
		t.Fatalf("nil filter must keep everything")
	}
	dup := NewFilter([]string{"name", " name ", ""}, nil)
	if !reflect.DeepEqual(dup.Keys(), []string{"name"}) {
		t.Fatalf("Keys=%v", dup.Keys())
	}
	if dup.Tags(nil) != nil {
		t.Fatalf("nil tags must stay nil")
	}
	kept := dup.Tags(map[string]string{"name": "X", "other": "y"})
	if len(kept) != 1 || kept["name"] != "X" {
		t.Fatalf("Tags=%v", kept)
	}
	if dup.Present(map[string]string{"other": "y"}) != nil {
		t.Fatalf("Present must be empty when no included key is carried")
	}
}

func TestParseList(t *testing.T) {
	if got := ParseList(" name, admin_level,,population "); !reflect.DeepEqual(got, []string{"name", "admin_level", "population"}) {
		t.Fatalf("ParseList=%v", got)
	}
}

func TestParse(t *testing.T) {
	q, err := Parse("coord=0.000001; float=0.01 area_km2=0.1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.CoordStep != 0.000001 || q.FloatStep != 0.01 || q.FieldSteps["area_km2"] != 0.1 {
		t.Fatalf("unexpected quantizer: %+v", q)
	}
	for _, bad := range []string{"coord", "coord=abc", "float=-1", "=1"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	empty, err := Parse("")
	if err != nil || !empty.Zero() {
		t.Fatalf("empty expression must yield zero quantizer: %+v %v", empty, err)
	}
}

func TestQuantizer_PropertiesAndGeometry(t *testing.T) {
	q := Quantizer{CoordStep: 0.001, FloatStep: 0.1, FieldSteps: map[string]float64{"area_km2": 0.01}}

	props := map[string]any{"area_km2": 0.7373, "score": 1.26, "h3": "88..."}
	res := q.Properties(props)
	if res.Changes != 2 {
		t.Fatalf("changes=%d want 2", res.Changes)
	}
	if math.Abs(props["area_km2"].(float64)-0.74) > 1e-9 || math.Abs(props["score"].(float64)-1.3) > 1e-9 {
		t.Fatalf("unexpected rounding: %v", props)
	}

	ls := orb.LineString{{38.97531, 45.03547}, {38.9761, 45.0362}}
	gres := q.Geometry(ls)
	if gres.Changes == 0 || gres.MaxCoordError > 0.0005+1e-12 {
		t.Fatalf("unexpected geometry result: %+v", gres)
	}
	if math.Abs(ls[0][0]-38.975) > 1e-9 || math.Abs(ls[0][1]-45.035) > 1e-9 {
		t.Fatalf("coordinates not rounded: %v", ls)
	}

	if r := (Quantizer{}).Geometry(ls); r.Changes != 0 {
		t.Fatalf("zero quantizer must not change geometry")
	}
}
