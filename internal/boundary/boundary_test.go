package boundary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/cityhex/cityhex/internal/osm"
	"github.com/cityhex/cityhex/internal/props"
)

var square = orb.Polygon{{{38.9, 45.0}, {39.1, 45.0}, {39.1, 45.1}, {38.9, 45.1}, {38.9, 45.0}}}

type fakeAdmin struct {
	rels    []osm.Relation
	err     error
	country string
	calls   int
}

func (f *fakeAdmin) AdminBoundaries(_ context.Context, name, country string) ([]osm.Relation, error) {
	f.calls++
	f.country = country
	return f.rels, f.err
}

type fakeGeo struct {
	places []osm.Place
	err    error
	query  string
	calls  int
}

func (f *fakeGeo) Geocode(_ context.Context, query string, limit int) ([]osm.Place, error) {
	f.calls++
	f.query = query
	return f.places, f.err
}

type lookups struct {
	mu  sync.Mutex
	got []string
}

func (l *lookups) ObserveLookup(source, outcome string, _ time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, source+":"+outcome)
}

func TestResolve_RelationFilter(t *testing.T) {
	admin := &fakeAdmin{rels: []osm.Relation{
		{ID: 1, Tags: map[string]string{"name": "Краснодарский край", "admin_level": "4"}, Geometry: square},
		{ID: 2, Tags: map[string]string{"name": "Москва", "admin_level": "6"}, Geometry: square},
		{ID: 3, Tags: map[string]string{"name": "городской округ Краснодар", "admin_level": "6", "wikidata": "Q3646"}, Geometry: square},
		{ID: 4, Tags: map[string]string{"name": "Краснодар второй", "admin_level": "6"}, Geometry: square},
	}}
	geo := &fakeGeo{}
	rec := &lookups{}

	b, err := NewLoader(admin, geo, WithRecorder(rec)).Resolve(context.Background(), "Краснодар")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b.OSMID != 3 || b.Source != SourceOverpass || b.AdminLevel != "6" {
		t.Fatalf("first matching candidate should win: %+v", b)
	}
	if _, ok := b.Tags["wikidata"]; ok {
		t.Fatalf("default tag filter should drop wikidata: %v", b.Tags)
	}
	if admin.country != DefaultCountry {
		t.Fatalf("country=%q want %q", admin.country, DefaultCountry)
	}
	if geo.calls != 0 {
		t.Fatalf("geocoder must not be called when a relation matches")
	}
	if strings.Join(rec.got, ",") != "overpass:found" {
		t.Fatalf("lookups=%v", rec.got)
	}
}

func TestResolve_FallbackToGeocoder(t *testing.T) {
	admin := &fakeAdmin{rels: []osm.Relation{
		{ID: 1, Tags: map[string]string{"name": "Краснодар", "admin_level": "8"}, Geometry: square},
	}}
	geo := &fakeGeo{places: []osm.Place{{
		OSMType: "relation", OSMID: 7373058, Name: "Краснодар",
		Geometry:   square,
		Properties: map[string]any{"display_name": "Краснодар, Россия", "place_rank": 16.0},
	}}}

	b, err := NewLoader(admin, geo).Resolve(context.Background(), " Краснодар ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b.Source != SourceNominatim || b.OSMID != 7373058 || b.Name != "Краснодар" {
		t.Fatalf("unexpected boundary: %+v", b)
	}
	if geo.query != "Краснодар, Россия" {
		t.Fatalf("geocode query=%q", geo.query)
	}
	if b.Properties()["name"] != "Краснодар" {
		t.Fatalf("properties=%v", b.Properties())
	}
}

func TestResolve_NotFound(t *testing.T) {
	l := NewLoader(&fakeAdmin{}, &fakeGeo{}, WithCountry(""))
	_, err := l.Resolve(context.Background(), "Nonexistent City ZZZ123")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	var te *TransportError
	if errors.As(err, &te) {
		t.Fatalf("plain not-found must not be a transport error")
	}
	if l.Query("x") != "x" {
		t.Fatalf("empty country must not add a suffix")
	}

	if _, err := l.Resolve(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank name: want ErrNotFound, got %v", err)
	}
}

func TestResolve_TransportErrorIsNotFound(t *testing.T) {
	cause := errors.New("connection refused")
	admin := &fakeAdmin{err: cause}
	geo := &fakeGeo{err: cause}

	_, err := NewLoader(admin, geo).Resolve(context.Background(), "Краснодар")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("want TransportError, got %T %v", err, err)
	}
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, cause) {
		t.Fatalf("transport error must match ErrNotFound and keep the cause: %v", err)
	}
	if te.Source != string(SourceNominatim) {
		t.Fatalf("last failing source should be reported, got %q", te.Source)
	}
}

func TestResolve_OverpassDownGeocoderUp(t *testing.T) {
	admin := &fakeAdmin{err: errors.New("504")}
	geo := &fakeGeo{places: []osm.Place{{Name: "Краснодар", Geometry: square}}}
	b, err := NewLoader(admin, geo).Resolve(context.Background(), "Краснодар")
	if err != nil || b.Source != SourceNominatim {
		t.Fatalf("b=%+v err=%v", b, err)
	}
}

func TestResolve_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	admin := &fakeAdmin{err: context.Canceled}
	geo := &fakeGeo{}
	_, err := NewLoader(admin, geo).Resolve(ctx, "Краснодар")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if geo.calls != 0 {
		t.Fatalf("geocoder must not run after cancellation")
	}
}

func TestResolve_Options(t *testing.T) {
	admin := &fakeAdmin{rels: []osm.Relation{
		{ID: 9, Tags: map[string]string{"name": "Sochi", "admin_level": "8", "population": "400000"}, Geometry: square},
	}}
	l := NewLoader(admin, nil,
		WithAdminLevel("8"),
		WithCountry("Russia"),
		WithTagFilter(props.NewFilter([]string{"name"}, nil)),
	)
	b, err := l.Resolve(context.Background(), "Sochi")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(b.Tags) != 1 || b.Tags["name"] != "Sochi" {
		t.Fatalf("tags=%v", b.Tags)
	}

	_, err = NewLoader(&fakeAdmin{}, &fakeGeo{places: []osm.Place{{Name: "x", Geometry: square}}}, WithoutFallback()).
		Resolve(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("WithoutFallback: want ErrNotFound, got %v", err)
	}
}
