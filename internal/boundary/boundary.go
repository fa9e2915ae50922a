// Package boundary resolves a place name to a single administrative boundary.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/cityhex/cityhex/internal/osm"
	"github.com/cityhex/cityhex/internal/props"
)

const (
	DefaultCountry    = "Россия"
	DefaultAdminLevel = "6"
)

// ErrNotFound is returned when no boundary matches a place name.
var ErrNotFound = errors.New("boundary not found")

// TransportError wraps a failure to reach or decode an upstream service. It
// matches ErrNotFound so callers can degrade the same way.
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("boundary lookup via %s failed: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrNotFound }

type Source string

const (
	SourceOverpass  Source = "overpass"
	SourceNominatim Source = "nominatim"
)

// Boundary is one resolved administrative area. Geometry is in GeoJSON
// (lon, lat) order.
type Boundary struct {
	Name       string
	AdminLevel string
	OSMID      int64
	Tags       map[string]string
	Geometry   orb.Geometry
	Source     Source
}

// Properties returns the boundary tags as feature properties.
func (b *Boundary) Properties() map[string]any {
	out := make(map[string]any, len(b.Tags)+1)
	for k, v := range b.Tags {
		out[k] = v
	}
	if _, ok := out["name"]; !ok && b.Name != "" {
		out["name"] = b.Name
	}
	return out
}

type AdminSource interface {
	AdminBoundaries(ctx context.Context, name, country string) ([]osm.Relation, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, query string, limit int) ([]osm.Place, error)
}

// Recorder receives lookup outcomes per source.
type Recorder interface {
	ObserveLookup(source, outcome string, d time.Duration)
}

type Option func(*Loader)

// WithCountry sets the country suffix and Overpass search scope. Empty
// disables both.
func WithCountry(country string) Option { return func(l *Loader) { l.country = country } }

func WithAdminLevel(level string) Option { return func(l *Loader) { l.adminLevel = level } }

func WithTagFilter(f *props.Filter) Option { return func(l *Loader) { l.tags = f } }

func WithLogger(log zerolog.Logger) Option { return func(l *Loader) { l.log = log } }

func WithRecorder(r Recorder) Option { return func(l *Loader) { l.rec = r } }

// WithoutFallback disables the geocoder fallback.
func WithoutFallback() Option { return func(l *Loader) { l.geo = nil } }

// Loader queries administrative relations first and falls back to a
// geocoder when no relation passes the name and level filter.
type Loader struct {
	admin      AdminSource
	geo        Geocoder
	country    string
	adminLevel string
	tags       *props.Filter
	log        zerolog.Logger
	rec        Recorder
}

func NewLoader(admin AdminSource, geo Geocoder, opts ...Option) *Loader {
	l := &Loader{
		admin:      admin,
		geo:        geo,
		country:    DefaultCountry,
		adminLevel: DefaultAdminLevel,
		tags:       props.NewFilter(props.DefaultTags, nil),
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Query returns the free-form search string for name.
func (l *Loader) Query(name string) string {
	name = strings.TrimSpace(name)
	if l.country == "" {
		return name
	}
	return name + ", " + l.country
}

// Resolve returns exactly one boundary for name or an error matching
// ErrNotFound.
func (l *Loader) Resolve(ctx context.Context, name string) (*Boundary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("empty place name: %w", ErrNotFound)
	}
	log := l.log.With().Str("place", name).Logger()

	var transportErr error
	if l.admin != nil {
		b, err := l.fromRelations(ctx, name)
		switch {
		case err == nil:
			log.Info().Str("source", string(b.Source)).Str("boundary", b.Name).Int64("osm_id", b.OSMID).Msg("boundary resolved")
			return b, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case !isPlainNotFound(err):
			log.Warn().Err(err).Msg("overpass lookup failed")
			transportErr = err
		}
	}

	if l.geo != nil {
		b, err := l.fromGeocoder(ctx, name)
		switch {
		case err == nil:
			log.Info().Str("source", string(b.Source)).Str("boundary", b.Name).Int64("osm_id", b.OSMID).Msg("boundary resolved")
			return b, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case !isPlainNotFound(err):
			log.Warn().Err(err).Msg("geocoder lookup failed")
			transportErr = err
		}
	}

	if transportErr != nil {
		return nil, transportErr
	}
	return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
}

func isPlainNotFound(err error) bool {
	var te *TransportError
	return errors.Is(err, ErrNotFound) && !errors.As(err, &te)
}

func (l *Loader) observe(src Source, outcome string, start time.Time) {
	if l.rec != nil {
		l.rec.ObserveLookup(string(src), outcome, time.Since(start))
	}
}

func (l *Loader) fromRelations(ctx context.Context, name string) (*Boundary, error) {
	start := time.Now()
	rels, err := l.admin.AdminBoundaries(ctx, name, l.country)
	if err != nil {
		l.observe(SourceOverpass, "error", start)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Source: string(SourceOverpass), Err: err}
	}

	for _, r := range rels {
		if !strings.Contains(r.Name(), name) || r.AdminLevel() != l.adminLevel {
			continue
		}
		l.observe(SourceOverpass, "found", start)
		return &Boundary{
			Name:       r.Name(),
			AdminLevel: r.AdminLevel(),
			OSMID:      r.ID,
			Tags:       l.tags.Tags(r.Tags),
			Geometry:   r.Geometry,
			Source:     SourceOverpass,
		}, nil
	}
	l.observe(SourceOverpass, "not_found", start)
	return nil, ErrNotFound
}

func (l *Loader) fromGeocoder(ctx context.Context, name string) (*Boundary, error) {
	start := time.Now()
	places, err := l.geo.Geocode(ctx, l.Query(name), 1)
	if err != nil {
		l.observe(SourceNominatim, "error", start)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Source: string(SourceNominatim), Err: err}
	}
	if len(places) == 0 {
		l.observe(SourceNominatim, "not_found", start)
		return nil, ErrNotFound
	}

	p := places[0]
	tags := make(map[string]string)
	for k, v := range p.Properties {
		if s, ok := v.(string); ok {
			tags[k] = s
		}
	}
	if p.Name != "" {
		tags["name"] = p.Name
	}
	displayName := p.Name
	if displayName == "" {
		displayName = p.DisplayName
	}
	if _, ok := tags["name"]; !ok && displayName != "" {
		tags["name"] = displayName
	}

	l.observe(SourceNominatim, "found", start)
	return &Boundary{
		Name:       displayName,
		AdminLevel: tags["admin_level"],
		OSMID:      p.OSMID,
		Tags:       l.tags.Tags(tags),
		Geometry:   p.Geometry,
		Source:     SourceNominatim,
	}, nil
}
