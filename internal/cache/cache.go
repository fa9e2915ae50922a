// Package cache stores raw upstream responses so repeated boundary lookups do
// not hit the OSM services again.
package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Store is a byte-oriented response cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
}

// Observer receives per-layer cache outcomes ("hit", "miss", "error").
type Observer interface {
	ObserveCache(layer, result string)
}

// Key builds a cache key for a request to service. The query text is
// whitespace-normalised before hashing.
func Key(service, query string) string {
	norm := strings.Join(strings.Fields(query), " ")
	return fmt.Sprintf("cityhex:%s:%016x", strings.ToLower(strings.TrimSpace(service)), xxhash.Sum64String(norm))
}

// Named pairs a store with the label used in metrics and logs.
type Named struct {
	Name  string
	Store Store
}

// Tiered checks layers in order and back-fills faster layers on a hit.
type Tiered struct {
	layers   []Named
	observer Observer
}

// NewTiered returns a tiered cache over layers, fastest first.
func NewTiered(obs Observer, layers ...Named) *Tiered {
	return &Tiered{layers: layers, observer: obs}
}

// Len returns the number of configured layers.
func (t *Tiered) Len() int { return len(t.layers) }

func (t *Tiered) observe(layer, result string) {
	if t.observer != nil {
		t.observer.ObserveCache(layer, result)
	}
}

// Get returns the first hit. Errors from individual layers are reported as
// misses of that layer; the last error is returned only if no layer hit.
// Failed back-fills are observed as errors but do not fail the lookup.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var lastErr error
	for i, l := range t.layers {
		val, ok, err := l.Store.Get(ctx, key)
		if err != nil {
			t.observe(l.Name, "error")
			lastErr = fmt.Errorf("cache %s: %w", l.Name, err)
			continue
		}
		if !ok {
			t.observe(l.Name, "miss")
			continue
		}
		t.observe(l.Name, "hit")
		for j := 0; j < i; j++ {
			if err := t.layers[j].Store.Set(ctx, key, val); err != nil {
				t.observe(t.layers[j].Name, "error")
			}
		}
		return val, true, nil
	}
	return nil, false, lastErr
}

// Set writes val to every layer and returns the first error.
func (t *Tiered) Set(ctx context.Context, key string, val []byte) error {
	var first error
	for _, l := range t.layers {
		if err := l.Store.Set(ctx, key, val); err != nil && first == nil {
			first = fmt.Errorf("cache %s: %w", l.Name, err)
		}
	}
	return first
}
