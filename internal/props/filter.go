// Package props trims and rounds the attributes attached to map features.
package props

import (
	"path/filepath"
	"sort"
	"strings"
)

// DefaultTags are the OSM tags kept on a boundary feature when no explicit
// list is configured.
var DefaultTags = []string{"name", "admin_level", "name:en", "population"}

// Filter selects which OSM tags survive onto a feature. Includes keep their
// configured order; drop entries are glob patterns matched with filepath.Match.
type Filter struct {
	includes     map[string]struct{}
	includeOrder []string
	dropPatterns []string
}

// NewFilter builds a filter. An empty include list keeps every tag that no
// drop pattern matches.
func NewFilter(include []string, drop []string) *Filter {
	f := &Filter{}
	for _, item := range include {
		key := strings.TrimSpace(item)
		if key == "" {
			continue
		}
		if f.includes == nil {
			f.includes = make(map[string]struct{}, len(include))
		}
		if _, dup := f.includes[key]; dup {
			continue
		}
		f.includes[key] = struct{}{}
		f.includeOrder = append(f.includeOrder, key)
	}
	for _, pattern := range drop {
		if p := strings.TrimSpace(pattern); p != "" {
			f.dropPatterns = append(f.dropPatterns, p)
		}
	}
	sort.Strings(f.dropPatterns)
	return f
}

// ParseList splits a comma separated flag value.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Tags returns a filtered copy of tags. A nil filter copies everything.
func (f *Filter) Tags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if f.Keep(k) {
			out[k] = v
		}
	}
	return out
}

// Keys returns the explicitly included keys in configured order.
func (f *Filter) Keys() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.includeOrder...)
}

// Present returns the included keys that tags actually carries, in order.
func (f *Filter) Present(tags map[string]string) []string {
	var out []string
	for _, k := range f.Keys() {
		if _, ok := tags[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (f *Filter) Keep(key string) bool {
	if f == nil {
		return true
	}
	for _, pattern := range f.dropPatterns {
		if ok, _ := filepath.Match(pattern, key); ok {
			return false
		}
	}
	if len(f.includes) == 0 {
		return true
	}
	_, ok := f.includes[key]
	return ok
}
