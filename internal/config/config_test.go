package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	c := FromEnv()
	if c.Place != "Краснодар" || c.Country != "Россия" || c.AdminLevel != "6" {
		t.Fatalf("unexpected place defaults: %+v", c)
	}
	if c.Resolution != 8 || c.HTTPTimeout != 60*time.Second || !c.Fallback {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if !c.Cache.Enabled || c.Cache.RedisAddr != "" {
		t.Fatalf("unexpected cache defaults: %+v", c.Cache)
	}
	if c.Style.BoundaryStroke != "red" || c.Style.CellStroke != "grey" || c.Style.CellWeight != 3 {
		t.Fatalf("unexpected style defaults: %+v", c.Style)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CITYHEX_PLACE", "Сочи")
	t.Setenv("CITYHEX_COUNTRY", "")
	t.Setenv("CITYHEX_RESOLUTION", "9")
	t.Setenv("CITYHEX_HTTP_TIMEOUT", "5s")
	t.Setenv("CITYHEX_CACHE", "no")
	t.Setenv("CITYHEX_REDIS_ADDR", "localhost:6379")
	t.Setenv("CITYHEX_TAGS", "name, population")
	t.Setenv("CITYHEX_CELL_OPACITY", "0.5")

	c := FromEnv()
	if c.Place != "Сочи" || c.Country != "" || c.Resolution != 9 {
		t.Fatalf("unexpected overrides: %+v", c)
	}
	if c.HTTPTimeout != 5*time.Second || c.Cache.Enabled || c.Cache.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected overrides: %+v", c)
	}
	if !reflect.DeepEqual(c.TagKeys, []string{"name", "population"}) || c.Style.CellOpacity != 0.5 {
		t.Fatalf("unexpected overrides: %+v", c)
	}
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CITYHEX_RESOLUTION", "42")
	t.Setenv("CITYHEX_WORKERS", "many")
	t.Setenv("CITYHEX_CACHE_TTL", "forever")

	c := FromEnv()
	if c.Resolution != 8 || c.Workers != 0 || c.Cache.TTL != 24*time.Hour {
		t.Fatalf("invalid values must fall back to defaults: %+v", c)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CITYHEX_ADMIN_LEVEL=8\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("CITYHEX_ADMIN_LEVEL", "")
	os.Unsetenv("CITYHEX_ADMIN_LEVEL")

	c := Load(path)
	if c.AdminLevel != "8" {
		t.Fatalf("AdminLevel=%q want 8", c.AdminLevel)
	}
}
