// Package config loads run settings from the environment. Command-line flags
// override these values in cmd/cityhex.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cityhex/cityhex/internal/props"
)

const envPrefix = "CITYHEX_"

type StyleCfg struct {
	BoundaryFill   string
	BoundaryStroke string
	BoundaryWeight float64
	CellStroke     string
	CellWeight     float64
	CellOpacity    float64
}

type CacheCfg struct {
	Enabled   bool
	Size      int
	TTL       time.Duration
	RedisAddr string
	RedisDB   int
}

type Config struct {
	Place      string
	Country    string
	AdminLevel string
	Resolution int
	Output     string

	OverpassURL     string
	NominatimURL    string
	UserAgent       string
	HTTPTimeout     time.Duration
	OverpassTimeout int
	Fallback        bool

	Cache CacheCfg

	Workers    int
	LogLevel   string
	LogConsole bool
	TagKeys    []string
	Quantize   string
	Style      StyleCfg
}

// Load reads .env (if present) and then the process environment.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return FromEnv()
}

func FromEnv() Config {
	res := getint("RESOLUTION", 8)
	if res < 0 || res > 15 {
		res = 8
	}

	return Config{
		Place:      getenv("PLACE", "Краснодар"),
		Country:    getenvAllowEmpty("COUNTRY", "Россия"),
		AdminLevel: getenv("ADMIN_LEVEL", "6"),
		Resolution: res,
		Output:     getenv("OUTPUT", "output_map.html"),

		OverpassURL:     getenv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		NominatimURL:    getenv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		UserAgent:       getenv("USER_AGENT", "cityhex/1.0 (+https://github.com/cityhex/cityhex)"),
		HTTPTimeout:     getduration("HTTP_TIMEOUT", 60*time.Second),
		OverpassTimeout: getint("OVERPASS_TIMEOUT", 60),
		Fallback:        getbool("GEOCODE_FALLBACK", true),

		Cache: CacheCfg{
			Enabled:   getbool("CACHE", true),
			Size:      getint("CACHE_SIZE", 64),
			TTL:       getduration("CACHE_TTL", 24*time.Hour),
			RedisAddr: getenv("REDIS_ADDR", ""),
			RedisDB:   getint("REDIS_DB", 0),
		},

		Workers:    getint("WORKERS", 0),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", true),
		TagKeys:    getlist("TAGS", append([]string(nil), props.DefaultTags...)),
		Quantize:   getenv("QUANTIZE", ""),
		Style: StyleCfg{
			BoundaryFill:   getenv("BOUNDARY_FILL", "#a1a1a1"),
			BoundaryStroke: getenv("BOUNDARY_STROKE", "red"),
			BoundaryWeight: getfloat("BOUNDARY_WEIGHT", 5),
			CellStroke:     getenv("CELL_STROKE", "grey"),
			CellWeight:     getfloat("CELL_WEIGHT", 3),
			CellOpacity:    getfloat("CELL_OPACITY", 0.8),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(envPrefix + k); v != "" {
		return v
	}
	return def
}

// getenvAllowEmpty lets an explicitly empty variable override def.
func getenvAllowEmpty(k, def string) string {
	if v, ok := os.LookupEnv(envPrefix + k); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(envPrefix + k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(envPrefix + k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(envPrefix + k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(envPrefix + k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getlist(k string, def []string) []string {
	v := os.Getenv(envPrefix + k)
	if v == "" {
		return def
	}
	return props.ParseList(v)
}
