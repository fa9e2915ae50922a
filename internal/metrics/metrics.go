// Package metrics collects per-run Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version string
	Commit  string
}

// Provider owns a private registry so repeated runs in one process (tests,
// the preview server) never collide on the default registerer.
type Provider struct {
	reg *prometheus.Registry

	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	cache          *prometheus.CounterVec
	cells          prometheus.Gauge
	features       *prometheus.GaugeVec
	stages         *prometheus.HistogramVec
}

func New(build BuildInfo, withRuntime bool) *Provider {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cityhex_build_info",
		Help: "Build info for this binary (value is always 1).",
	}, []string{"version", "commit"})
	if build.Version == "" {
		build.Version = "dev"
	}
	info.WithLabelValues(build.Version, build.Commit).Set(1)

	p := &Provider{
		reg: reg,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cityhex_boundary_lookups_total",
			Help: "Boundary lookups by source and outcome.",
		}, []string{"source", "outcome"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cityhex_boundary_lookup_seconds",
			Help:    "Boundary lookup latency by source.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cityhex_cache_requests_total",
			Help: "Response cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		cells: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cityhex_cells",
			Help: "Number of H3 cells produced by the last tiling.",
		}),
		features: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cityhex_layer_features",
			Help: "Features per map layer in the last written document.",
		}, []string{"layer"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cityhex_stage_seconds",
			Help:    "Pipeline stage durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
	reg.MustRegister(info, p.lookups, p.lookupDuration, p.cache, p.cells, p.features, p.stages)
	return p
}

func (p *Provider) ObserveLookup(source, outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.lookups.WithLabelValues(source, outcome).Inc()
	p.lookupDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (p *Provider) ObserveCache(layer, result string) {
	if p == nil {
		return
	}
	p.cache.WithLabelValues(layer, result).Inc()
}

func (p *Provider) SetCells(n int) {
	if p == nil {
		return
	}
	p.cells.Set(float64(n))
}

func (p *Provider) SetLayerFeatures(layer string, n int) {
	if p == nil {
		return
	}
	p.features.WithLabelValues(layer).Set(float64(n))
}

// Stage starts timing a pipeline stage; call the returned func when done.
func (p *Provider) Stage(name string) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.stages.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (p *Provider) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
