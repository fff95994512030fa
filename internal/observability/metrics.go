package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// burn-scar detection service.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={ok,empty,error}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge

	BackendOps  *prometheus.CounterVec // labels: op
	FireFetches *prometheus.CounterVec // labels: outcome={success,error}

	// Last-run diagnostics.
	BurnedPixels  prometheus.Gauge
	ScenesLoaded  prometheus.Gauge
	CloudFraction *prometheus.GaugeVec // labels: season={init,post}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.BackendOps,
		m.FireFetches,
		m.BurnedPixels,
		m.ScenesLoaded,
		m.CloudFraction,
	)
	return m
}

// NewMetricsForTesting creates Metrics backed by a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burnscar",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "burnscar",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete detection run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "burnscar",
			Name:      "pipeline_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		BackendOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burnscar",
			Name:      "backend_ops_total",
			Help:      "Raster backend operations by name.",
		}, []string{"op"}),
		FireFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "burnscar",
			Name:      "fire_fetches_total",
			Help:      "Fire geometry source reads by outcome.",
		}, []string{"outcome"}),
		BurnedPixels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "burnscar",
			Name:      "last_run_burned_pixels",
			Help:      "Burned pixels in the most recent successful run.",
		}),
		ScenesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "burnscar",
			Name:      "last_run_scenes",
			Help:      "Scenes loaded from the catalog in the most recent run.",
		}),
		CloudFraction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "burnscar",
			Name:      "last_run_cloud_fraction",
			Help:      "Cloudy-pixel fraction of the season composite in the most recent run.",
		}, []string{"season"}),
	}
}
