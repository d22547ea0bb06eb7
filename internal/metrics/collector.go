// Package metrics exposes calculation metrics in Prometheus format
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "daylight"

// Window outcome labels
const (
	OutcomeCompliant    = "compliant"
	OutcomeNonCompliant = "non_compliant"
	OutcomeError        = "error"
)

// Collector owns its own registry so several collectors can coexist in tests
type Collector struct {
	registry *prometheus.Registry

	windowsTotal      *prometheus.CounterVec
	windowDuration    prometheus.Histogram
	buildingRuns      *prometheus.CounterVec
	complianceRate    *prometheus.GaugeVec
	storageWrites     *prometheus.CounterVec
	insolationSeconds prometheus.Histogram
}

// NewCollector creates a collector with the Go runtime and process collectors
// already registered
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		windowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "windows_total",
				Help:      "Windows evaluated, by outcome",
			},
			[]string{"outcome"},
		),
		windowDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "window_calculation_seconds",
				Help:      "Wall time spent evaluating one window",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		buildingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "building_runs_total",
				Help:      "Building calculation runs, by status",
			},
			[]string{"status"},
		),
		complianceRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "building_compliance_rate",
				Help:      "Share of compliant windows in the last run for a building",
			},
			[]string{"building"},
		),
		storageWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_writes_total",
				Help:      "Result archive writes, by engine and status",
			},
			[]string{"engine", "status"},
		),
		insolationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "insolation_duration_seconds",
				Help:      "Daily insolation per window",
				Buckets:   prometheus.LinearBuckets(0, 1800, 12),
			},
		),
	}
}

// ObserveWindow records one evaluated window
func (c *Collector) ObserveWindow(outcome string, elapsed time.Duration) {
	c.windowsTotal.WithLabelValues(outcome).Inc()
	c.windowDuration.Observe(elapsed.Seconds())
}

// ObserveInsolation records a window's daily insolation
func (c *Collector) ObserveInsolation(d time.Duration) {
	c.insolationSeconds.Observe(d.Seconds())
}

// ObserveBuilding records a finished run and its compliance rate
func (c *Collector) ObserveBuilding(buildingID string, rate float64, err error) {
	if err != nil {
		c.buildingRuns.WithLabelValues("failed").Inc()
		return
	}
	c.buildingRuns.WithLabelValues("ok").Inc()
	c.complianceRate.WithLabelValues(buildingID).Set(rate)
}

// ObserveStorageWrite records one archive write
func (c *Collector) ObserveStorageWrite(engine string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	c.storageWrites.WithLabelValues(engine, status).Inc()
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
