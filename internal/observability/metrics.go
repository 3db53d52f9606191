// Package observability holds the Prometheus collectors and OpenTelemetry
// tracing setup shared by the CLI and the HTTP server.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Export outcomes used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Collector bundles the export, scene and HTTP metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Exports        *prometheus.CounterVec
	ExportDuration prometheus.Histogram
	ExportOps      *prometheus.CounterVec

	Mutations        *prometheus.CounterVec
	SceneDetectors   prometheus.Gauge
	SceneConnections prometheus.Gauge

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice on the same registry reuses
// the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.Exports, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smokeplan_exports_total",
		Help: "Exports run, labeled by outcome.",
	}, []string{"outcome"}), "smokeplan_exports_total"); err != nil {
		return nil, err
	}
	if c.ExportDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "smokeplan_export_duration_seconds",
		Help:    "Time spent laying out and rendering an export.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "smokeplan_export_duration_seconds"); err != nil {
		return nil, err
	}
	if c.ExportOps, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smokeplan_export_ops_total",
		Help: "Draw operations emitted by exports, labeled by kind.",
	}, []string{"kind"}), "smokeplan_export_ops_total"); err != nil {
		return nil, err
	}
	if c.Mutations, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smokeplan_scene_mutations_total",
		Help: "Applied scene mutations, labeled by event type.",
	}, []string{"type"}), "smokeplan_scene_mutations_total"); err != nil {
		return nil, err
	}
	if c.SceneDetectors, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokeplan_scene_detectors",
		Help: "Current number of detectors in the open scene.",
	}), "smokeplan_scene_detectors"); err != nil {
		return nil, err
	}
	if c.SceneConnections, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokeplan_scene_connections",
		Help: "Current number of connections in the open scene.",
	}), "smokeplan_scene_connections"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smokeplan_http_requests_total",
		Help: "HTTP requests handled, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "smokeplan_http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smokeplan_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"}), "smokeplan_http_request_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveExport records one finished export. opCounts maps draw operation
// kinds to how many were emitted.
func (c *Collector) ObserveExport(outcome string, elapsed time.Duration, opCounts map[string]int) {
	if c == nil {
		return
	}
	c.Exports.WithLabelValues(outcome).Inc()
	c.ExportDuration.Observe(elapsed.Seconds())
	for kind, n := range opCounts {
		c.ExportOps.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveMutation counts an applied scene mutation.
func (c *Collector) ObserveMutation(eventType string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(eventType).Inc()
}

// SetSceneCounts updates the scene size gauges.
func (c *Collector) SetSceneCounts(detectors, connections int) {
	if c == nil {
		return
	}
	c.SceneDetectors.Set(float64(detectors))
	c.SceneConnections.Set(float64(connections))
}

// ObserveHTTP records one handled request.
func (c *Collector) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.HTTPDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ExportOutcome classifies an export error for the outcome label.
func ExportOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeFailure
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
