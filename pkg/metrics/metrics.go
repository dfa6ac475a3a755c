// Package metrics exposes the timings and counters of the energy
// evaluations as Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agbnp"

// Metrics groups the collectors of one registry.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	evaluations   *prometheus.CounterVec
	siteRebuilds  prometheus.Counter
	listEntries   *prometheus.GaugeVec
}

// New creates the collectors and registers them on a new registry.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall time of the evaluation stages.",
		Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
	}, []string{"stage"})

	m.evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Number of energy evaluations by outcome.",
	}, []string{"status"})

	m.siteRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "water_site_list_rebuilds_total",
		Help:      "Number of rebuilds of the water site neighbor rows.",
	})

	m.listEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "neighbor_list_entries",
		Help:      "Entries of the neighbor lists at the last evaluation.",
	}, []string{"list"})

	for _, c := range []prometheus.Collector{m.stageDuration, m.evaluations, m.siteRebuilds, m.listEntries} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("Register: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStage records the duration of a stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Evaluation counts one evaluation, failed when err is not nil.
func (m *Metrics) Evaluation(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.evaluations.WithLabelValues(status).Inc()
}

// SiteRebuild counts one rebuild of the water site rows.
func (m *Metrics) SiteRebuild() { m.siteRebuilds.Inc() }

// ListEntries sets the number of entries of the near and far lists.
func (m *Metrics) ListEntries(near, far int) {
	m.listEntries.WithLabelValues("near").Set(float64(near))
	m.listEntries.WithLabelValues("far").Set(float64(far))
}

// WriteFile writes the current values in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("WriteToTextfile: %w", err)
	}
	return nil
}
