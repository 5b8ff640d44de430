// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package metrics collects per-run fetch metrics and exports them in the Prometheus textfile format,
// suitable for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wneessen/weather-monitor/internal/weather"
)

const namespace = "weather_monitor"

type Metrics struct {
	registry *prometheus.Registry

	// Outcomes counts fetch outcomes per location, source and outcome kind
	Outcomes *prometheus.CounterVec
	// FetchDuration tracks the duration of a location fetch, including retries
	FetchDuration *prometheus.HistogramVec
	// Temperature holds the last reported temperature per location
	Temperature *prometheus.GaugeVec
	// LastRun records when the last run finished
	LastRun prometheus.Gauge
}

// New returns a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_outcomes_total",
				Help:      "Total number of location fetches by outcome",
			},
			[]string{"location", "source", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of location fetches in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		Temperature: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "temperature_celsius",
				Help:      "Last reported temperature in degrees Celsius",
			},
			[]string{"location"},
		),
		LastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix timestamp of the last finished run",
			},
		),
	}
}

// Registry returns the registry all metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records the outcome of a single location fetch.
func (m *Metrics) Observe(loc weather.Location, outcome weather.Outcome, duration time.Duration) {
	m.Outcomes.WithLabelValues(loc.Name, loc.Source, outcome.Kind.String()).Inc()
	m.FetchDuration.WithLabelValues(loc.Source).Observe(duration.Seconds())
	if outcome.OK() && outcome.Conditions.Temperature.IsSet() {
		m.Temperature.WithLabelValues(loc.Name).Set(outcome.Conditions.Temperature.Value())
	}
}

// MarkRun records the finish time of a run.
func (m *Metrics) MarkRun(finished time.Time) {
	m.LastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes all metrics to the given path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
