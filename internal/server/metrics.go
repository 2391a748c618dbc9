// Package server exposes the diagnostic HTTP API and the Prometheus
// metrics derived from process snapshots.
package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/younghedong/svcboot/internal/info"
)

// Metrics contains Prometheus metrics for the snapshot sampler.
type Metrics struct {
	heapBytes    *prometheus.GaugeVec
	nonHeapBytes *prometheus.GaugeVec
	cpus         prometheus.Gauge
	goroutines   prometheus.Gauge
	samples      *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "svcboot"
	}

	return &Metrics{
		heapBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "process",
				Name:      "heap_bytes",
				Help:      "Heap memory in bytes by state (used, committed, max)",
			},
			[]string{"state"},
		),
		nonHeapBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "process",
				Name:      "non_heap_bytes",
				Help:      "Runtime overhead memory in bytes by state (used, committed)",
			},
			[]string{"state"},
		),
		cpus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "process",
				Name:      "cpus",
				Help:      "Logical CPUs available to the process",
			},
		),
		goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "process",
				Name:      "goroutines",
				Help:      "Goroutines alive at sample time",
			},
		),
		samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sampler",
				Name:      "samples_total",
				Help:      "Snapshot samples by status",
			},
			[]string{"status"},
		),
	}
}

// Register registers all metrics with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.heapBytes,
		m.nonHeapBytes,
		m.cpus,
		m.goroutines,
		m.samples,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers all metrics and panics on error.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.heapBytes,
		m.nonHeapBytes,
		m.cpus,
		m.goroutines,
		m.samples,
	)
}

// RecordSample publishes the gauges for one process snapshot. The max
// gauge is only set while a memory limit is configured.
func (m *Metrics) RecordSample(snap info.ProcessSnapshot, goroutines int) {
	m.heapBytes.WithLabelValues("used").Set(float64(snap.Memory.Heap.Used))
	m.heapBytes.WithLabelValues("committed").Set(float64(snap.Memory.Heap.Committed))
	if snap.Memory.Heap.Max != info.Undefined {
		m.heapBytes.WithLabelValues("max").Set(float64(snap.Memory.Heap.Max))
	}
	m.nonHeapBytes.WithLabelValues("used").Set(float64(snap.Memory.NonHeap.Used))
	m.nonHeapBytes.WithLabelValues("committed").Set(float64(snap.Memory.NonHeap.Committed))
	m.cpus.Set(float64(snap.CPUs))
	m.goroutines.Set(float64(goroutines))
	m.samples.WithLabelValues("success").Inc()
}

// RecordSampleError counts a sample that could not be persisted.
func (m *Metrics) RecordSampleError() {
	m.samples.WithLabelValues("failure").Inc()
}
