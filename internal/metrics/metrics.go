// Package metrics exports derived container stats as Prometheus gauges.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rusenback/docker-stats/internal/model"
	"github.com/rusenback/docker-stats/internal/stats"
)

const namespace = "dockerstats"

// Recorder keeps the latest derived stats per container
type Recorder struct {
	cpuPercent    *prometheus.GaugeVec
	memoryUsage   *prometheus.GaugeVec
	memoryLimit   *prometheus.GaugeVec
	memoryPercent *prometheus.GaugeVec
	networkTx     *prometheus.GaugeVec
	networkRx     *prometheus.GaugeVec
	failures      *prometheus.CounterVec
}

func newGaugeVec(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		[]string{"container"},
	)
}

// NewRecorder creates a Recorder and registers its collectors with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cpuPercent:    newGaugeVec("container_cpu_percent", "CPU usage in percent of one CPU, scaled by online CPUs"),
		memoryUsage:   newGaugeVec("container_memory_usage_kilobytes", "Memory usage without inactive file cache in kilobytes"),
		memoryLimit:   newGaugeVec("container_memory_limit_kilobytes", "Memory limit in kilobytes"),
		memoryPercent: newGaugeVec("container_memory_percent", "Memory usage in percent of the limit"),
		networkTx:     newGaugeVec("container_network_transmit_kilobytes", "Kilobytes transmitted over all interfaces"),
		networkRx:     newGaugeVec("container_network_receive_kilobytes", "Kilobytes received over all interfaces"),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "derive_failures_total",
				Help:      "Snapshots that could not be turned into stats, by reason",
			},
			[]string{"container", "reason"},
		),
	}

	reg.MustRegister(
		r.cpuPercent,
		r.memoryUsage,
		r.memoryLimit,
		r.memoryPercent,
		r.networkTx,
		r.networkRx,
		r.failures,
	)

	return r
}

// Observe sets the gauges of container to s
func (r *Recorder) Observe(container string, s model.Stats) {
	r.cpuPercent.WithLabelValues(container).Set(s.CPUPercent)
	r.memoryUsage.WithLabelValues(container).Set(s.MemoryUsageKB)
	r.memoryLimit.WithLabelValues(container).Set(s.MemoryLimitKB)
	r.memoryPercent.WithLabelValues(container).Set(s.MemoryPercent)
	r.networkTx.WithLabelValues(container).Set(s.NetworkTxKB)
	r.networkRx.WithLabelValues(container).Set(s.NetworkRxKB)
}

// ObserveError counts a failed derivation for container
func (r *Recorder) ObserveError(container string, err error) {
	r.failures.WithLabelValues(container, Reason(err)).Inc()
}

// Forget drops the gauges of a container that went away
func (r *Recorder) Forget(container string) {
	labels := prometheus.Labels{"container": container}
	r.cpuPercent.Delete(labels)
	r.memoryUsage.Delete(labels)
	r.memoryLimit.Delete(labels)
	r.memoryPercent.Delete(labels)
	r.networkTx.Delete(labels)
	r.networkRx.Delete(labels)
}

// Reason maps a derivation error to a low-cardinality label value
func Reason(err error) string {
	switch {
	case errors.Is(err, stats.ErrInvalidLimit):
		return "invalid_limit"
	case errors.Is(err, stats.ErrNilSnapshot):
		return "nil_snapshot"
	default:
		return "other"
	}
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
