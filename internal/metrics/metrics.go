// Package metrics holds the transcoder's Prometheus collectors. Nothing is
// served over the network; the registry is written to a node-exporter
// textfile after each file and at exit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gamic2iwrf"

// Result label values for FilesTotal.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics groups the collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	FilesTotal          *prometheus.CounterVec // by result
	PulsesTotal         prometheus.Counter
	BytesWrittenTotal   prometheus.Counter
	MetadataBlocksTotal prometheus.Counter
	PwFallbacksTotal    prometheus.Counter
	DiscoveryWaitsTotal prometheus.Counter
	LastCloseTimestamp  prometheus.Gauge
	LastPulseTimestamp  prometheus.Gauge
	FileDuration        prometheus.Histogram
	BuildInfo           *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FilesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Input files processed, by result.",
		}, []string{"result"}),
		PulsesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulses_total",
			Help:      "Pulses written to output files.",
		}),
		BytesWrittenTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to output files.",
		}),
		MetadataBlocksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_blocks_total",
			Help:      "Metadata blocks written, including periodic refreshes.",
		}),
		PwFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulse_width_fallbacks_total",
			Help:      "Files whose pulse width index was outside the configured table.",
		}),
		DiscoveryWaitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_waits_total",
			Help:      "Realtime discovery wait cycles without a new file.",
		}),
		LastCloseTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_file_close_timestamp_seconds",
			Help:      "Wall clock time the last output file was closed.",
		}),
		LastPulseTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pulse_timestamp_seconds",
			Help:      "Data time of the last pulse written.",
		}),
		FileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Wall clock time spent transcoding one input file.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		BuildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Always 1, labelled with the build version.",
		}, []string{"version", "git_sha"}),
	}
}

// FileDone records the outcome of one input file.
func (m *Metrics) FileDone(ok bool, took time.Duration) {
	if ok {
		m.FilesTotal.WithLabelValues(ResultOK).Inc()
	} else {
		m.FilesTotal.WithLabelValues(ResultFailed).Inc()
	}
	m.FileDuration.Observe(took.Seconds())
}

// OutputClosed records a closed output file.
func (m *Metrics) OutputClosed(pulses, metadataBlocks int, bytes int64, closed, lastPulse time.Time) {
	m.PulsesTotal.Add(float64(pulses))
	m.MetadataBlocksTotal.Add(float64(metadataBlocks))
	m.BytesWrittenTotal.Add(float64(bytes))
	m.LastCloseTimestamp.Set(float64(closed.UnixNano()) / 1e9)
	if !lastPulse.IsZero() {
		m.LastPulseTimestamp.Set(float64(lastPulse.UnixNano()) / 1e9)
	}
}

// WriteTextfile writes the registry to path for a node-exporter textfile
// collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
