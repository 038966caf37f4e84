// Package metrics exposes Prometheus counters for audio transfers, clips
// and lip-sync sampling.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/pcmbridge/internal/pcm"
	"github.com/dgnsrekt/pcmbridge/internal/receiver"
)

// Metrics contains all Prometheus metrics for the bridge.
type Metrics struct {
	// Transfer metrics
	TransfersStarted   prometheus.Counter
	TransfersCompleted prometheus.Counter
	TransfersAborted   prometheus.Counter
	ChunksReceived     prometheus.Counter
	ChunkBytes         prometheus.Histogram
	Diagnostics        *prometheus.CounterVec

	// Clip metrics
	ClipsPlayed    prometheus.Counter
	ClipDuration   prometheus.Histogram
	ActiveSamplers prometheus.Gauge
	Amplitude      prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		TransfersStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmbridge_transfers_started_total",
			Help: "Total number of START markers accepted",
		}),
		TransfersCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmbridge_transfers_completed_total",
			Help: "Total number of transfers closed by END",
		}),
		TransfersAborted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmbridge_transfers_aborted_total",
			Help: "Total number of transfers aborted by the transport",
		}),
		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmbridge_chunks_received_total",
			Help: "Total number of chunks decoded and accepted",
		}),
		ChunkBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pcmbridge_chunk_bytes",
			Help:    "Size of decoded chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10), // 256 B to 128 KiB
		}),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pcmbridge_diagnostics_total",
			Help: "Recovered errors and warnings by kind",
		}, []string{"kind"}),

		ClipsPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmbridge_clips_played_total",
			Help: "Total number of assembled clips handed to the device",
		}),
		ClipDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pcmbridge_clip_duration_seconds",
			Help:    "Duration of assembled clips in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),
		ActiveSamplers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pcmbridge_active_samplers",
			Help: "Current number of clips being sampled for lip sync",
		}),
		Amplitude: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pcmbridge_amplitude",
			Help:    "Mean absolute amplitude per sampling tick",
			Buckets: prometheus.LinearBuckets(0, 0.05, 10),
		}),

		registry: reg,
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Transition implements receiver.Observer.
func (m *Metrics) Transition(from, to receiver.State, event receiver.Event) {
	switch event {
	case receiver.EventStart:
		m.TransfersStarted.Inc()
	case receiver.EventEnd:
		if from == receiver.StateReceiving {
			m.TransfersCompleted.Inc()
		}
	case receiver.EventAbort:
		if from == receiver.StateReceiving {
			m.TransfersAborted.Inc()
		}
	}
}

// ChunkAccepted implements receiver.Observer.
func (m *Metrics) ChunkAccepted(size int) {
	m.ChunksReceived.Inc()
	m.ChunkBytes.Observe(float64(size))
}

// ObserveDiagnostic counts a reported error by kind.
func (m *Metrics) ObserveDiagnostic(err error) {
	m.Diagnostics.WithLabelValues(DiagnosticKind(err)).Inc()
}

// ObserveClip records a clip handed to the device.
func (m *Metrics) ObserveClip(d time.Duration) {
	m.ClipsPlayed.Inc()
	m.ClipDuration.Observe(d.Seconds())
}

// ObserveAmplitude records one lip-sync reading.
func (m *Metrics) ObserveAmplitude(v float32) {
	m.Amplitude.Observe(float64(v))
}

// SetActiveSamplers sets the number of clips currently being sampled.
func (m *Metrics) SetActiveSamplers(n int) {
	m.ActiveSamplers.Set(float64(n))
}

// DiagnosticKind returns the label used for err.
func DiagnosticKind(err error) string {
	var decodeErr *receiver.DecodeError
	var abortErr *receiver.TransportAbortError
	var truncErr *pcm.TruncatedPCMError
	switch {
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &abortErr):
		return "transport_abort"
	case errors.Is(err, receiver.ErrEmptySession), errors.Is(err, pcm.ErrNoSamples):
		return "empty_session"
	case errors.As(err, &truncErr):
		return "truncated_pcm"
	case errors.Is(err, receiver.ErrChunkOutsideSession):
		return "chunk_outside_session"
	case errors.Is(err, receiver.ErrUnknownMessage):
		return "unknown_message"
	default:
		return "other"
	}
}
