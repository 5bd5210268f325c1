package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the transcription pipeline
// and the notification path.
type Metrics struct {
	ActiveSessions prometheus.Gauge

	ChunksReceived         prometheus.Counter
	ChunksFailed           prometheus.Counter
	ChunkProcessingSeconds prometheus.Histogram
	TranscriptionSeconds   prometheus.Histogram

	NotificationsSent *prometheus.CounterVec
	StatusCallbacks   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "consultscribe_active_sessions",
			Help: "Number of live transcription sessions",
		}),
		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "consultscribe_chunks_received_total",
			Help: "Total number of accepted audio chunks",
		}),
		ChunksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "consultscribe_chunks_failed_total",
			Help: "Total number of chunks that failed storage or transcription",
		}),
		ChunkProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consultscribe_chunk_processing_seconds",
			Help:    "End-to-end chunk processing latency (accept to aggregate)",
			Buckets: prometheus.DefBuckets,
		}),
		TranscriptionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consultscribe_transcription_seconds",
			Help:    "Latency of speech-to-text calls",
			Buckets: prometheus.DefBuckets,
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consultscribe_notifications_sent_total",
			Help: "Notification dispatch attempts by initial status",
		}, []string{"status"}),
		StatusCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "consultscribe_status_callbacks_total",
			Help: "Total number of delivery status callbacks received",
		}),
	}
}
