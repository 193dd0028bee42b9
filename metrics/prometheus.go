package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame outcomes.
const (
	FrameClassified = "classified"
	FrameNoFace     = "no_face"
	FrameInvalid    = "invalid_region"
	FrameFailed     = "failed"
)

// Manager holds the Prometheus collectors of the analysis pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	frames                *prometheus.CounterVec
	predictions           *prometheus.CounterVec
	classificationLatency *prometheus.HistogramVec
	historySize           prometheus.Gauge
	activeSessions        prometheus.Gauge
	sessions              *prometheus.CounterVec
	batchImages           *prometheus.CounterVec
	publishErrors         prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry()

func init() {
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "faceshape",
		subsystem:        "analysis",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.frames = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "frames_total",
			Help:      "Total number of frames processed by outcome",
		},
		[]string{"outcome"},
	)

	m.predictions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "predictions_total",
			Help:      "Total number of per-frame predictions by face shape and strategy",
		},
		[]string{"label", "strategy"},
	)

	m.classificationLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "classification_latency_milliseconds",
			Help:      "Latency of measuring and classifying a single frame in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"strategy"},
	)

	m.historySize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_size",
		Help:      "Number of predictions held by the most recently updated session",
	})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_sessions",
		Help:      "Number of capture sessions currently running",
	})

	m.sessions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "sessions_total",
			Help:      "Total number of finished capture sessions by result",
		},
		[]string{"result"},
	)

	m.batchImages = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "batch_images_total",
			Help:      "Total number of images processed in batch mode by outcome",
		},
		[]string{"outcome"},
	)

	m.publishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_errors_total",
		Help:      "Total number of failed result publications",
	})
}

// RecordFrame increments the frame counter of the given outcome.
func RecordFrame(outcome string) {
	globalManager.frames.WithLabelValues(outcome).Inc()
}

// RecordPrediction increments the prediction counter of the face shape and strategy.
func RecordPrediction(label, strategy string) {
	globalManager.predictions.WithLabelValues(label, strategy).Inc()
}

// RecordClassificationLatency records the latency of a single frame classification in milliseconds.
func RecordClassificationLatency(strategy string, latencyMs float64) {
	globalManager.classificationLatency.WithLabelValues(strategy).Observe(latencyMs)
}

// UpdateHistorySize sets the current prediction history size.
func UpdateHistorySize(size int) {
	globalManager.historySize.Set(float64(size))
}

// SessionStarted increments the active sessions gauge.
func SessionStarted() {
	globalManager.activeSessions.Inc()
}

// SessionFinished decrements the active sessions gauge and counts the session result.
func SessionFinished(result string) {
	globalManager.activeSessions.Dec()
	globalManager.sessions.WithLabelValues(result).Inc()
}

// RecordBatchImage increments the batch image counter of the given outcome.
func RecordBatchImage(outcome string) {
	globalManager.batchImages.WithLabelValues(outcome).Inc()
}

// RecordPublishError increments the failed publication counter.
func RecordPublishError() {
	globalManager.publishErrors.Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
