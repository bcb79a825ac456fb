package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recog_engine_active_sessions",
		Help: "Number of open recognition sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recog_engine_sessions_total",
		Help: "Total number of recognition sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recog_engine_session_duration_seconds",
		Help:    "Duration of recognition sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Utterance metrics
	utterancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recog_engine_utterances_total",
		Help: "Total number of completed utterances by completion cause",
	}, []string{"cause"})

	earlyTerminations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recog_engine_early_terminations_total",
		Help: "Utterances ended early by a grammar rule match",
	})

	finalExtractionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recog_engine_final_extraction_seconds",
		Help:    "Latency of lattice-based final result extraction in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	})

	// Audio metrics
	framesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recog_engine_frames_total",
		Help: "Total audio frames processed",
	})

	audioBytesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recog_engine_audio_bytes_total",
		Help: "Total audio bytes received",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recog_engine_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// Metrics tracks metrics for a single recognition session
type Metrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a metrics tracker for one session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the opening of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the closing of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordUtterance records a completed utterance with its completion cause
func (m *Metrics) RecordUtterance(cause string) {
	utterancesTotal.WithLabelValues(cause).Inc()
}

// RecordEarlyTermination records a grammar-matched early termination
func (m *Metrics) RecordEarlyTermination() {
	earlyTerminations.Inc()
}

// RecordFinalExtraction records the latency of one final result extraction
func (m *Metrics) RecordFinalExtraction(d time.Duration) {
	finalExtractionLatency.Observe(d.Seconds())
}

// RecordFrame records one processed audio frame
func (m *Metrics) RecordFrame(bytes int) {
	framesProcessed.Inc()
	audioBytesProcessed.Add(float64(bytes))
}

// RecordError records an error by type and component
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
