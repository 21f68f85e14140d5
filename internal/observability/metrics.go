package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	InferenceRequests *prometheus.CounterVec
	InferenceLatency  prometheus.Histogram
	SideChannelWrites *prometheus.CounterVec
	CheckinsSaved     *prometheus.CounterVec

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active capture sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Capture session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction, type, and delivery result.",
		}, []string{"direction", "type", "result"}),
		InferenceRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Inference dispatches by modality and outcome.",
		}, []string{"modality", "outcome"}),
		InferenceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_latency_ms",
			Help:      "Round-trip latency of inference calls in milliseconds.",
			Buckets:   []float64{50, 100, 200, 400, 700, 1000, 2000, 5000, 10000},
		}),
		SideChannelWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_channel_writes_total",
			Help:      "Recommendation side-channel writes by outcome.",
		}, []string{"outcome"}),
		CheckinsSaved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_saved_total",
			Help:      "Persisted check-in entries by type.",
		}, []string{"entry_type"}),
		stages: newStageWindow(256),
	}
}

func (m *Metrics) ObserveInferenceLatency(d time.Duration) {
	m.InferenceLatency.Observe(float64(d.Milliseconds()))
}

// ObserveStage records a pipeline stage latency in the rolling perf window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Microseconds())/1000)
}

// ObserveStageIndicator counts a named pipeline event (stale discard, auth
// failure, ...) in the rolling perf window.
func (m *Metrics) ObserveStageIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

// SnapshotStages returns the rolling perf window for the perf endpoint.
func (m *Metrics) SnapshotStages() StageSnapshot {
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
