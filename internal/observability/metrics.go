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
	ActiveCalls       prometheus.Gauge
	MediaFrames       *prometheus.CounterVec
	TranscodeErrors   prometheus.Counter
	FunctionCalls     *prometheus.CounterVec
	ReminderTriggers  *prometheus.CounterVec
	CallPlacements    *prometheus.CounterVec
	SessionReconnects prometheus.Counter
	BufferedFrames    prometheus.Gauge
	FirstAudioLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of active bridged phone calls.",
		}),
		MediaFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_frames_total",
			Help:      "Media frames relayed by direction.",
		}, []string{"direction"}),
		TranscodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcode_errors_total",
			Help:      "Audio frames dropped due to transcode failures.",
		}),
		FunctionCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_calls_total",
			Help:      "Model function calls by name and outcome.",
		}, []string{"name", "outcome"}),
		ReminderTriggers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_triggers_total",
			Help:      "Reminder due-check promotions by outcome.",
		}, []string{"outcome"}),
		CallPlacements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_placements_total",
			Help:      "Outbound call placements by outcome.",
		}, []string{"outcome"}),
		SessionReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_reconnects_total",
			Help:      "Mid-call conversational session reconnect attempts.",
		}),
		BufferedFrames: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_frames",
			Help:      "Caller audio frames held while the session is down.",
		}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency to first assistant audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
	}
}

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
