package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Generations
	GenerationsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardforge_generations_started_total",
			Help: "Total number of generation attempts started",
		},
		[]string{"kind"},
	)
	GenerationsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardforge_generations_settled_total",
			Help: "Generation outcomes by kind and result",
		},
		[]string{"kind", "result"}, // result: success|superseded|invalid|error code
	)
	GenerationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardforge_generation_duration_seconds",
			Help:    "Histogram of generation durations in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s..128s
		},
		[]string{"kind"},
	)

	// Sessions
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardforge_sessions_active",
			Help: "Current number of active generation sessions",
		},
	)
	SessionsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cardforge_sessions_reaped_total",
			Help: "Idle sessions disposed by the reaper",
		},
	)

	// Websockets / realtime
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardforge_ws_connections",
			Help: "Current number of open progress websocket connections",
		},
	)

	// DB ops
	DBOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardforge_db_ops_total",
			Help: "Database operations performed",
		},
		[]string{"op"}, // op: get|put|delete|list
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardforge_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		// Generations
		GenerationsStarted,
		GenerationsSettled,
		GenerationDurationSeconds,
		// Sessions
		ActiveSessions,
		SessionsReaped,
		// WS
		WebsocketConnections,
		// DB
		DBOps,
		// Errors
		Errors,
	)
}

func StartMetricsServer() {
	http.Handle("/metrics", promhttp.Handler())
	_ = http.ListenAndServe(":2112", nil)
}

// Generations
func IncGenerationStarted(kind string) {
	GenerationsStarted.WithLabelValues(kind).Inc()
}

func IncGenerationSettled(kind, result string) {
	GenerationsSettled.WithLabelValues(kind, result).Inc()
}

func ObserveGenerationDuration(kind string, d time.Duration) {
	GenerationDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// Sessions
func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}

func IncSessionsReaped() {
	SessionsReaped.Inc()
}

// Websocket
func IncWSConnections() {
	WebsocketConnections.Inc()
}

func DecWSConnections() {
	WebsocketConnections.Dec()
}

// DB ops
func IncDBOp(op string) {
	DBOps.WithLabelValues(op).Inc()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
