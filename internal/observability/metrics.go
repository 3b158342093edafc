// Package observability holds the process-wide prometheus metrics and the
// security audit log.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "legalbot"

type moduleMetrics struct {
	queueSize    *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	activeSessions prometheus.Gauge
	turnTotal      *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	eventsSent     *prometheus.CounterVec

	backendAttempts  *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	fallbackExhausts prometheus.Counter
	ceilingHits      prometheus.Counter

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	retrievalTotal    *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	rewriteTotal      *prometheus.CounterVec

	persistenceErrors *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{Namespace: namespace, Name: "queue_size", Help: "Pending turns by lane kind."},
				[]string{"lane"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: namespace, Name: "enqueue_total", Help: "Turns enqueued by lane kind."},
				[]string{"lane"},
			),
			taskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{Namespace: namespace, Name: "task_duration_seconds", Help: "Queued task duration.", Buckets: prometheus.DefBuckets},
				[]string{"lane"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{Namespace: namespace, Name: "active_sessions", Help: "Open websocket chat sessions."},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: namespace, Name: "turn_total", Help: "Chat turns by transport and status."},
				[]string{"transport", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{Namespace: namespace, Name: "turn_duration_seconds", Help: "End to end chat turn latency.", Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80}},
				[]string{"transport"},
			),
			eventsSent: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: namespace, Name: "stream_events_total", Help: "Outbound stream events by type."},
				[]string{"type"},
			),
			backendAttempts: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: namespace, Name: "backend_attempts_total", Help: "Model backend attempts by backend and outcome."},
				[]string{"backend", "outcome"},
			),
			backendDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{Namespace: namespace, Name: "backend_duration_seconds", Help: "Model backend call duration.", Buckets: prometheus.DefBuckets},
				[]string{"backend"},
			),
			fallbackExhausts: prometheus.NewCounter(
				prometheus.CounterOpts{Namespace: namespace, Name: "backend_chain_exhausted_total", Help: "Invocations where every backend failed."},
			),
			ceilingHits: prometheus.NewCounter(
				prometheus.CounterOpts{Namespace: namespace, Name: "tool_ceiling_hits_total", Help: "Loops ended by the tool-call ceiling."},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: namespace, Name: "tool_execution_total", Help: "Tool executions by tool and status."},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{Namespace: namespace, Name: "tool_execution_duration_seconds", Help: "Tool execution duration by tool.", Buckets: prometheus.DefBuckets},
				[]string{"tool"},
			),
			retrievalTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: namespace, Name: "retrieval_total", Help: "Retrieval lookups by outcome (hit, miss, unavailable, error)."},
				[]string{"outcome"},
			),
			retrievalDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{Namespace: namespace, Name: "retrieval_duration_seconds", Help: "Retrieval lookup duration.", Buckets: prometheus.DefBuckets},
			),
			rewriteTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: namespace, Name: "query_rewrite_total", Help: "Query rewrites by outcome (ok, timeout, error, skipped)."},
				[]string{"outcome"},
			),
			persistenceErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{Namespace: namespace, Name: "persistence_errors_total", Help: "Swallowed persistence failures by operation."},
				[]string{"op"},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.taskDuration,
			m.activeSessions,
			m.turnTotal,
			m.turnDuration,
			m.eventsSent,
			m.backendAttempts,
			m.backendDuration,
			m.fallbackExhausts,
			m.ceilingHits,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.retrievalTotal,
			m.retrievalDuration,
			m.rewriteTotal,
			m.persistenceErrors,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordQueueEnqueue(lane string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(lane).Inc()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func RecordQueueCompletion(lane string, duration time.Duration, queueSize int) {
	m := getMetrics()
	m.taskDuration.WithLabelValues(lane).Observe(duration.Seconds())
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func IncActiveSessions() { getMetrics().activeSessions.Inc() }

func DecActiveSessions() { getMetrics().activeSessions.Dec() }

func RecordTurn(transport string, duration time.Duration, success bool) {
	m := getMetrics()
	m.turnTotal.WithLabelValues(transport, status(success)).Inc()
	m.turnDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

func RecordStreamEvent(eventType string) {
	getMetrics().eventsSent.WithLabelValues(eventType).Inc()
}

// RecordBackendAttempt counts one model call. outcome is "success" or an
// error class name.
func RecordBackendAttempt(backend, outcome string, duration time.Duration) {
	m := getMetrics()
	m.backendAttempts.WithLabelValues(backend, outcome).Inc()
	m.backendDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

func RecordChainExhausted() { getMetrics().fallbackExhausts.Inc() }

func RecordCeilingHit() { getMetrics().ceilingHits.Inc() }

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordRetrieval(outcome string, duration time.Duration) {
	m := getMetrics()
	m.retrievalTotal.WithLabelValues(outcome).Inc()
	m.retrievalDuration.Observe(duration.Seconds())
}

func RecordRewrite(outcome string) {
	getMetrics().rewriteTotal.WithLabelValues(outcome).Inc()
}

func RecordPersistenceError(op string) {
	getMetrics().persistenceErrors.WithLabelValues(op).Inc()
}
