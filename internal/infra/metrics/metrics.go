// Package metrics provides Prometheus metrics for scribed, covering the
// task pipeline, the admission queue, and component health.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksCreated tracks accepted transcription tasks.
var TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "scribed",
	Name:      "tasks_created_total",
	Help:      "Total accepted transcription tasks.",
})

// TasksCompleted tracks tasks that produced an artifact.
var TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "scribed",
	Name:      "tasks_completed_total",
	Help:      "Total completed transcription tasks.",
})

// TasksFailed tracks failed tasks by failure kind.
var TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scribed",
	Name:      "tasks_failed_total",
	Help:      "Total failed tasks by failure kind.",
}, []string{"kind"})

// TasksRejected tracks submissions refused by a saturated queue.
var TasksRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "scribed",
	Name:      "tasks_rejected_total",
	Help:      "Total submissions rejected due to queue saturation.",
})

// TasksActive tracks currently executing pipelines.
var TasksActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "scribed",
	Name:      "tasks_active",
	Help:      "Number of currently executing pipelines.",
})

// QueueDepth tracks tasks waiting in the admission queue.
var QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "scribed",
	Name:      "queue_depth",
	Help:      "Tasks waiting in the admission queue.",
})

// ─── Stages ─────────────────────────────────────────────────────────────────

// StageDuration tracks per-stage wall time in seconds, including retries.
var StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "scribed",
	Name:      "stage_duration_seconds",
	Help:      "Pipeline stage duration in seconds, including retries.",
	Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
}, []string{"stage"})

// StageRetries tracks transient-failure retries per stage.
var StageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scribed",
	Name:      "stage_retries_total",
	Help:      "Total transient-failure retries per stage.",
}, []string{"stage"})

// StageTimer measures one stage run for StageDuration.
type StageTimer struct {
	stage string
	start time.Time
}

// NewStageTimer starts timing a stage.
func NewStageTimer(stage string) *StageTimer {
	return &StageTimer{stage: stage, start: time.Now()}
}

// Observe records the elapsed time.
func (t *StageTimer) Observe() {
	StageDuration.WithLabelValues(t.stage).Observe(time.Since(t.start).Seconds())
}

// ─── Streaming ──────────────────────────────────────────────────────────────

// StreamSubscribers tracks open progress subscriptions.
var StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "scribed",
	Name:      "stream_subscribers",
	Help:      "Number of open progress event subscriptions.",
})

// StreamEventsDropped tracks events dropped from slow subscriber buffers.
var StreamEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "scribed",
	Name:      "stream_events_dropped_total",
	Help:      "Total events dropped from slow subscriber buffers.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "scribed",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
