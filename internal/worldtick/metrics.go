package worldtick

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks per-tick timing and step-skip behavior, grounded on the
// histogram/counter idiom in internal/middleware/prometheus_middleware.go.
type Metrics struct {
	TickDuration prometheus.Histogram
	TicksOverBudget prometheus.Counter
	SnapshotsSkipped prometheus.Counter
	IngressDropped prometheus.Counter
	CommandsDispatched prometheus.Counter
	CommandErrors prometheus.Counter
}

// NewMetrics builds and registers the world tick's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "worldtick",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of a single world tick.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		TicksOverBudget: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldtick",
			Name:      "ticks_over_budget_total",
			Help:      "Ticks whose wall-clock duration exceeded tick_ms.",
		}),
		SnapshotsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldtick",
			Name:      "snapshots_skipped_total",
			Help:      "Persistence snapshot ticks skipped for being over budget.",
		}),
		IngressDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldtick",
			Name:      "ingress_dropped_total",
			Help:      "Inbound frames dropped because the ingress queue was full.",
		}),
		CommandsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldtick",
			Name:      "commands_dispatched_total",
			Help:      "PLAYER_COMMAND blocks successfully dispatched.",
		}),
		CommandErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "worldtick",
			Name:      "command_errors_total",
			Help:      "PLAYER_COMMAND blocks that errored or were unknown.",
		}),
	}
	prometheus.MustRegister(m.TickDuration, m.TicksOverBudget, m.SnapshotsSkipped,
		m.IngressDropped, m.CommandsDispatched, m.CommandErrors)
	return m
}
