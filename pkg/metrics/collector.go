// Package metrics exposes Prometheus instrumentation for the bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/metals-desk/quotes-bot/internal/state"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of handled Telegram updates labeled by action and status",
		},
		[]string{"action", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Duration of update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	broadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcasts_total",
			Help: "Total number of broadcast deliveries labeled by kind and status",
		},
		[]string{"kind", "status"},
	)
	deadlineTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deadline_timeouts_total",
			Help: "Total number of response windows finalized by timeout",
		},
	)
	quoteOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_outcomes_total",
			Help: "Total number of persisted quote outcome rows labeled by commodity and kind",
		},
		[]string{"commodity", "kind"},
	)
	offersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_total",
			Help: "Total number of accepted purchase offers labeled by commodity",
		},
		[]string{"commodity"},
	)
	activeTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_deadline_timers",
			Help: "Current number of live response-window timers",
		},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordUpdate increments update counters and records handling duration.
func RecordUpdate(action, status string, duration time.Duration) {
	if action == "" {
		action = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	updatesTotal.WithLabelValues(action, status).Inc()
	updateDurationSeconds.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordStateTransition counts one FSM transition.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordBroadcast counts one broadcast delivery attempt.
func RecordBroadcast(kind, status string) {
	broadcastsTotal.WithLabelValues(kind, status).Inc()
}

// RecordTimeout counts one deadline finalization.
func RecordTimeout() {
	deadlineTimeoutsTotal.Inc()
}

// RecordQuoteOutcome counts one persisted quote outcome row.
func RecordQuoteOutcome(commodity, kind string) {
	quoteOutcomesTotal.WithLabelValues(commodity, kind).Inc()
}

// RecordOffer counts one accepted purchase offer.
func RecordOffer(commodity string) {
	offersTotal.WithLabelValues(commodity).Inc()
}

// SetActiveTimers updates the live timer gauge.
func SetActiveTimers(n int) {
	activeTimers.Set(float64(n))
}
