// Package metrics provides Prometheus metrics for pulse.
// Counters, gauges, and histograms for the engagement engine and its
// persistence layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Achievements ───────────────────────────────────────────────────────────

// AchievementsUnlocked tracks unlocks by category and tier.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "achievements_unlocked_total",
	Help:      "Total achievements unlocked.",
}, []string{"category", "tier"})

// PointsTotal tracks cumulative achievement points.
var PointsTotal = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "points_total",
	Help:      "Cumulative achievement points.",
})

// UserLevel tracks the derived user level.
var UserLevel = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "user_level",
	Help:      "Current user level derived from points.",
})

// ─── Streaks & Habits ───────────────────────────────────────────────────────

// StreakMilestones tracks milestone events by category and threshold.
var StreakMilestones = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "streak_milestones_total",
	Help:      "Streak milestone events emitted.",
}, []string{"category", "count"})

// HabitCompletions tracks newly recorded completion days by category.
var HabitCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "habit_completions_total",
	Help:      "Distinct habit completion days recorded.",
}, []string{"category"})

// NudgesGenerated tracks generated nudges by type.
var NudgesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "nudges_generated_total",
	Help:      "Nudges generated.",
}, []string{"type"})

// ─── Persistence ────────────────────────────────────────────────────────────

// StoreWrites tracks state saves by result (ok, retried, failed).
var StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "store_writes_total",
	Help:      "State writes to the store by result.",
}, []string{"result"})

// StoreLoads tracks rehydration attempts by result (ok, empty, failed).
var StoreLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "store_loads_total",
	Help:      "State loads from the store by result.",
}, []string{"result"})

// StoreWriteLatency tracks save duration in seconds.
var StoreWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "pulse",
	Name:      "store_write_latency_seconds",
	Help:      "Duration of state writes in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
})

// StoreBreakerState tracks the store circuit breaker
// (0 = closed, 1 = half-open, 2 = open).
var StoreBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "store_breaker_state",
	Help:      "Store circuit breaker state (0 = closed, 1 = half-open, 2 = open).",
})

// StoreBreakerTrips counts transitions into the open state.
var StoreBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "store_breaker_trips_total",
	Help:      "Times the store circuit breaker tripped open.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1 = healthy, 0 = unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "health_check_status",
	Help:      "Health check status (1 = healthy, 0 = unhealthy).",
}, []string{"check"})
