// Package domain holds the engagement types.
// The engagement engine drives habit formation through streaks, levels,
// achievements, and contextual nudges. Types here are pure data; the
// engines that mutate them live in internal/app/engagement.
package domain

import "time"

// ─── Streak Types ───────────────────────────────────────────────────────────

// StreakState tracks consecutive-day completion for one activity category.
// Invariant: CurrentCount is 0 whenever LastCompleted is empty, and
// LongestCount >= CurrentCount.
type StreakState struct {
	CurrentCount  int    `json:"current_count"`
	LongestCount  int    `json:"longest_count"`
	LastCompleted string `json:"last_completed,omitempty"` // DateKey, "" = never
}

// StreakMilestone is emitted when a streak reaches a milestone threshold
// exactly upon increment.
type StreakMilestone struct {
	Category  string    `json:"category"`
	Count     int       `json:"count"`
	ReachedAt time.Time `json:"reached_at"`
}

// DefaultStreakMilestones are the thresholds that emit milestone events.
var DefaultStreakMilestones = []int{3, 7, 14, 30, 60, 100, 365}

// ─── Achievement Types ──────────────────────────────────────────────────────

// AchievementCategory groups achievements by theme. Closed set.
type AchievementCategory string

const (
	CatWorkout     AchievementCategory = "workout"
	CatNutrition   AchievementCategory = "nutrition"
	CatWellness    AchievementCategory = "wellness"
	CatConsistency AchievementCategory = "consistency"
	CatMilestone   AchievementCategory = "milestone"
	CatSocial      AchievementCategory = "social"
)

// AchievementCategories lists every valid category in display order.
var AchievementCategories = []AchievementCategory{
	CatWorkout, CatNutrition, CatWellness, CatConsistency, CatMilestone, CatSocial,
}

// Valid reports whether c belongs to the closed category set.
func (c AchievementCategory) Valid() bool {
	for _, known := range AchievementCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Tier is the ordinal display rank of an achievement. It drives feedback
// intensity only and never gates unlocking.
type Tier int

const (
	TierBronze Tier = iota + 1
	TierSilver
	TierGold
	TierPlatinum
	TierLegendary
)

var tierNames = map[Tier]string{
	TierBronze:    "bronze",
	TierSilver:    "silver",
	TierGold:      "gold",
	TierPlatinum:  "platinum",
	TierLegendary: "legendary",
}

// String returns the lowercase tier name.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is one of the five defined tiers.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name; unknown names decode to 0 (invalid).
func (t *Tier) UnmarshalText(b []byte) error {
	for tier, name := range tierNames {
		if name == string(b) {
			*t = tier
			return nil
		}
	}
	*t = 0
	return nil
}

// Requirement maps a metric name to the threshold it must meet or exceed.
// All listed metrics must be satisfied (conjunctive).
type Requirement map[string]float64

// SatisfiedBy reports whether every threshold is met by metrics.
// Missing metrics count as 0.
func (r Requirement) SatisfiedBy(metrics map[string]float64) bool {
	for metric, threshold := range r {
		if metrics[metric] < threshold {
			return false
		}
	}
	return true
}

// AchievementDefinition is a static catalog entry. Immutable after load.
type AchievementDefinition struct {
	ID            string              `json:"id"`
	Category      AchievementCategory `json:"category"`
	Tier          Tier                `json:"tier"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Icon          string              `json:"icon,omitempty"`
	PointValue    int                 `json:"point_value"`
	Requirement   Requirement         `json:"requirement"`
	Prerequisites []string            `json:"prerequisites,omitempty"`
}

// UnlockedAchievement records when an achievement was earned.
// Created exactly once per achievement ID.
type UnlockedAchievement struct {
	ID            string    `json:"id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
	PointsAwarded int       `json:"points_awarded"`
}

// StatsSnapshot is an ad-hoc view of user stats passed to CheckAchievements.
// Metrics overlay the engine's stored progress for the duration of the
// check. UnlockedAchievements is the caller's view of what is already
// unlocked; it decides newlyUnlocked and prerequisite gating for the call.
type StatsSnapshot struct {
	Metrics              map[string]float64 `json:"metrics"`
	UnlockedAchievements []string           `json:"unlocked_achievements"`
}

// AchievementCheck is one entry of a CheckAchievements result.
type AchievementCheck struct {
	Achievement   AchievementDefinition `json:"achievement"`
	NewlyUnlocked bool                  `json:"newly_unlocked"`
}

// MetricProgress is progress toward one metric of a requirement.
type MetricProgress struct {
	Metric     string  `json:"metric"`
	Current    float64 `json:"current"`
	Target     float64 `json:"target"`
	Percentage int     `json:"percentage"`
}

// AchievementProgress summarizes progress toward a single achievement.
type AchievementProgress struct {
	Current    float64          `json:"current"`
	Target     float64          `json:"target"`
	Percentage int              `json:"percentage"`
	Completed  bool             `json:"completed"`
	Metrics    []MetricProgress `json:"metrics"`
}

// AchievementStatus is the display projection of one catalog entry.
type AchievementStatus struct {
	AchievementDefinition
	Unlocked   bool                `json:"unlocked"`
	UnlockedAt *time.Time          `json:"unlocked_at,omitempty"`
	Progress   AchievementProgress `json:"progress"`
}

// ─── Level Types ────────────────────────────────────────────────────────────

// LevelThreshold is one row of the fixed level table.
type LevelThreshold struct {
	Points int    `json:"points"`
	Level  int    `json:"level"`
	Title  string `json:"title"`
}

// LevelInfo is the user's derived level. Never stored.
type LevelInfo struct {
	Level          int     `json:"level"`
	Title          string  `json:"title"`
	Points         int     `json:"points"`
	PointsToNext   int     `json:"points_to_next"`
	NextLevelTitle string  `json:"next_level_title,omitempty"`
	ProgressPct    float64 `json:"progress_pct"`
}

// ─── Habit Types ────────────────────────────────────────────────────────────

// HabitRecord tracks completion history for one habit category.
// Days is sorted ascending and holds distinct DateKeys.
type HabitRecord struct {
	Category         string   `json:"category"`
	Days             []string `json:"days"`
	Streak           int      `json:"streak"`
	LongestStreak    int      `json:"longest_streak"`
	TotalCompletions int      `json:"total_completions"`
	LastCompleted    string   `json:"last_completed,omitempty"`
}

// Trend classifies recent completion momentum.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// HabitInsights is a HabitRecord enriched with derived metrics and advice.
type HabitInsights struct {
	HabitRecord
	CompletionRate int      `json:"completion_rate"`
	Consistency    int      `json:"consistency"`
	Trend          Trend    `json:"trend"`
	Insights       []string `json:"insights"`
}

// ─── Nudge Types ────────────────────────────────────────────────────────────

// NudgeType is the behavioral trigger behind a nudge.
type NudgeType string

const (
	NudgeReminder          NudgeType = "REMINDER"
	NudgeEncouragement     NudgeType = "ENCOURAGEMENT"
	NudgeStreakProtection  NudgeType = "STREAK_PROTECTION"
	NudgeComeback          NudgeType = "COMEBACK"
	NudgeAchievementUnlock NudgeType = "ACHIEVEMENT_UNLOCK"
	NudgeSocialProof       NudgeType = "SOCIAL_PROOF"
)

// Urgency ranks how pressing a nudge is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// NeverCompleted is the daysSinceLastCompleted sentinel for habits with no
// completions.
const NeverCompleted = 999

// NudgeContext carries optional overrides for nudge classification.
// Nil fields fall back to values derived from the habit record.
type NudgeContext struct {
	Streak                 *int   `json:"streak,omitempty"`
	DaysSinceLastCompleted *int   `json:"days_since_last_completed,omitempty"`
	RecentAchievement      string `json:"recent_achievement,omitempty"`
	FriendsActiveToday     int    `json:"friends_active_today,omitempty"`
}

// NudgeMessage is a generated motivational message.
type NudgeMessage struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Type      NudgeType `json:"type"`
	Urgency   Urgency   `json:"urgency"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Streak    int       `json:"streak"`
	CreatedAt time.Time `json:"created_at"`
}
