package engagement_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/pulse/internal/app/engagement"
	"github.com/pulsefit/pulse/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Catalog Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestCatalog_DefaultIsValid(t *testing.T) {
	c := engagement.DefaultCatalog()
	assert.Equal(t, 20, c.Len())

	tierPoints := map[domain.Tier]int{
		domain.TierBronze:    25,
		domain.TierSilver:    50,
		domain.TierGold:      100,
		domain.TierPlatinum:  250,
		domain.TierLegendary: 500,
	}
	for _, def := range c.Definitions() {
		assert.Equal(t, tierPoints[def.Tier], def.PointValue, "point value for %s", def.ID)
	}
}

func TestCatalog_Validation(t *testing.T) {
	base := func() domain.AchievementDefinition {
		return domain.AchievementDefinition{
			ID: "A", Category: domain.CatWorkout, Tier: domain.TierBronze,
			Title: "A", PointValue: 10, Requirement: domain.Requirement{"x": 1},
		}
	}
	tests := []struct {
		name string
		mut  func() []domain.AchievementDefinition
	}{
		{"empty id", func() []domain.AchievementDefinition {
			d := base()
			d.ID = ""
			return []domain.AchievementDefinition{d}
		}},
		{"duplicate id", func() []domain.AchievementDefinition {
			return []domain.AchievementDefinition{base(), base()}
		}},
		{"unknown category", func() []domain.AchievementDefinition {
			d := base()
			d.Category = "cardio"
			return []domain.AchievementDefinition{d}
		}},
		{"invalid tier", func() []domain.AchievementDefinition {
			d := base()
			d.Tier = 0
			return []domain.AchievementDefinition{d}
		}},
		{"zero points", func() []domain.AchievementDefinition {
			d := base()
			d.PointValue = 0
			return []domain.AchievementDefinition{d}
		}},
		{"empty requirement", func() []domain.AchievementDefinition {
			d := base()
			d.Requirement = nil
			return []domain.AchievementDefinition{d}
		}},
		{"zero threshold", func() []domain.AchievementDefinition {
			d := base()
			d.Requirement = domain.Requirement{"x": 0}
			return []domain.AchievementDefinition{d}
		}},
		{"unknown prerequisite", func() []domain.AchievementDefinition {
			d := base()
			d.Prerequisites = []string{"NOPE"}
			return []domain.AchievementDefinition{d}
		}},
		{"self prerequisite", func() []domain.AchievementDefinition {
			d := base()
			d.Prerequisites = []string{"A"}
			return []domain.AchievementDefinition{d}
		}},
		{"cycle", func() []domain.AchievementDefinition {
			a, b := base(), base()
			b.ID = "B"
			a.Prerequisites = []string{"B"}
			b.Prerequisites = []string{"A"}
			return []domain.AchievementDefinition{a, b}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engagement.NewCatalog(tt.mut())
			assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
		})
	}
}

func TestCatalog_DoesNotAliasInput(t *testing.T) {
	defs := []domain.AchievementDefinition{{
		ID: "A", Category: domain.CatWorkout, Tier: domain.TierBronze,
		PointValue: 10, Requirement: domain.Requirement{"x": 1},
	}}
	c, err := engagement.NewCatalog(defs)
	require.NoError(t, err)

	defs[0].Requirement["x"] = 99
	def, ok := c.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, 1.0, def.Requirement["x"])
}

// ═══════════════════════════════════════════════════════════════════════════
// Unlock Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestUnlock_NoDoubleUnlock(t *testing.T) {
	a, _ := newAchievements(t)

	first := a.UnlockAchievement("FIRST_WORKOUT")
	require.NotNil(t, first)
	assert.Equal(t, 25, first.PointsAwarded)
	assert.Equal(t, day0, first.UnlockedAt)

	assert.Nil(t, a.UnlockAchievement("FIRST_WORKOUT"))
	assert.Equal(t, 25, a.TotalPoints())
	require.NoError(t, a.CheckInvariants())
}

func TestUnlock_Rejections(t *testing.T) {
	a, _ := newAchievements(t)

	assert.Nil(t, a.UnlockAchievement("NOT_A_THING"))
	_, err := a.TryUnlock("NOT_A_THING")
	assert.ErrorIs(t, err, domain.ErrUnknownAchievement)

	assert.Nil(t, a.UnlockAchievement("WORKOUT_10"))
	_, err = a.TryUnlock("WORKOUT_10")
	assert.ErrorIs(t, err, domain.ErrPrerequisitesUnmet)

	a.UnlockAchievement("FIRST_WORKOUT")
	_, err = a.TryUnlock("FIRST_WORKOUT")
	assert.ErrorIs(t, err, domain.ErrAlreadyUnlocked)

	assert.Equal(t, 25, a.TotalPoints())
	assert.Len(t, a.Unlocked(), 1)
}

func TestUnlock_SubscribersNotified(t *testing.T) {
	a, _ := newAchievements(t)
	var ids []string
	a.OnUnlock(func(def domain.AchievementDefinition, rec domain.UnlockedAchievement) {
		ids = append(ids, def.ID)
	})
	a.UpdateProgress(engagement.MetricTotalWorkouts, 10)
	assert.Equal(t, []string{"FIRST_WORKOUT", "WORKOUT_10"}, ids)
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress-driven unlocking
// ═══════════════════════════════════════════════════════════════════════════

func TestUpdateProgress_CascadesThroughPrerequisites(t *testing.T) {
	a, _ := newAchievements(t)

	got := a.UpdateProgress(engagement.MetricTotalWorkouts, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "FIRST_WORKOUT", got[0].ID)
	assert.Equal(t, "WORKOUT_10", got[1].ID)
	assert.Equal(t, 75, a.TotalPoints())
}

func TestUpdateProgress_ToleratesDecrease(t *testing.T) {
	a, _ := newAchievements(t)
	a.UpdateProgress(engagement.MetricTotalWorkouts, 5)
	assert.Empty(t, a.UpdateProgress(engagement.MetricTotalWorkouts, 0))

	assert.True(t, a.IsUnlocked("FIRST_WORKOUT"))
	assert.Equal(t, 0.0, a.Metric(engagement.MetricTotalWorkouts))
}

func TestUpdateProgress_MultiMetricIsConjunctive(t *testing.T) {
	a, _ := newAchievements(t)
	a.UpdateProgress(engagement.MetricMealsLogged, 150)
	assert.False(t, a.IsUnlocked("BALANCED_LIFESTYLE"))

	a.UpdateProgress(engagement.MetricWaterGoalDays, 30)
	assert.True(t, a.IsUnlocked("BALANCED_LIFESTYLE"))
}

func TestUpdateProgress_IgnoresMalformed(t *testing.T) {
	a, _ := newAchievements(t)
	assert.Nil(t, a.UpdateProgress("", 5))
	assert.Empty(t, a.Metrics())
}

func TestIncrementMetric(t *testing.T) {
	a, _ := newAchievements(t)
	v, _ := a.IncrementMetric(engagement.MetricTotalDistanceKm, 21.1)
	assert.InDelta(t, 21.1, v, 1e-9)
	assert.False(t, a.IsUnlocked("MARATHONER"))

	_, got := a.IncrementMetric(engagement.MetricTotalDistanceKm, 21.1)
	require.Len(t, got, 1)
	assert.Equal(t, "MARATHONER", got[0].ID)
}

func TestHandleStreakMilestone(t *testing.T) {
	a, _ := newAchievements(t)
	got := a.HandleStreakMilestone(domain.StreakMilestone{Category: "workout", Count: 7})

	ids := make([]string, 0, len(got))
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"STREAK_STARTER", "WEEK_WARRIOR"}, ids)

	// Max-merge: a lower milestone does not lower the metric.
	a.HandleStreakMilestone(domain.StreakMilestone{Category: "sleep", Count: 3})
	assert.Equal(t, 7.0, a.Metric(engagement.MetricCurrentStreak))
}

// ═══════════════════════════════════════════════════════════════════════════
// CheckAchievements
// ═══════════════════════════════════════════════════════════════════════════

func checkIndex(checks []domain.AchievementCheck) map[string]bool {
	out := make(map[string]bool, len(checks))
	for _, c := range checks {
		out[c.Achievement.ID] = c.NewlyUnlocked
	}
	return out
}

func TestCheck_SnapshotPrerequisiteGating(t *testing.T) {
	a, _ := newAchievements(t)

	got := checkIndex(a.CheckAchievements(&domain.StatsSnapshot{
		Metrics:              map[string]float64{engagement.MetricTotalWorkouts: 10},
		UnlockedAchievements: []string{},
	}))
	assert.True(t, got["FIRST_WORKOUT"])
	_, listed := got["WORKOUT_10"]
	assert.False(t, listed, "WORKOUT_10 must not unlock without FIRST_WORKOUT in the snapshot")

	got = checkIndex(a.CheckAchievements(&domain.StatsSnapshot{
		Metrics:              map[string]float64{engagement.MetricTotalWorkouts: 10},
		UnlockedAchievements: []string{"FIRST_WORKOUT"},
	}))
	assert.False(t, got["FIRST_WORKOUT"])
	assert.True(t, got["WORKOUT_10"])
	assert.Equal(t, 75, a.TotalPoints())
}

func TestCheck_SnapshotViewDoesNotGrantPrerequisites(t *testing.T) {
	a, _ := newAchievements(t)

	got := checkIndex(a.CheckAchievements(&domain.StatsSnapshot{
		Metrics:              map[string]float64{engagement.MetricTotalWorkouts: 10},
		UnlockedAchievements: []string{"FIRST_WORKOUT"},
	}))
	assert.True(t, got["WORKOUT_10"], "reported against the caller's view")
	assert.False(t, a.IsUnlocked("FIRST_WORKOUT"))
	assert.False(t, a.IsUnlocked("WORKOUT_10"), "engine lacks FIRST_WORKOUT")
	assert.Equal(t, 0, a.TotalPoints())
	require.NoError(t, a.CheckInvariants())

	_, err := a.TryUnlock("WORKOUT_10")
	assert.ErrorIs(t, err, domain.ErrPrerequisitesUnmet)
}

func TestCheck_SnapshotMetricsNotStored(t *testing.T) {
	a, _ := newAchievements(t)
	a.CheckAchievements(&domain.StatsSnapshot{
		Metrics: map[string]float64{engagement.MetricFriendsInvited: 3},
	})
	assert.Equal(t, 0.0, a.Metric(engagement.MetricFriendsInvited))
	assert.True(t, a.IsUnlocked("SOCIAL_BUTTERFLY"))
}

func TestCheck_Reentrant(t *testing.T) {
	a, _ := newAchievements(t)
	a.UpdateProgress(engagement.MetricMealsLogged, 1)
	points := a.TotalPoints()

	snap := &domain.StatsSnapshot{Metrics: map[string]float64{engagement.MetricMealsLogged: 1}}
	for i := 0; i < 3; i++ {
		got := checkIndex(a.CheckAchievements(snap))
		assert.True(t, got["FIRST_MEAL"], "snapshot view has nothing unlocked")
	}
	assert.Equal(t, points, a.TotalPoints())
	require.NoError(t, a.CheckInvariants())
}

func TestCheck_EngineView(t *testing.T) {
	a, _ := newAchievements(t)
	a.UpdateProgress(engagement.MetricSleepLogs, 7)

	got := checkIndex(a.CheckAchievements(nil))
	assert.False(t, got["WELL_RESTED"])
	assert.Len(t, got, 1)
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress & Level
// ═══════════════════════════════════════════════════════════════════════════

func TestAchievementProgress_SingleMetric(t *testing.T) {
	a, _ := newAchievements(t)

	p, ok := a.AchievementProgress("WORKOUT_10", map[string]float64{engagement.MetricTotalWorkouts: 4})
	require.True(t, ok)
	assert.Equal(t, 4.0, p.Current)
	assert.Equal(t, 10.0, p.Target)
	assert.Equal(t, 40, p.Percentage)
	assert.False(t, p.Completed)

	p, _ = a.AchievementProgress("WORKOUT_10", map[string]float64{engagement.MetricTotalWorkouts: 25})
	assert.Equal(t, 25.0, p.Current)
	assert.Equal(t, 100, p.Percentage)
	assert.True(t, p.Completed)
}

func TestAchievementProgress_MultiMetricAverages(t *testing.T) {
	a, _ := newAchievements(t)
	p, ok := a.AchievementProgress("BALANCED_LIFESTYLE", map[string]float64{
		engagement.MetricMealsLogged:   50,
		engagement.MetricWaterGoalDays: 45,
	})
	require.True(t, ok)
	assert.Equal(t, 75, p.Percentage)
	assert.Equal(t, 80.0, p.Current)
	assert.Equal(t, 130.0, p.Target)
	require.Len(t, p.Metrics, 2)
	assert.Equal(t, engagement.MetricMealsLogged, p.Metrics[0].Metric)
}

func TestAchievementProgress_UnlockedIsCompleted(t *testing.T) {
	a, _ := newAchievements(t)
	a.UnlockAchievement("SOCIAL_BUTTERFLY")

	p, _ := a.AchievementProgress("SOCIAL_BUTTERFLY", map[string]float64{})
	assert.Equal(t, 0, p.Percentage)
	assert.True(t, p.Completed)

	_, ok := a.AchievementProgress("NOPE", nil)
	assert.False(t, ok)
}

func TestAchievementProgress_AlwaysClamped(t *testing.T) {
	a, _ := newAchievements(t)
	properties := gopter.NewProperties(nil)

	properties.Property("percentage within [0,100]", prop.ForAll(
		func(workouts, streak float64) bool {
			p, _ := a.AchievementProgress("IRON_WILL", map[string]float64{
				engagement.MetricTotalWorkouts: workouts,
				engagement.MetricLongestStreak: streak,
			})
			return p.Percentage >= 0 && p.Percentage <= 100
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))
	properties.TestingRun(t)
}

func TestLevelForPoints(t *testing.T) {
	tests := []struct {
		points    int
		level     int
		title     string
		toNext    int
		nextTitle string
	}{
		{-5, 1, "Beginner", 105, "Novice"},
		{0, 1, "Beginner", 100, "Novice"},
		{99, 1, "Beginner", 1, "Novice"},
		{100, 2, "Novice", 150, "Apprentice"},
		{2500, 6, "Athlete", 1000, "Champion"},
		{10000, 10, "Legend", 0, ""},
		{12000, 10, "Legend", 0, ""},
	}
	for _, tt := range tests {
		got := engagement.LevelForPoints(tt.points)
		assert.Equal(t, tt.level, got.Level, "level for %d", tt.points)
		assert.Equal(t, tt.title, got.Title, "title for %d", tt.points)
		assert.Equal(t, tt.toNext, got.PointsToNext, "to next for %d", tt.points)
		assert.Equal(t, tt.nextTitle, got.NextLevelTitle, "next title for %d", tt.points)
	}
	assert.InDelta(t, 50.0, engagement.LevelForPoints(175).ProgressPct, 0.01)
	assert.Equal(t, 250, engagement.PointsForLevel(3))
	assert.Equal(t, -1, engagement.PointsForLevel(11))
}

func TestLevel_Monotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("more points never lowers level", prop.ForAll(
		func(p1, delta int) bool {
			return engagement.LevelForPoints(p1).Level <= engagement.LevelForPoints(p1+delta).Level
		},
		gen.IntRange(-1000, 20000),
		gen.IntRange(0, 20000),
	))
	properties.TestingRun(t)
}

func TestAchievementsByCategory(t *testing.T) {
	a, _ := newAchievements(t)
	a.UnlockAchievement("FIRST_WORKOUT")

	byCat := a.AchievementsByCategory()
	assert.Len(t, byCat, len(domain.AchievementCategories))

	workout := byCat[domain.CatWorkout]
	require.Len(t, workout, 4)
	assert.Equal(t, "FIRST_WORKOUT", workout[0].ID)
	assert.True(t, workout[0].Unlocked)
	require.NotNil(t, workout[0].UnlockedAt)
	assert.True(t, workout[0].Progress.Completed)
	assert.False(t, workout[1].Unlocked)
	assert.Nil(t, workout[1].UnlockedAt)
}

// ═══════════════════════════════════════════════════════════════════════════
// Invariants & Restore
// ═══════════════════════════════════════════════════════════════════════════

func TestInvariant_PointsEqualSumUnderRandomUnlocks(t *testing.T) {
	defs := engagement.DefaultCatalog().Definitions()
	properties := gopter.NewProperties(nil)

	properties.Property("total points equals sum of awarded", prop.ForAll(
		func(picks []int) bool {
			a, _ := newAchievements(t)
			for _, i := range picks {
				a.UnlockAchievement(defs[i].ID)
				a.UpdateProgress(engagement.MetricTotalWorkouts, float64(i*7))
			}
			sum := 0
			for _, rec := range a.Unlocked() {
				sum += rec.PointsAwarded
			}
			return a.CheckInvariants() == nil && sum == a.TotalPoints()
		},
		gen.SliceOf(gen.IntRange(0, len(defs)-1)),
	))
	properties.TestingRun(t)
}

func TestRestore_RepairsPoints(t *testing.T) {
	a, _ := newAchievements(t)
	a.Restore(engagement.AchievementState{
		Metrics: map[string]float64{engagement.MetricTotalWorkouts: 3},
		Unlocked: []domain.UnlockedAchievement{
			{ID: "FIRST_WORKOUT", UnlockedAt: day0, PointsAwarded: 25},
			{ID: "FIRST_WORKOUT", UnlockedAt: day0, PointsAwarded: 25},
			{ID: "RETIRED", UnlockedAt: day0, PointsAwarded: 1000},
		},
		TotalPoints: 9999,
	})
	assert.Equal(t, 25, a.TotalPoints())
	assert.Len(t, a.Unlocked(), 1)
	assert.Equal(t, 3.0, a.Metric(engagement.MetricTotalWorkouts))
	require.NoError(t, a.CheckInvariants())
}
