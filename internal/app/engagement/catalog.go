package engagement

import (
	"fmt"
	"slices"

	"github.com/pulsefit/pulse/internal/domain"
)

// Metric names fed by the tracker and referenced by the catalog.
const (
	MetricTotalWorkouts      = "totalWorkouts"
	MetricCurrentStreak      = "currentStreak"
	MetricLongestStreak      = "longestStreak"
	MetricMealsLogged        = "mealsLogged"
	MetricWaterGoalDays      = "waterGoalDays"
	MetricMeditationSessions = "meditationSessions"
	MetricSleepLogs          = "sleepLogs"
	MetricFriendsInvited     = "friendsInvited"
	MetricChallengesJoined   = "challengesJoined"
	MetricTotalDistanceKm    = "totalDistanceKm"
)

// Catalog is a validated, immutable set of achievement definitions.
type Catalog struct {
	defs []domain.AchievementDefinition
	byID map[string]int
}

// NewCatalog validates defs and builds a catalog.
func NewCatalog(defs []domain.AchievementDefinition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]domain.AchievementDefinition, 0, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("%w: definition with empty id", domain.ErrInvalidCatalog)
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidCatalog, def.ID)
		}
		if !def.Category.Valid() {
			return nil, fmt.Errorf("%w: %s has unknown category %q", domain.ErrInvalidCatalog, def.ID, def.Category)
		}
		if !def.Tier.Valid() {
			return nil, fmt.Errorf("%w: %s has invalid tier %d", domain.ErrInvalidCatalog, def.ID, def.Tier)
		}
		if def.PointValue <= 0 {
			return nil, fmt.Errorf("%w: %s point value must be positive", domain.ErrInvalidCatalog, def.ID)
		}
		if len(def.Requirement) == 0 {
			return nil, fmt.Errorf("%w: %s has no requirement", domain.ErrInvalidCatalog, def.ID)
		}
		for metric, threshold := range def.Requirement {
			if metric == "" || !(threshold > 0) {
				return nil, fmt.Errorf("%w: %s has invalid requirement %q=%v", domain.ErrInvalidCatalog, def.ID, metric, threshold)
			}
		}

		// The catalog must not alias caller maps or slices.
		req := make(domain.Requirement, len(def.Requirement))
		for k, v := range def.Requirement {
			req[k] = v
		}
		def.Requirement = req
		def.Prerequisites = slices.Clone(def.Prerequisites)

		c.byID[def.ID] = len(c.defs)
		c.defs = append(c.defs, def)
	}

	for _, def := range c.defs {
		for _, pre := range def.Prerequisites {
			if pre == def.ID {
				return nil, fmt.Errorf("%w: %s lists itself as prerequisite", domain.ErrInvalidCatalog, def.ID)
			}
			if _, ok := c.byID[pre]; !ok {
				return nil, fmt.Errorf("%w: %s requires unknown %s", domain.ErrInvalidCatalog, def.ID, pre)
			}
		}
	}
	if id, ok := c.findCycle(); ok {
		return nil, fmt.Errorf("%w: prerequisite cycle through %s", domain.ErrInvalidCatalog, id)
	}
	return c, nil
}

// Definitions returns the catalog in declaration order.
func (c *Catalog) Definitions() []domain.AchievementDefinition {
	return slices.Clone(c.defs)
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id string) (domain.AchievementDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.AchievementDefinition{}, false
	}
	return c.defs[i], true
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// findCycle reports an ID on a prerequisite cycle, if any.
func (c *Catalog) findCycle() (string, bool) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.defs))

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return false
		}
		state[id] = visiting
		def, _ := c.Lookup(id)
		for _, pre := range def.Prerequisites {
			if visit(pre) {
				return true
			}
		}
		state[id] = done
		return false
	}

	for _, def := range c.defs {
		if visit(def.ID) {
			return def.ID, true
		}
	}
	return "", false
}

// DefaultCatalog returns the built-in catalog. It panics if the built-in
// definitions are invalid, which is a programming error.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(AllAchievements())
	if err != nil {
		panic(err)
	}
	return c
}

// ─── Achievement Definitions ────────────────────────────────────────────────
// Point values follow tier: bronze 25, silver 50, gold 100, platinum 250,
// legendary 500.

// AllAchievements returns the full achievement catalog.
func AllAchievements() []domain.AchievementDefinition {
	return []domain.AchievementDefinition{
		// ── Workout ────────────────────────────────────────────────────
		{
			ID: "FIRST_WORKOUT", Category: domain.CatWorkout, Tier: domain.TierBronze,
			Title: "First Steps", Description: "Log your first workout.",
			Icon: "🏃", PointValue: 25,
			Requirement: domain.Requirement{MetricTotalWorkouts: 1},
		},
		{
			ID: "WORKOUT_10", Category: domain.CatWorkout, Tier: domain.TierSilver,
			Title: "Getting Stronger", Description: "Log 10 workouts.",
			Icon: "💪", PointValue: 50,
			Requirement:   domain.Requirement{MetricTotalWorkouts: 10},
			Prerequisites: []string{"FIRST_WORKOUT"},
		},
		{
			ID: "WORKOUT_50", Category: domain.CatWorkout, Tier: domain.TierGold,
			Title: "Gym Regular", Description: "Log 50 workouts.",
			Icon: "🏋️", PointValue: 100,
			Requirement:   domain.Requirement{MetricTotalWorkouts: 50},
			Prerequisites: []string{"WORKOUT_10"},
		},
		{
			ID: "WORKOUT_100", Category: domain.CatWorkout, Tier: domain.TierPlatinum,
			Title: "Centurion", Description: "Log 100 workouts.",
			Icon: "🏛️", PointValue: 250,
			Requirement:   domain.Requirement{MetricTotalWorkouts: 100},
			Prerequisites: []string{"WORKOUT_50"},
		},

		// ── Consistency ────────────────────────────────────────────────
		{
			ID: "STREAK_STARTER", Category: domain.CatConsistency, Tier: domain.TierBronze,
			Title: "Streak Starter", Description: "Keep a 3-day streak.",
			Icon: "🌱", PointValue: 25,
			Requirement: domain.Requirement{MetricCurrentStreak: 3},
		},
		{
			ID: "WEEK_WARRIOR", Category: domain.CatConsistency, Tier: domain.TierSilver,
			Title: "Week Warrior", Description: "Keep a 7-day streak.",
			Icon: "🔥", PointValue: 50,
			Requirement: domain.Requirement{MetricCurrentStreak: 7},
		},
		{
			ID: "FORTNIGHT_FORCE", Category: domain.CatConsistency, Tier: domain.TierGold,
			Title: "Fortnight Force", Description: "Keep a 14-day streak.",
			Icon: "📅", PointValue: 100,
			Requirement: domain.Requirement{MetricCurrentStreak: 14},
		},
		{
			ID: "MONTHLY_MASTER", Category: domain.CatConsistency, Tier: domain.TierPlatinum,
			Title: "Monthly Master", Description: "Keep a 30-day streak.",
			Icon: "🏆", PointValue: 250,
			Requirement:   domain.Requirement{MetricCurrentStreak: 30},
			Prerequisites: []string{"WEEK_WARRIOR"},
		},
		{
			ID: "UNSTOPPABLE", Category: domain.CatConsistency, Tier: domain.TierLegendary,
			Title: "Unstoppable", Description: "Keep a 100-day streak.",
			Icon: "⚡", PointValue: 500,
			Requirement:   domain.Requirement{MetricCurrentStreak: 100},
			Prerequisites: []string{"MONTHLY_MASTER"},
		},

		// ── Nutrition ──────────────────────────────────────────────────
		{
			ID: "FIRST_MEAL", Category: domain.CatNutrition, Tier: domain.TierBronze,
			Title: "Mindful Eater", Description: "Log your first meal.",
			Icon: "🥗", PointValue: 25,
			Requirement: domain.Requirement{MetricMealsLogged: 1},
		},
		{
			ID: "NUTRITION_TRACKER", Category: domain.CatNutrition, Tier: domain.TierSilver,
			Title: "Nutrition Tracker", Description: "Log meals on 50 days.",
			Icon: "📓", PointValue: 50,
			Requirement:   domain.Requirement{MetricMealsLogged: 50},
			Prerequisites: []string{"FIRST_MEAL"},
		},
		{
			ID: "HYDRATION_HERO", Category: domain.CatNutrition, Tier: domain.TierSilver,
			Title: "Hydration Hero", Description: "Hit your water goal on 7 days.",
			Icon: "💧", PointValue: 50,
			Requirement: domain.Requirement{MetricWaterGoalDays: 7},
		},
		{
			ID: "BALANCED_LIFESTYLE", Category: domain.CatNutrition, Tier: domain.TierGold,
			Title: "Balanced Lifestyle", Description: "Log meals on 100 days and hit your water goal on 30.",
			Icon: "⚖️", PointValue: 100,
			Requirement: domain.Requirement{MetricMealsLogged: 100, MetricWaterGoalDays: 30},
		},

		// ── Wellness ───────────────────────────────────────────────────
		{
			ID: "ZEN_BEGINNER", Category: domain.CatWellness, Tier: domain.TierBronze,
			Title: "Zen Beginner", Description: "Complete your first meditation.",
			Icon: "🧘", PointValue: 25,
			Requirement: domain.Requirement{MetricMeditationSessions: 1},
		},
		{
			ID: "WELL_RESTED", Category: domain.CatWellness, Tier: domain.TierSilver,
			Title: "Well Rested", Description: "Log sleep on 7 days.",
			Icon: "😴", PointValue: 50,
			Requirement: domain.Requirement{MetricSleepLogs: 7},
		},
		{
			ID: "MINDFUL_MONTH", Category: domain.CatWellness, Tier: domain.TierGold,
			Title: "Mindful Month", Description: "Meditate on 30 days and log sleep on 30.",
			Icon: "🌙", PointValue: 100,
			Requirement:   domain.Requirement{MetricMeditationSessions: 30, MetricSleepLogs: 30},
			Prerequisites: []string{"ZEN_BEGINNER"},
		},

		// ── Social ─────────────────────────────────────────────────────
		{
			ID: "SOCIAL_BUTTERFLY", Category: domain.CatSocial, Tier: domain.TierSilver,
			Title: "Social Butterfly", Description: "Invite 3 friends.",
			Icon: "🦋", PointValue: 50,
			Requirement: domain.Requirement{MetricFriendsInvited: 3},
		},
		{
			ID: "TEAM_PLAYER", Category: domain.CatSocial, Tier: domain.TierGold,
			Title: "Team Player", Description: "Join 5 group challenges.",
			Icon: "🤝", PointValue: 100,
			Requirement:   domain.Requirement{MetricChallengesJoined: 5},
			Prerequisites: []string{"SOCIAL_BUTTERFLY"},
		},

		// ── Milestone ──────────────────────────────────────────────────
		{
			ID: "MARATHONER", Category: domain.CatMilestone, Tier: domain.TierGold,
			Title: "Marathoner", Description: "Cover a cumulative 42.2 km.",
			Icon: "🏅", PointValue: 100,
			Requirement: domain.Requirement{MetricTotalDistanceKm: 42.2},
		},
		{
			ID: "IRON_WILL", Category: domain.CatMilestone, Tier: domain.TierLegendary,
			Title: "Iron Will", Description: "Log 365 workouts with a 60-day best streak.",
			Icon: "🛡️", PointValue: 500,
			Requirement:   domain.Requirement{MetricTotalWorkouts: 365, MetricLongestStreak: 60},
			Prerequisites: []string{"WORKOUT_100"},
		},
	}
}
