package engagement

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pulsefit/pulse/internal/app/progress"
	"github.com/pulsefit/pulse/internal/domain"
)

// NudgeConfig tunes the habit engine windows.
type NudgeConfig struct {
	CompletionWindowDays int
	TrendWindowDays      int
	HistoryLimit         int
}

// DefaultNudgeConfig returns the default windows: a 30-day completion
// rate, a 14-day trend and the 50 most recent nudges.
func DefaultNudgeConfig() NudgeConfig {
	return NudgeConfig{
		CompletionWindowDays: 30,
		TrendWindowDays:      14,
		HistoryLimit:         50,
	}
}

func (c NudgeConfig) withDefaults() NudgeConfig {
	d := DefaultNudgeConfig()
	if c.CompletionWindowDays <= 0 {
		c.CompletionWindowDays = d.CompletionWindowDays
	}
	if c.TrendWindowDays <= 0 {
		c.TrendWindowDays = d.TrendWindowDays
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	return c
}

// NudgeState is the serializable form of a NudgeEngine.
type NudgeState struct {
	Habits  map[string]domain.HabitRecord `json:"habits"`
	History []domain.NudgeMessage         `json:"history"`
}

// NudgeEngine tracks per-category habit history, derives insights, and
// classifies the user's state into motivational nudges.
type NudgeEngine struct {
	clock     domain.Clock
	rng       *rand.Rand
	cfg       NudgeConfig
	templates Templates
	habits    map[string]*domain.HabitRecord
	history   []domain.NudgeMessage
}

// NewNudgeEngine creates a nudge engine. A nil rng is seeded from the
// clock, so pass a seeded source when message choice must be repeatable.
func NewNudgeEngine(clock domain.Clock, rng *rand.Rand, cfg NudgeConfig) *NudgeEngine {
	if rng == nil {
		seed := uint64(clock.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &NudgeEngine{
		clock:     clock,
		rng:       rng,
		cfg:       cfg.withDefaults(),
		templates: DefaultTemplates(),
		habits:    make(map[string]*domain.HabitRecord),
	}
}

// SetTemplates replaces the message table.
func (n *NudgeEngine) SetTemplates(t Templates) {
	n.templates = t
}

// TrackHabit records a completion for category on the calendar day of ts.
// Repeat calls for the same day are no-ops. A zero ts means now. The bool
// reports whether a new day was recorded.
func (n *NudgeEngine) TrackHabit(category string, completed bool, ts time.Time) (domain.HabitRecord, bool) {
	category = normalizeCategory(category)
	if category == "" {
		return domain.HabitRecord{}, false
	}
	if !completed {
		return n.Habit(category), false
	}
	if ts.IsZero() {
		ts = n.clock.Now()
	}
	rec := n.habit(category)
	key := domain.DateKey(ts)

	days, added := progress.InsertDay(rec.Days, key)
	if !added {
		return cloneHabit(rec), false
	}
	rec.Days = days
	rec.TotalCompletions = len(days)
	if rec.LastCompleted == "" || key > rec.LastCompleted {
		rec.LastCompleted = key
	}
	rec.Streak = progress.RunEndingAt(days, key)
	rec.LongestStreak = max(rec.LongestStreak, progress.LongestRun(days))
	return cloneHabit(rec), true
}

// Habit returns a copy of the record for category.
func (n *NudgeEngine) Habit(category string) domain.HabitRecord {
	category = normalizeCategory(category)
	if rec, ok := n.habits[category]; ok {
		return cloneHabit(rec)
	}
	return domain.HabitRecord{Category: category, Days: []string{}}
}

// Habits returns copies of all habit records sorted by category.
func (n *NudgeEngine) Habits() []domain.HabitRecord {
	out := make([]domain.HabitRecord, 0, len(n.habits))
	for _, rec := range n.habits {
		out = append(out, cloneHabit(rec))
	}
	slices.SortFunc(out, func(a, b domain.HabitRecord) int {
		switch {
		case a.Category < b.Category:
			return -1
		case a.Category > b.Category:
			return 1
		}
		return 0
	})
	return out
}

// DaysSinceLastCompleted returns whole calendar days since the last
// completion, or domain.NeverCompleted.
func (n *NudgeEngine) DaysSinceLastCompleted(category string) int {
	rec, ok := n.habits[normalizeCategory(category)]
	if !ok || rec.LastCompleted == "" {
		return domain.NeverCompleted
	}
	return max(domain.DaysBetween(rec.LastCompleted, domain.DateKey(n.clock.Now())), 0)
}

// GenerateNudge classifies category's state and renders a message. Fields
// set in nctx override the values derived from the habit record. Rules
// are checked in order and the first match wins:
//
//  1. streak >= 7 and last completed yesterday: STREAK_PROTECTION
//  2. streak >= 3 and completed today: ENCOURAGEMENT
//  3. 3+ days since last completion: COMEBACK
//  4. recent achievement: ACHIEVEMENT_UNLOCK
//  5. friends active today: SOCIAL_PROOF
//  6. otherwise: REMINDER
func (n *NudgeEngine) GenerateNudge(category string, nctx domain.NudgeContext) domain.NudgeMessage {
	category = normalizeCategory(category)
	if category == "" {
		return domain.NudgeMessage{}
	}
	now := n.clock.Now()

	streak := n.Habit(category).Streak
	if nctx.Streak != nil {
		streak = *nctx.Streak
	}
	daysSince := n.DaysSinceLastCompleted(category)
	if nctx.DaysSinceLastCompleted != nil {
		daysSince = *nctx.DaysSinceLastCompleted
	}

	typ, urgency := classify(streak, daysSince, nctx)
	vars := templateVars{
		streak:      streak,
		days:        daysSince,
		achievement: nctx.RecentAchievement,
		category:    category,
		friends:     nctx.FriendsActiveToday,
		greeting:    greetings[timeSlot(now.Hour())],
	}
	tpl := n.pick(typ, category, vars)

	msg := domain.NudgeMessage{
		ID:        uuid.NewString(),
		Category:  category,
		Type:      typ,
		Urgency:   urgency,
		Title:     vars.render(tpl.Title),
		Message:   vars.render(tpl.Body),
		Streak:    streak,
		CreatedAt: now,
	}
	n.history = append(n.history, msg)
	if over := len(n.history) - n.cfg.HistoryLimit; over > 0 {
		n.history = slices.Delete(n.history, 0, over)
	}
	return msg
}

func classify(streak, daysSince int, nctx domain.NudgeContext) (domain.NudgeType, domain.Urgency) {
	switch {
	case streak >= 7 && daysSince == 1:
		return domain.NudgeStreakProtection, domain.UrgencyHigh
	case streak >= 3 && daysSince == 0:
		return domain.NudgeEncouragement, domain.UrgencyMedium
	case daysSince >= 3:
		return domain.NudgeComeback, domain.UrgencyHigh
	case nctx.RecentAchievement != "":
		return domain.NudgeAchievementUnlock, domain.UrgencyMedium
	case nctx.FriendsActiveToday > 0:
		return domain.NudgeSocialProof, domain.UrgencyLow
	default:
		return domain.NudgeReminder, domain.UrgencyLow
	}
}

// pick chooses a template at random, stepping past the candidate that
// would repeat the last message sent for the category.
func (n *NudgeEngine) pick(typ domain.NudgeType, category string, vars templateVars) Template {
	candidates := n.templates.Lookup(typ, category)
	if len(candidates) == 0 {
		return Template{Title: string(typ), Body: "Keep going with {category}!"}
	}
	i := n.rng.IntN(len(candidates))
	if len(candidates) > 1 {
		if last, ok := n.lastFor(category); ok && vars.render(candidates[i].Body) == last.Message {
			i = (i + 1) % len(candidates)
		}
	}
	return candidates[i]
}

func (n *NudgeEngine) lastFor(category string) (domain.NudgeMessage, bool) {
	for i := len(n.history) - 1; i >= 0; i-- {
		if n.history[i].Category == category {
			return n.history[i], true
		}
	}
	return domain.NudgeMessage{}, false
}

// History returns generated nudges, oldest first.
func (n *NudgeEngine) History() []domain.NudgeMessage {
	return slices.Clone(n.history)
}

// Insight messages, in rule order.
const (
	InsightBuildMomentum = "You're completing this habit less than half the time. Start small and build momentum."
	InsightExcellent     = "Excellent consistency! You're completing this habit most days."
	InsightStreakGoals   = "Your completions are scattered. Try setting a short streak goal, like 3 days in a row."
	InsightDeclining     = "Your activity has dropped over the past week. Don't let it slip away."
	InsightImproving     = "You're trending upward. Keep riding that momentum!"
	InsightHabitForming  = "A week or more in a row. This is becoming a real habit."
)

// HabitInsights derives completion rate, consistency, trend, and advice
// for category. Unknown categories yield an empty record.
func (n *NudgeEngine) HabitInsights(category string) domain.HabitInsights {
	rec := n.Habit(category)
	today := domain.DateKey(n.clock.Now())

	ins := domain.HabitInsights{
		HabitRecord:    rec,
		CompletionRate: progress.Rate(rec.Days, today, n.cfg.CompletionWindowDays),
		Consistency:    progress.ConsistencyScore(rec.Days),
		Trend:          progress.TrendOver(rec.Days, today, n.cfg.TrendWindowDays),
		Insights:       []string{},
	}
	if ins.CompletionRate < 50 {
		ins.Insights = append(ins.Insights, InsightBuildMomentum)
	}
	if ins.CompletionRate >= 80 {
		ins.Insights = append(ins.Insights, InsightExcellent)
	}
	if ins.Consistency < 40 {
		ins.Insights = append(ins.Insights, InsightStreakGoals)
	}
	switch ins.Trend {
	case domain.TrendDeclining:
		ins.Insights = append(ins.Insights, InsightDeclining)
	case domain.TrendImproving:
		ins.Insights = append(ins.Insights, InsightImproving)
	}
	// A streak whose last day is before yesterday has already lapsed.
	if rec.Streak >= 7 && domain.DaysBetween(rec.LastCompleted, today) <= 1 {
		ins.Insights = append(ins.Insights, InsightHabitForming)
	}
	return ins
}

// Snapshot returns the engine's serializable state.
func (n *NudgeEngine) Snapshot() NudgeState {
	st := NudgeState{
		Habits:  make(map[string]domain.HabitRecord, len(n.habits)),
		History: slices.Clone(n.history),
	}
	for cat, rec := range n.habits {
		st.Habits[cat] = cloneHabit(rec)
	}
	return st
}

// Restore replaces engine state. Day sets are re-sorted and deduplicated
// and derived fields recomputed.
func (n *NudgeEngine) Restore(st NudgeState) {
	n.Reset()
	for cat, rec := range st.Habits {
		cat = normalizeCategory(cat)
		if cat == "" {
			continue
		}
		var days []string
		for _, d := range rec.Days {
			if _, err := domain.ParseDateKey(d); err != nil {
				continue
			}
			days, _ = progress.InsertDay(days, d)
		}
		r := &domain.HabitRecord{
			Category:         cat,
			Days:             days,
			TotalCompletions: len(days),
			LongestStreak:    max(rec.LongestStreak, progress.LongestRun(days)),
		}
		if len(days) > 0 {
			r.LastCompleted = days[len(days)-1]
			r.Streak = rec.Streak
			if r.Streak <= 0 || r.Streak > r.LongestStreak {
				r.Streak = progress.RunEndingAt(days, r.LastCompleted)
			}
		}
		n.habits[cat] = r
	}
	n.history = slices.Clone(st.History)
	if over := len(n.history) - n.cfg.HistoryLimit; over > 0 {
		n.history = slices.Delete(n.history, 0, over)
	}
}

// Reset clears all habits and nudge history.
func (n *NudgeEngine) Reset() {
	n.habits = make(map[string]*domain.HabitRecord)
	n.history = nil
}

func (n *NudgeEngine) habit(category string) *domain.HabitRecord {
	rec, ok := n.habits[category]
	if !ok {
		rec = &domain.HabitRecord{Category: category}
		n.habits[category] = rec
	}
	return rec
}

func cloneHabit(rec *domain.HabitRecord) domain.HabitRecord {
	out := *rec
	out.Days = slices.Clone(rec.Days)
	if out.Days == nil {
		out.Days = []string{}
	}
	return out
}
