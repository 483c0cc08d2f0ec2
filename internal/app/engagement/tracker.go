package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/pulsefit/pulse/internal/domain"
	"github.com/pulsefit/pulse/internal/infra/metrics"
	"github.com/pulsefit/pulse/internal/logger"
)

// stateVersion is bumped when the persisted blob changes shape.
const stateVersion = 1

// completionMetrics maps a habit category to the count metric a newly
// recorded day increments.
var completionMetrics = map[string]string{
	"workout":    MetricTotalWorkouts,
	"nutrition":  MetricMealsLogged,
	"hydration":  MetricWaterGoalDays,
	"meditation": MetricMeditationSessions,
	"sleep":      MetricSleepLogs,
}

// CompletionMetric returns the count metric fed by category, if any.
func CompletionMetric(category string) (string, bool) {
	m, ok := completionMetrics[normalizeCategory(category)]
	return m, ok
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	UserKey          string
	Store            domain.Store
	Clock            domain.Clock
	Catalog          *Catalog
	StreakMilestones []int
	Nudge            NudgeConfig
	Rand             *rand.Rand
	Logger           *logger.Logger
	// SaveTimeout bounds one store write. Zero means 5s.
	SaveTimeout time.Duration
}

// CompletionResult summarizes one RecordCompletion call.
type CompletionResult struct {
	Category        string                         `json:"category"`
	NewDay          bool                           `json:"new_day"`
	Streak          int                            `json:"streak"`
	Habit           domain.HabitRecord             `json:"habit"`
	NewAchievements []domain.AchievementDefinition `json:"new_achievements"`
	Level           domain.LevelInfo               `json:"level"`
}

// persistedState is the JSON blob written to the store.
type persistedState struct {
	Version      int                           `json:"version"`
	Streaks      map[string]domain.StreakState `json:"streaks"`
	Achievements AchievementState              `json:"achievements"`
	Nudges       NudgeState                    `json:"nudges"`
	SavedAt      time.Time                     `json:"saved_at"`
}

// Tracker composes the streak, achievement, and nudge engines for one
// user and persists their state after every mutation. Methods are safe
// for concurrent use; calls are serialized.
//
// Store failures never surface from mutations. Load degrades to empty
// state and saves are retried once, then logged.
type Tracker struct {
	mu           sync.Mutex
	key          string
	store        domain.Store
	clock        domain.Clock
	log          *logger.Logger
	saveTimeout  time.Duration
	streaks      *StreakEngine
	achievements *AchievementEngine
	nudges       *NudgeEngine

	pending       []domain.AchievementDefinition // unlocks since last drain
	lastUnlock    string                         // title of the most recent unlock
	lastUnlockDay string

	lastSave    time.Time
	lastSaveErr error
}

// NewTracker wires the engines together. Store, Clock, and Logger are
// required; everything else has defaults.
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.UserKey == "" {
		opts.UserKey = "default"
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	t := &Tracker{
		key:          StateKey(opts.UserKey),
		store:        opts.Store,
		clock:        opts.Clock,
		log:          opts.Logger.With("user", opts.UserKey),
		saveTimeout:  opts.SaveTimeout,
		streaks:      NewStreakEngine(opts.Clock, opts.StreakMilestones),
		achievements: NewAchievementEngine(opts.Clock, opts.Catalog),
		nudges:       NewNudgeEngine(opts.Clock, opts.Rand, opts.Nudge),
	}

	t.streaks.Subscribe(func(ev domain.StreakMilestone) {
		metrics.StreakMilestones.WithLabelValues(ev.Category, strconv.Itoa(ev.Count)).Inc()
		t.log.Info("streak milestone", "category", ev.Category, "count", ev.Count)
		t.achievements.HandleStreakMilestone(ev)
	})
	t.achievements.OnUnlock(func(def domain.AchievementDefinition, rec domain.UnlockedAchievement) {
		metrics.AchievementsUnlocked.WithLabelValues(string(def.Category), def.Tier.String()).Inc()
		t.log.Info("achievement unlocked", "id", def.ID, "tier", def.Tier.String(), "points", rec.PointsAwarded)
		t.pending = append(t.pending, def)
		t.lastUnlock = def.Title
		t.lastUnlockDay = domain.DateKey(rec.UnlockedAt)
	})
	return t
}

// StateKey returns the store key for a user's state blob.
func StateKey(userKey string) string {
	return "pulse:user:" + userKey + ":state"
}

// ─── Persistence ────────────────────────────────────────────────────────────

// Load rehydrates state from the store. Missing, unreadable, or corrupt
// data leaves the engines empty; Load never fails.
func (t *Tracker) Load(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetEngines()
	blob, err := t.store.Get(ctx, t.key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.StoreLoads.WithLabelValues("empty").Inc()
		t.log.Debug("no saved state, starting fresh")
		return
	case err != nil:
		metrics.StoreLoads.WithLabelValues("failed").Inc()
		t.log.Warn("load state failed, starting fresh", "error", err)
		return
	}

	var st persistedState
	if err := json.Unmarshal(blob, &st); err != nil {
		metrics.StoreLoads.WithLabelValues("failed").Inc()
		t.log.Warn("decode state failed, starting fresh", "error", err)
		return
	}
	t.streaks.Restore(st.Streaks)
	t.achievements.Restore(st.Achievements)
	t.nudges.Restore(st.Nudges)
	t.pending = nil
	t.syncGauges()
	metrics.StoreLoads.WithLabelValues("ok").Inc()
	t.log.Info("state loaded",
		"unlocked", len(st.Achievements.Unlocked),
		"points", t.achievements.TotalPoints(),
		"habits", len(st.Nudges.Habits))
}

// Flush writes the current state and returns any store error.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.save(ctx)
}

// LastSave reports when state was last written and the last write error.
func (t *Tracker) LastSave() (time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSave, t.lastSaveErr
}

// Reset clears all state and removes the stored blob.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetEngines()
	t.syncGauges()
	if err := t.store.Remove(ctx, t.key); err != nil {
		t.log.Error("remove state failed", "error", err)
		return fmt.Errorf("remove state: %w", err)
	}
	t.log.Info("state reset")
	return nil
}

func (t *Tracker) resetEngines() {
	t.streaks.Reset()
	t.achievements.Reset()
	t.nudges.Reset()
	t.pending = nil
	t.lastUnlock = ""
	t.lastUnlockDay = ""
}

// persist saves after a mutation. Failures are logged, never returned:
// in-memory state stays authoritative and the next mutation retries.
func (t *Tracker) persist(ctx context.Context) {
	if err := t.save(ctx); err != nil {
		t.log.Error("save state failed", "error", err)
	}
}

func (t *Tracker) save(ctx context.Context) error {
	st := persistedState{
		Version:      stateVersion,
		Streaks:      t.streaks.Snapshot(),
		Achievements: t.achievements.Snapshot(),
		Nudges:       t.nudges.Snapshot(),
		SavedAt:      t.clock.Now(),
	}
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	start := time.Now()
	err = t.write(ctx, blob)
	if err != nil {
		t.log.Warn("save state failed, retrying", "error", err)
		err = t.write(ctx, blob)
		if err == nil {
			metrics.StoreWrites.WithLabelValues("retried").Inc()
		}
	} else {
		metrics.StoreWrites.WithLabelValues("ok").Inc()
	}
	metrics.StoreWriteLatency.Observe(time.Since(start).Seconds())

	t.lastSaveErr = err
	if err != nil {
		metrics.StoreWrites.WithLabelValues("failed").Inc()
		return fmt.Errorf("save state: %w", err)
	}
	t.lastSave = st.SavedAt
	return nil
}

func (t *Tracker) write(ctx context.Context, blob []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.saveTimeout)
	defer cancel()
	return t.store.Set(ctx, t.key, blob)
}

func (t *Tracker) syncGauges() {
	metrics.PointsTotal.Set(float64(t.achievements.TotalPoints()))
	metrics.UserLevel.Set(float64(t.achievements.UserLevel().Level))
}

// drain returns and clears unlocks recorded since the last drain.
func (t *Tracker) drain() []domain.AchievementDefinition {
	out := t.pending
	t.pending = nil
	t.syncGauges()
	return out
}

// ─── Streaks ────────────────────────────────────────────────────────────────

// UpdateStreak records whether category was completed on ts's day and
// syncs the streak metrics. A zero ts means now.
func (t *Tracker) UpdateStreak(ctx context.Context, category string, completed bool, ts time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.updateStreak(category, completed, ts)
	t.drain()
	t.persist(ctx)
	return n
}

func (t *Tracker) updateStreak(category string, completed bool, ts time.Time) int {
	n := t.streaks.UpdateStreak(category, completed, ts)
	current, longest := t.streaks.Max()
	t.achievements.UpdateProgress(MetricCurrentStreak, float64(current))
	if float64(longest) > t.achievements.Metric(MetricLongestStreak) {
		t.achievements.UpdateProgress(MetricLongestStreak, float64(longest))
	}
	return n
}

// CurrentStreak returns the current streak for category.
func (t *Tracker) CurrentStreak(category string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaks.CurrentStreak(category)
}

// LongestStreak returns the longest streak for category.
func (t *Tracker) LongestStreak(category string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaks.LongestStreak(category)
}

// Streaks returns all streak states keyed by category.
func (t *Tracker) Streaks() map[string]domain.StreakState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaks.Snapshot()
}

// StreakState returns the stored streak for category, normalized the same
// way UpdateStreak normalizes it.
func (t *Tracker) StreakState(category string) domain.StreakState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaks.State(category)
}

// Milestones returns the configured streak milestone thresholds.
func (t *Tracker) Milestones() []int {
	return t.streaks.Milestones()
}

// ─── Achievements ───────────────────────────────────────────────────────────

// UpdateProgress overwrites a metric and returns newly unlocked achievements.
func (t *Tracker) UpdateProgress(ctx context.Context, metric string, value float64) []domain.AchievementDefinition {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.achievements.UpdateProgress(metric, value)
	out := t.drain()
	t.persist(ctx)
	return out
}

// IncrementMetric adds delta to a metric and returns the new value and
// newly unlocked achievements.
func (t *Tracker) IncrementMetric(ctx context.Context, metric string, delta float64) (float64, []domain.AchievementDefinition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, _ := t.achievements.IncrementMetric(metric, delta)
	out := t.drain()
	t.persist(ctx)
	return v, out
}

// Metrics returns all stored metric values.
func (t *Tracker) Metrics() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.achievements.Metrics()
}

// CheckAchievements evaluates the catalog; see AchievementEngine.CheckAchievements.
func (t *Tracker) CheckAchievements(ctx context.Context, snapshot *domain.StatsSnapshot) []domain.AchievementCheck {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.achievements.CheckAchievements(snapshot)
	if len(t.drain()) > 0 {
		t.persist(ctx)
	}
	return out
}

// UnlockAchievement explicitly unlocks id, returning nil when it cannot.
func (t *Tracker) UnlockAchievement(ctx context.Context, id string) *domain.UnlockedAchievement {
	rec, _ := t.TryUnlockAchievement(ctx, id)
	return rec
}

// TryUnlockAchievement is UnlockAchievement with the rejection reason.
func (t *Tracker) TryUnlockAchievement(ctx context.Context, id string) (*domain.UnlockedAchievement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.achievements.TryUnlock(id)
	if err != nil {
		return nil, err
	}
	t.drain()
	t.persist(ctx)
	return rec, nil
}

// AchievementProgress reports progress toward id. Nil metrics use stored values.
func (t *Tracker) AchievementProgress(id string, m map[string]float64) (domain.AchievementProgress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.achievements.AchievementProgress(id, m)
}

// UserLevel returns the level derived from total points.
func (t *Tracker) UserLevel() domain.LevelInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.achievements.UserLevel()
}

// TotalPoints returns cumulative achievement points.
func (t *Tracker) TotalPoints() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.achievements.TotalPoints()
}

// AchievementsByCategory returns the display projection of the catalog.
func (t *Tracker) AchievementsByCategory() map[domain.AchievementCategory][]domain.AchievementStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.achievements.AchievementsByCategory()
}

// Unlocked returns unlock history, oldest first.
func (t *Tracker) Unlocked() []domain.UnlockedAchievement {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.achievements.Unlocked()
}

// CheckInvariants verifies the points invariant.
func (t *Tracker) CheckInvariants() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.achievements.CheckInvariants()
}

// ─── Habits & Nudges ────────────────────────────────────────────────────────

// TrackHabit records a habit completion and returns the updated record.
func (t *Tracker) TrackHabit(ctx context.Context, category string, completed bool, ts time.Time) domain.HabitRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, added := t.nudges.TrackHabit(category, completed, ts)
	if added {
		metrics.HabitCompletions.WithLabelValues(rec.Category).Inc()
		t.persist(ctx)
	}
	return rec
}

// GenerateNudge produces a nudge for category. When nctx names no recent
// achievement, one unlocked today is filled in.
func (t *Tracker) GenerateNudge(ctx context.Context, category string, nctx domain.NudgeContext) domain.NudgeMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	if nctx.RecentAchievement == "" && t.lastUnlock != "" &&
		t.lastUnlockDay == domain.DateKey(t.clock.Now()) {
		nctx.RecentAchievement = t.lastUnlock
	}
	msg := t.nudges.GenerateNudge(category, nctx)
	if msg.ID == "" {
		return msg
	}
	metrics.NudgesGenerated.WithLabelValues(string(msg.Type)).Inc()
	t.persist(ctx)
	return msg
}

// HabitInsights returns derived metrics and advice for category.
func (t *Tracker) HabitInsights(category string) domain.HabitInsights {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nudges.HabitInsights(category)
}

// Habits returns all habit records.
func (t *Tracker) Habits() []domain.HabitRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nudges.Habits()
}

// NudgeHistory returns generated nudges, oldest first.
func (t *Tracker) NudgeHistory() []domain.NudgeMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nudges.History()
}

// RecordCompletion is the "activity logged" entry point: it extends the
// streak, records the habit day, and bumps the category's count metric
// when the day is new. One save covers all of it.
func (t *Tracker) RecordCompletion(ctx context.Context, category string, ts time.Time) (CompletionResult, error) {
	category = normalizeCategory(category)
	if category == "" {
		return CompletionResult{}, fmt.Errorf("%w: empty", domain.ErrInvalidCategory)
	}
	if ts.IsZero() {
		ts = t.clock.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	streak := t.updateStreak(category, true, ts)
	rec, added := t.nudges.TrackHabit(category, true, ts)
	if added {
		metrics.HabitCompletions.WithLabelValues(category).Inc()
		if metric, ok := completionMetrics[category]; ok {
			t.achievements.IncrementMetric(metric, 1)
		}
	}

	res := CompletionResult{
		Category:        category,
		NewDay:          added,
		Streak:          streak,
		Habit:           rec,
		NewAchievements: t.drain(),
		Level:           t.achievements.UserLevel(),
	}
	t.persist(ctx)
	t.log.Debug("completion recorded", "category", category, "streak", streak, "new_day", added)
	return res, nil
}
