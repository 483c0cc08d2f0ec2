package engagement

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/pulsefit/pulse/internal/app/progress"
	"github.com/pulsefit/pulse/internal/domain"
)

// AchievementEngine tracks metric progress and unlocks catalog entries
// exactly once. Both UpdateProgress and CheckAchievements funnel into
// evaluate, so the two pathways share one set of unlock rules.
type AchievementEngine struct {
	clock       domain.Clock
	catalog     *Catalog
	metrics     map[string]float64
	unlocked    map[string]domain.UnlockedAchievement
	order       []string // unlock order
	totalPoints int
	subscribers []func(domain.AchievementDefinition, domain.UnlockedAchievement)
}

// AchievementState is the serializable form of an AchievementEngine.
type AchievementState struct {
	Metrics     map[string]float64           `json:"metrics"`
	Unlocked    []domain.UnlockedAchievement `json:"unlocked"`
	TotalPoints int                          `json:"total_points"`
}

// NewAchievementEngine creates an engine over catalog. A nil catalog uses
// DefaultCatalog.
func NewAchievementEngine(clock domain.Clock, catalog *Catalog) *AchievementEngine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &AchievementEngine{
		clock:    clock,
		catalog:  catalog,
		metrics:  make(map[string]float64),
		unlocked: make(map[string]domain.UnlockedAchievement),
	}
}

// Catalog returns the engine's catalog.
func (a *AchievementEngine) Catalog() *Catalog {
	return a.catalog
}

// OnUnlock registers fn to be called synchronously for every unlock.
func (a *AchievementEngine) OnUnlock(fn func(domain.AchievementDefinition, domain.UnlockedAchievement)) {
	a.subscribers = append(a.subscribers, fn)
}

// UpdateProgress overwrites metric with value and unlocks every newly
// eligible achievement. Decreases are accepted. Returns what was unlocked.
func (a *AchievementEngine) UpdateProgress(metric string, value float64) []domain.AchievementDefinition {
	metric = strings.TrimSpace(metric)
	if metric == "" || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	a.metrics[metric] = value
	return a.evaluateStored()
}

// IncrementMetric adds delta to metric and re-evaluates. Returns the new
// value and what was unlocked.
func (a *AchievementEngine) IncrementMetric(metric string, delta float64) (float64, []domain.AchievementDefinition) {
	metric = strings.TrimSpace(metric)
	if metric == "" {
		return 0, nil
	}
	next := a.metrics[metric] + delta
	return next, a.UpdateProgress(metric, next)
}

// Metric returns the stored value for metric (0 if unset).
func (a *AchievementEngine) Metric(metric string) float64 {
	return a.metrics[metric]
}

// Metrics returns a copy of all stored metrics.
func (a *AchievementEngine) Metrics() map[string]float64 {
	return maps.Clone(a.metrics)
}

// HandleStreakMilestone raises the streak metrics to at least the
// milestone count and re-evaluates.
func (a *AchievementEngine) HandleStreakMilestone(ev domain.StreakMilestone) []domain.AchievementDefinition {
	count := float64(ev.Count)
	if a.metrics[MetricCurrentStreak] < count {
		a.metrics[MetricCurrentStreak] = count
	}
	if a.metrics[MetricLongestStreak] < count {
		a.metrics[MetricLongestStreak] = count
	}
	return a.evaluateStored()
}

// CheckAchievements evaluates the whole catalog and returns one entry per
// achievement that is unlocked in the effective view.
//
// With a nil snapshot the engine's metrics and unlocked set are used, and
// unlocks cascade through prerequisites within the call. With a snapshot,
// its metrics overlay the stored ones for this call only, and its
// UnlockedAchievements decide NewlyUnlocked and prerequisite gating; there
// is no cascade. Either way an achievement is recorded at most once, and
// only once the engine itself holds its prerequisites.
func (a *AchievementEngine) CheckAchievements(snapshot *domain.StatsSnapshot) []domain.AchievementCheck {
	if snapshot == nil {
		view := a.unlockedSet()
		newly := a.evaluate(a.metrics, view, true)
		return a.checks(view, newly)
	}

	merged := maps.Clone(a.metrics)
	for k, v := range snapshot.Metrics {
		if math.IsNaN(v) {
			continue
		}
		merged[k] = v
	}
	view := make(map[string]bool, len(snapshot.UnlockedAchievements))
	for _, id := range snapshot.UnlockedAchievements {
		if _, ok := a.catalog.Lookup(id); ok {
			view[id] = true
		}
	}
	newly := a.evaluate(merged, view, false)
	return a.checks(view, newly)
}

// UnlockAchievement unlocks id explicitly. It returns nil without changing
// state when id is unknown, already unlocked, or has unmet prerequisites.
func (a *AchievementEngine) UnlockAchievement(id string) *domain.UnlockedAchievement {
	rec, err := a.TryUnlock(id)
	if err != nil {
		return nil
	}
	return rec
}

// TryUnlock is UnlockAchievement with the rejection reason.
func (a *AchievementEngine) TryUnlock(id string) (*domain.UnlockedAchievement, error) {
	def, ok := a.catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAchievement, id)
	}
	if _, done := a.unlocked[id]; done {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyUnlocked, id)
	}
	if missing := a.missingPrereqs(def, a.unlockedSet()); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s needs %s", domain.ErrPrerequisitesUnmet, id, strings.Join(missing, ", "))
	}
	rec := a.record(def)
	return &rec, nil
}

// IsUnlocked reports whether id has been unlocked.
func (a *AchievementEngine) IsUnlocked(id string) bool {
	_, ok := a.unlocked[id]
	return ok
}

// Unlocked returns unlock records in the order they were earned.
func (a *AchievementEngine) Unlocked() []domain.UnlockedAchievement {
	out := make([]domain.UnlockedAchievement, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.unlocked[id])
	}
	return out
}

// TotalPoints returns cumulative points from unlocked achievements.
func (a *AchievementEngine) TotalPoints() int {
	return a.totalPoints
}

// UserLevel derives the level from total points.
func (a *AchievementEngine) UserLevel() domain.LevelInfo {
	return LevelForPoints(a.totalPoints)
}

// AchievementProgress reports progress toward id. A nil metrics map uses
// the stored metrics; missing metrics count as 0. The bool is false for
// unknown ids.
func (a *AchievementEngine) AchievementProgress(id string, metrics map[string]float64) (domain.AchievementProgress, bool) {
	def, ok := a.catalog.Lookup(id)
	if !ok {
		return domain.AchievementProgress{}, false
	}
	if metrics == nil {
		metrics = a.metrics
	}
	return a.progressFor(def, metrics), true
}

// AchievementsByCategory projects the catalog for display. Every category
// is present, with entries in catalog order.
func (a *AchievementEngine) AchievementsByCategory() map[domain.AchievementCategory][]domain.AchievementStatus {
	out := make(map[domain.AchievementCategory][]domain.AchievementStatus, len(domain.AchievementCategories))
	for _, cat := range domain.AchievementCategories {
		out[cat] = []domain.AchievementStatus{}
	}
	for _, def := range a.catalog.defs {
		st := domain.AchievementStatus{
			AchievementDefinition: def,
			Progress:              a.progressFor(def, a.metrics),
		}
		if rec, ok := a.unlocked[def.ID]; ok {
			at := rec.UnlockedAt
			st.Unlocked = true
			st.UnlockedAt = &at
		}
		out[def.Category] = append(out[def.Category], st)
	}
	return out
}

// CheckInvariants verifies that totalPoints equals the sum of awarded
// points and that the unlocked set has no strays. A non-nil result is a
// programming error.
func (a *AchievementEngine) CheckInvariants() error {
	if len(a.order) != len(a.unlocked) {
		return fmt.Errorf("%w: %d ordered vs %d unlocked", domain.ErrPointsDrift, len(a.order), len(a.unlocked))
	}
	sum := 0
	for _, id := range a.order {
		rec, ok := a.unlocked[id]
		if !ok {
			return fmt.Errorf("%w: %s ordered but not unlocked", domain.ErrPointsDrift, id)
		}
		if _, known := a.catalog.Lookup(id); !known {
			return fmt.Errorf("%w: %s not in catalog", domain.ErrPointsDrift, id)
		}
		sum += rec.PointsAwarded
	}
	if sum != a.totalPoints {
		return fmt.Errorf("%w: total %d, sum %d", domain.ErrPointsDrift, a.totalPoints, sum)
	}
	return nil
}

// Snapshot returns the engine's serializable state.
func (a *AchievementEngine) Snapshot() AchievementState {
	return AchievementState{
		Metrics:     maps.Clone(a.metrics),
		Unlocked:    a.Unlocked(),
		TotalPoints: a.totalPoints,
	}
}

// Restore replaces engine state. Unknown or duplicate unlock records are
// dropped and totalPoints is recomputed from what remains.
func (a *AchievementEngine) Restore(st AchievementState) {
	a.Reset()
	for k, v := range st.Metrics {
		if k == "" || math.IsNaN(v) {
			continue
		}
		a.metrics[k] = v
	}
	for _, rec := range st.Unlocked {
		if _, ok := a.catalog.Lookup(rec.ID); !ok {
			continue
		}
		if _, dup := a.unlocked[rec.ID]; dup {
			continue
		}
		a.unlocked[rec.ID] = rec
		a.order = append(a.order, rec.ID)
		a.totalPoints += rec.PointsAwarded
	}
}

// Reset clears metrics and unlocks.
func (a *AchievementEngine) Reset() {
	a.metrics = make(map[string]float64)
	a.unlocked = make(map[string]domain.UnlockedAchievement)
	a.order = nil
	a.totalPoints = 0
}

// ─── Evaluation ─────────────────────────────────────────────────────────────

func (a *AchievementEngine) evaluateStored() []domain.AchievementDefinition {
	newly := a.evaluate(a.metrics, a.unlockedSet(), true)
	var out []domain.AchievementDefinition
	for _, def := range a.catalog.defs {
		if newly[def.ID] {
			out = append(out, def)
		}
	}
	return out
}

// evaluate finds every achievement that is not in view, whose requirement
// is satisfied by metrics, and whose prerequisites are in view. With
// cascade, achievements unlocked earlier in the same call also satisfy
// prerequisites. Each is recorded only when the engine does not hold it
// yet and holds all of its prerequisites.
func (a *AchievementEngine) evaluate(metrics map[string]float64, view map[string]bool, cascade bool) map[string]bool {
	newly := make(map[string]bool)
	gate := view
	if cascade {
		gate = maps.Clone(view)
	}
	for {
		progressed := false
		for _, def := range a.catalog.defs {
			if view[def.ID] || newly[def.ID] {
				continue
			}
			if !def.Requirement.SatisfiedBy(metrics) {
				continue
			}
			if len(a.missingPrereqs(def, gate)) > 0 {
				continue
			}
			newly[def.ID] = true
			if _, held := a.unlocked[def.ID]; !held && len(a.missingPrereqs(def, a.unlockedSet())) == 0 {
				a.record(def)
			}
			if cascade {
				gate[def.ID] = true
				progressed = true
			}
		}
		if !progressed {
			return newly
		}
	}
}

func (a *AchievementEngine) checks(view, newly map[string]bool) []domain.AchievementCheck {
	var out []domain.AchievementCheck
	for _, def := range a.catalog.defs {
		switch {
		case view[def.ID]:
			out = append(out, domain.AchievementCheck{Achievement: def})
		case newly[def.ID]:
			out = append(out, domain.AchievementCheck{Achievement: def, NewlyUnlocked: true})
		}
	}
	return out
}

func (a *AchievementEngine) record(def domain.AchievementDefinition) domain.UnlockedAchievement {
	rec := domain.UnlockedAchievement{
		ID:            def.ID,
		UnlockedAt:    a.clock.Now(),
		PointsAwarded: def.PointValue,
	}
	a.unlocked[def.ID] = rec
	a.order = append(a.order, def.ID)
	a.totalPoints += def.PointValue
	for _, fn := range a.subscribers {
		fn(def, rec)
	}
	return rec
}

func (a *AchievementEngine) missingPrereqs(def domain.AchievementDefinition, have map[string]bool) []string {
	var missing []string
	for _, pre := range def.Prerequisites {
		if !have[pre] {
			missing = append(missing, pre)
		}
	}
	return missing
}

func (a *AchievementEngine) unlockedSet() map[string]bool {
	set := make(map[string]bool, len(a.unlocked))
	for id := range a.unlocked {
		set[id] = true
	}
	return set
}

// progressFor computes requirement progress. Single-metric requirements
// report the raw current value; multi-metric ones report summed clamped
// currents and targets with the average percentage.
func (a *AchievementEngine) progressFor(def domain.AchievementDefinition, metrics map[string]float64) domain.AchievementProgress {
	names := slices.Collect(maps.Keys(def.Requirement))
	sort.Strings(names)

	var p domain.AchievementProgress
	pctSum := 0
	for _, name := range names {
		target := def.Requirement[name]
		current := metrics[name]
		pct := progress.Percentage(current, target)
		p.Metrics = append(p.Metrics, domain.MetricProgress{
			Metric: name, Current: current, Target: target, Percentage: pct,
		})
		pctSum += pct
		p.Current += min(max(current, 0), target)
		p.Target += target
	}

	switch len(names) {
	case 0:
	case 1:
		p.Current = p.Metrics[0].Current
		p.Percentage = p.Metrics[0].Percentage
	default:
		p.Percentage = int(math.Round(float64(pctSum) / float64(len(names))))
	}
	_, unlocked := a.unlocked[def.ID]
	p.Completed = unlocked || p.Percentage == 100
	return p
}
