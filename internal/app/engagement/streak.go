// Package engagement implements the pulse habit engine.
// Streaks, achievements, levels, and nudges, composed by Tracker.
// Design rule: engines are synchronous and never fail on UI-driven input;
// persistence happens around them, not inside them.
package engagement

import (
	"slices"
	"strings"
	"time"

	"github.com/pulsefit/pulse/internal/domain"
)

// StreakEngine tracks consecutive-day completion per activity category.
// A day counts if the category was completed at least once on that
// calendar day. A single missed day breaks the streak; there is no grace
// period.
type StreakEngine struct {
	clock       domain.Clock
	milestones  []int
	streaks     map[string]*domain.StreakState
	subscribers []func(domain.StreakMilestone)
}

// NewStreakEngine creates a streak engine. A nil milestones slice uses
// domain.DefaultStreakMilestones.
func NewStreakEngine(clock domain.Clock, milestones []int) *StreakEngine {
	if milestones == nil {
		milestones = domain.DefaultStreakMilestones
	}
	return &StreakEngine{
		clock:      clock,
		milestones: slices.Clone(milestones),
		streaks:    make(map[string]*domain.StreakState),
	}
}

// Subscribe registers fn to receive milestone events. Events are delivered
// synchronously from UpdateStreak.
func (s *StreakEngine) Subscribe(fn func(domain.StreakMilestone)) {
	s.subscribers = append(s.subscribers, fn)
}

// UpdateStreak records whether category was completed on the day of ref
// and returns the resulting current streak. A zero ref means now.
//
//   - completed, first ever or last completion yesterday: extend
//   - completed, last completion on any other earlier/later day: reset to 1
//   - completed, already recorded today: no-op
//   - not completed, last completion yesterday: streak lapses to 0
func (s *StreakEngine) UpdateStreak(category string, completedToday bool, ref time.Time) int {
	category = normalizeCategory(category)
	if category == "" {
		return 0
	}
	if ref.IsZero() {
		ref = s.clock.Now()
	}
	st := s.state(category)

	today := domain.DateKey(ref)
	yesterday := domain.AddDays(today, -1)

	if !completedToday {
		if st.LastCompleted == yesterday {
			st.CurrentCount = 0
			st.LastCompleted = ""
		}
		return st.CurrentCount
	}

	switch {
	case st.LastCompleted == "" || st.LastCompleted == yesterday:
		st.CurrentCount++
		st.LastCompleted = today
		if st.CurrentCount > st.LongestCount {
			st.LongestCount = st.CurrentCount
		}
		if s.isMilestone(st.CurrentCount) {
			s.emit(domain.StreakMilestone{Category: category, Count: st.CurrentCount, ReachedAt: ref})
		}

	case st.LastCompleted != today:
		// Gap of 2+ days, or an out-of-order date
		st.CurrentCount = 1
		st.LastCompleted = today
		if st.LongestCount < 1 {
			st.LongestCount = 1
		}
	}

	return st.CurrentCount
}

// CurrentStreak returns the current streak for category (0 if unknown).
func (s *StreakEngine) CurrentStreak(category string) int {
	if st, ok := s.streaks[normalizeCategory(category)]; ok {
		return st.CurrentCount
	}
	return 0
}

// LongestStreak returns the longest streak for category (0 if unknown).
func (s *StreakEngine) LongestStreak(category string) int {
	if st, ok := s.streaks[normalizeCategory(category)]; ok {
		return st.LongestCount
	}
	return 0
}

// State returns a copy of the streak state for category.
func (s *StreakEngine) State(category string) domain.StreakState {
	if st, ok := s.streaks[normalizeCategory(category)]; ok {
		return *st
	}
	return domain.StreakState{}
}

// Max returns the highest current and longest counts across categories.
func (s *StreakEngine) Max() (current, longest int) {
	for _, st := range s.streaks {
		current = max(current, st.CurrentCount)
		longest = max(longest, st.LongestCount)
	}
	return current, longest
}

// Milestones returns the configured milestone thresholds.
func (s *StreakEngine) Milestones() []int {
	return slices.Clone(s.milestones)
}

// Snapshot returns a copy of all streak states keyed by category.
func (s *StreakEngine) Snapshot() map[string]domain.StreakState {
	out := make(map[string]domain.StreakState, len(s.streaks))
	for cat, st := range s.streaks {
		out[cat] = *st
	}
	return out
}

// Restore replaces all streak state. Entries violating the streak
// invariants are repaired rather than rejected.
func (s *StreakEngine) Restore(states map[string]domain.StreakState) {
	s.streaks = make(map[string]*domain.StreakState, len(states))
	for cat, st := range states {
		cat = normalizeCategory(cat)
		if cat == "" {
			continue
		}
		if st.LastCompleted == "" || st.CurrentCount < 0 {
			st.CurrentCount = 0
		}
		if st.LongestCount < st.CurrentCount {
			st.LongestCount = st.CurrentCount
		}
		s.streaks[cat] = &st
	}
}

// Reset clears all streaks.
func (s *StreakEngine) Reset() {
	s.streaks = make(map[string]*domain.StreakState)
}

func (s *StreakEngine) state(category string) *domain.StreakState {
	st, ok := s.streaks[category]
	if !ok {
		st = &domain.StreakState{}
		s.streaks[category] = st
	}
	return st
}

func (s *StreakEngine) isMilestone(count int) bool {
	return slices.Contains(s.milestones, count)
}

func (s *StreakEngine) emit(ev domain.StreakMilestone) {
	for _, fn := range s.subscribers {
		fn(ev)
	}
}

// normalizeCategory lowercases and trims a category name. Empty results
// mark malformed input.
func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
