// Package progress holds the stateless calculators behind achievement
// progress and habit insights. Every function accepts empty input and
// returns zero values rather than failing.
package progress

import (
	"math"
	"sort"

	"github.com/pulsefit/pulse/internal/domain"
)

// Percentage returns round(100*current/target) clamped to [0,100].
// A non-positive target yields 0.
func Percentage(current, target float64) int {
	if target <= 0 || math.IsNaN(current) {
		return 0
	}
	if current > target {
		current = target
	}
	if current < 0 {
		current = 0
	}
	return clamp(int(math.Round(100*current/target)), 0, 100)
}

// CountInWindow counts the days in sorted keys that fall within the
// windowDays calendar days ending at endKey (inclusive).
func CountInWindow(days []string, endKey string, windowDays int) int {
	if windowDays <= 0 || len(days) == 0 {
		return 0
	}
	startKey := domain.AddDays(endKey, -(windowDays - 1))
	lo := sort.SearchStrings(days, startKey)
	hi := sort.Search(len(days), func(i int) bool { return days[i] > endKey })
	if hi < lo {
		return 0
	}
	return hi - lo
}

// Rate returns round(100*completed/windowDays), clamped to [0,100].
func Rate(days []string, endKey string, windowDays int) int {
	if windowDays <= 0 {
		return 0
	}
	return Percentage(float64(CountInWindow(days, endKey, windowDays)), float64(windowDays))
}

// Run is a maximal stretch of consecutive calendar days.
type Run struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Length int    `json:"length"`
}

// Runs segments sorted, distinct day keys into maximal consecutive runs.
func Runs(days []string) []Run {
	if len(days) == 0 {
		return nil
	}
	runs := []Run{{Start: days[0], End: days[0], Length: 1}}
	for _, day := range days[1:] {
		last := &runs[len(runs)-1]
		if domain.DaysBetween(last.End, day) == 1 {
			last.End = day
			last.Length++
			continue
		}
		runs = append(runs, Run{Start: day, End: day, Length: 1})
	}
	return runs
}

// LongestRun returns the length of the longest consecutive run.
func LongestRun(days []string) int {
	longest := 0
	for _, r := range Runs(days) {
		if r.Length > longest {
			longest = r.Length
		}
	}
	return longest
}

// RunEndingAt returns the length of the consecutive run that ends exactly
// on endKey, or 0 if endKey is not in days.
func RunEndingAt(days []string, endKey string) int {
	i := sort.SearchStrings(days, endKey)
	if i >= len(days) || days[i] != endKey {
		return 0
	}
	n := 1
	for j := i - 1; j >= 0; j-- {
		if domain.DaysBetween(days[j], days[j+1]) != 1 {
			break
		}
		n++
	}
	return n
}

// MinConsistencySamples is the completion count below which the
// consistency score is defined as 0.
const MinConsistencySamples = 7

// ConsistencyScore rewards long, stable runs over fragmented ones:
// min(100, round((avgRun*0.6 + maxRun*0.4) * 10)).
func ConsistencyScore(days []string) int {
	if len(days) < MinConsistencySamples {
		return 0
	}
	runs := Runs(days)
	total, longest := 0, 0
	for _, r := range runs {
		total += r.Length
		if r.Length > longest {
			longest = r.Length
		}
	}
	avg := float64(total) / float64(len(runs))
	score := int(math.Round((avg*0.6 + float64(longest)*0.4) * 10))
	return clamp(score, 0, 100)
}

// TrendThreshold is the half-over-half delta that counts as a real change.
const TrendThreshold = 2

// TrendOver compares completions in the second half of a trailing window
// against the first half. windowDays is split evenly; an odd window gives
// the extra day to the first half.
func TrendOver(days []string, endKey string, windowDays int) domain.Trend {
	if windowDays < 2 {
		return domain.TrendStable
	}
	half := windowDays / 2
	second := CountInWindow(days, endKey, half)
	first := CountInWindow(days, domain.AddDays(endKey, -half), windowDays-half)
	switch delta := second - first; {
	case delta >= TrendThreshold:
		return domain.TrendImproving
	case delta <= -TrendThreshold:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

// InsertDay adds key to sorted days if absent. It reports whether the
// slice changed.
func InsertDay(days []string, key string) ([]string, bool) {
	i := sort.SearchStrings(days, key)
	if i < len(days) && days[i] == key {
		return days, false
	}
	days = append(days, "")
	copy(days[i+1:], days[i:])
	days[i] = key
	return days, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
