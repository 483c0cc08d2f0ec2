package engagement

import (
	"math"
	"slices"

	"github.com/pulsefit/pulse/internal/domain"
)

// levelTable is the fixed, ascending (points, level, title) table.
var levelTable = []domain.LevelThreshold{
	{Points: 0, Level: 1, Title: "Beginner"},
	{Points: 100, Level: 2, Title: "Novice"},
	{Points: 250, Level: 3, Title: "Apprentice"},
	{Points: 500, Level: 4, Title: "Enthusiast"},
	{Points: 1000, Level: 5, Title: "Committed"},
	{Points: 2000, Level: 6, Title: "Athlete"},
	{Points: 3500, Level: 7, Title: "Champion"},
	{Points: 5000, Level: 8, Title: "Elite"},
	{Points: 7500, Level: 9, Title: "Master"},
	{Points: 10000, Level: 10, Title: "Legend"},
}

// MaxLevel is the highest reachable level.
var MaxLevel = levelTable[len(levelTable)-1].Level

// Levels returns a copy of the level table.
func Levels() []domain.LevelThreshold {
	return slices.Clone(levelTable)
}

// PointsForLevel returns the threshold for level, or -1 if no such level.
func PointsForLevel(level int) int {
	for _, row := range levelTable {
		if row.Level == level {
			return row.Points
		}
	}
	return -1
}

// LevelForPoints returns the highest level whose threshold does not exceed
// points. Negative points resolve to the first level.
func LevelForPoints(points int) domain.LevelInfo {
	idx := 0
	for i, row := range levelTable {
		if row.Points > points {
			break
		}
		idx = i
	}
	cur := levelTable[idx]
	info := domain.LevelInfo{
		Level:  cur.Level,
		Title:  cur.Title,
		Points: points,
	}
	if idx == len(levelTable)-1 {
		info.ProgressPct = 100 // Max level
		return info
	}

	next := levelTable[idx+1]
	info.PointsToNext = next.Points - points
	info.NextLevelTitle = next.Title

	span := float64(next.Points - cur.Points)
	pct := float64(points-cur.Points) / span * 100
	info.ProgressPct = math.Round(min(max(pct, 0), 100)*10) / 10
	return info
}
