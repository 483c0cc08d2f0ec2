package cli

import (
	"fmt"
	"strings"

	"github.com/pulsefit/pulse/internal/app/engagement"
	"github.com/pulsefit/pulse/internal/domain"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Renders achievement and level progress for the terminal.
// Shows: [████████████░░░░░░░░]  60% │ 30 / 50

const barWidth = 20

// renderBar draws a fixed-width bar for a 0-100 percentage.
func renderBar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * barWidth)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

// renderProgress formats one achievement's progress line.
func renderProgress(p domain.AchievementProgress) string {
	if p.Completed {
		return renderBar(100) + " done"
	}
	return fmt.Sprintf("%s %3d%% │ %s / %s",
		renderBar(float64(p.Percentage)), p.Percentage, formatAmount(p.Current), formatAmount(p.Target))
}

// renderLevel formats the level line shown after completions.
func renderLevel(l domain.LevelInfo) string {
	if l.Level >= engagement.MaxLevel {
		return fmt.Sprintf("Level %d %s │ %d pts │ max level", l.Level, l.Title, l.Points)
	}
	return fmt.Sprintf("Level %d %s %s %.1f%% │ %d pts │ %d to %s",
		l.Level, l.Title, renderBar(l.ProgressPct), l.ProgressPct, l.Points, l.PointsToNext, l.NextLevelTitle)
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
