package engagement

import (
	"strconv"
	"strings"

	"github.com/pulsefit/pulse/internal/domain"
)

// Template is one candidate nudge message. Title and Body may contain the
// placeholders {streak}, {days}, {achievement}, {category}, {friends} and
// {greeting}.
type Template struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Templates maps nudge type → category → candidates. The "default"
// category is the fallback for categories without their own list.
type Templates map[domain.NudgeType]map[string][]Template

const defaultTemplateCategory = "default"

// Lookup returns the candidates for typ and category, falling back to the
// default category.
func (t Templates) Lookup(typ domain.NudgeType, category string) []Template {
	byCat := t[typ]
	if list := byCat[category]; len(list) > 0 {
		return list
	}
	return byCat[defaultTemplateCategory]
}

// greetings by time-of-day slot.
var greetings = map[string]string{
	"morning":   "Good morning",
	"afternoon": "Good afternoon",
	"evening":   "Good evening",
	"other":     "Hey there",
}

// timeSlot buckets an hour of day.
func timeSlot(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "other"
	}
}

type templateVars struct {
	streak      int
	days        int
	achievement string
	category    string
	friends     int
	greeting    string
}

func (v templateVars) render(s string) string {
	return strings.NewReplacer(
		"{streak}", strconv.Itoa(v.streak),
		"{days}", strconv.Itoa(v.days),
		"{achievement}", v.achievement,
		"{category}", v.category,
		"{friends}", strconv.Itoa(v.friends),
		"{greeting}", v.greeting,
	).Replace(s)
}

// DefaultTemplates returns the built-in message table.
func DefaultTemplates() Templates {
	return Templates{
		domain.NudgeStreakProtection: {
			"default": {
				{"Protect your streak", "Don't break your {streak}-day {category} streak! A few minutes today keeps it alive."},
				{"Streak on the line", "{streak} days in a row. Today decides whether it becomes {streak} and counting."},
			},
			"workout": {
				{"Keep the fire going 🔥", "Your {streak}-day workout streak needs you today. Even a short session counts."},
				{"Don't stop now", "{streak} straight days of training. Don't let today be the one that breaks it."},
			},
			"meditation": {
				{"Stay centered", "{streak} mindful days in a row. Take five quiet minutes to keep it going."},
			},
		},
		domain.NudgeEncouragement: {
			"default": {
				{"Nice work!", "Day {streak} of {category} done. You're building something real."},
				{"On a roll", "{streak} days and counting. Consistency is paying off."},
			},
			"workout": {
				{"Strong work 💪", "Workout logged. That's {streak} days straight!"},
				{"Momentum!", "{streak}-day workout streak. Your future self says thanks."},
			},
			"nutrition": {
				{"Fueling well", "{streak} days of mindful eating. Keep it up!"},
			},
		},
		domain.NudgeComeback: {
			"default": {
				{"We miss you", "It's been {days} days since your last {category} session. Today is a great day to restart."},
				{"Fresh start", "No pressure. One small {category} win today gets you back on track."},
			},
			"workout": {
				{"Ready for a comeback?", "{days} days off is fine. A 10-minute walk is all it takes to restart."},
			},
			"hydration": {
				{"Time to rehydrate", "It's been {days} days since you logged water. Grab a glass now."},
			},
		},
		domain.NudgeAchievementUnlock: {
			"default": {
				{"Achievement unlocked 🏆", "You earned {achievement}! Keep that {category} energy going."},
				{"Look at you!", "{achievement} is yours. What's next?"},
			},
		},
		domain.NudgeSocialProof: {
			"default": {
				{"Your friends are moving", "{friends} friends already logged {category} today. Join them!"},
				{"You're not alone", "{friends} of your friends are active today. Your turn."},
			},
		},
		domain.NudgeReminder: {
			"default": {
				{"{greeting}!", "{greeting}! Have you made time for {category} today?"},
				{"Quick check-in", "{greeting}. A little {category} today goes a long way."},
			},
			"workout": {
				{"{greeting}!", "{greeting}! Time to get moving. Even 15 minutes counts."},
			},
			"hydration": {
				{"Drink up", "{greeting}! Remember to drink some water."},
			},
			"sleep": {
				{"Wind down", "{greeting}. A consistent bedtime makes tomorrow easier."},
			},
		},
	}
}
