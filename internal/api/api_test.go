package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/pulse/internal/app/engagement"
	"github.com/pulsefit/pulse/internal/domain"
	"github.com/pulsefit/pulse/internal/health"
	"github.com/pulsefit/pulse/internal/infra/clock"
	"github.com/pulsefit/pulse/internal/infra/sqlite"
)

var testNow = time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *clock.Manual) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewManual(testNow)
	tr := engagement.NewTracker(engagement.TrackerOptions{
		UserKey: "api-test",
		Store:   db,
		Clock:   clk,
	})
	tr.Load(context.Background())

	srv := NewServer(tr, nil)
	checker := health.NewChecker(db, tr, "")
	checker.RunOnce(context.Background())
	srv.SetHealth(checker)
	srv.EnableMetrics()
	return srv, clk
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// ─── Basic endpoints ────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "ok", body["status"])
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), Version)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, http.MethodPost, "/api/v1/completions", `{"category":"workout"}`)

	w := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pulse_habit_completions_total")
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodOptions, "/api/v1/level", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMCPMount(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, srv.Handler(), http.MethodPost, "/mcp", `{}`).Code)

	srv.SetMCPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	assert.Equal(t, http.StatusTeapot, do(t, srv.Handler(), http.MethodPost, "/mcp", `{}`).Code)
}

// ─── Engagement flow ────────────────────────────────────────────────────────

func TestCompletionFlow(t *testing.T) {
	srv, clk := newTestServer(t)
	h := srv.Handler()

	for i := 0; i < 3; i++ {
		w := do(t, h, http.MethodPost, "/api/v1/completions", `{"category":"workout"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decode[engagement.CompletionResult](t, w)
		assert.Equal(t, i+1, res.Streak)
		clk.AdvanceDays(1)
	}

	w := do(t, h, http.MethodGet, "/api/v1/streaks/workout", "")
	st := decode[streakResponse](t, w)
	assert.Equal(t, 3, st.Current)
	assert.Equal(t, 3, st.Longest)

	w = do(t, h, http.MethodGet, "/api/v1/achievements/unlocked", "")
	body := decode[struct {
		Unlocked    []domain.UnlockedAchievement `json:"unlocked"`
		TotalPoints int                          `json:"total_points"`
	}](t, w)
	ids := []string{}
	for _, u := range body.Unlocked {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{"FIRST_WORKOUT", "STREAK_STARTER"}, ids)
	assert.Equal(t, 50, body.TotalPoints)

	w = do(t, h, http.MethodGet, "/api/v1/level", "")
	lvl := decode[domain.LevelInfo](t, w)
	assert.Equal(t, 1, lvl.Level)
	assert.Equal(t, 50, lvl.PointsToNext)
}

func TestCompletion_InvalidCategory(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/completions", `{"category":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStreak_NotCompleted(t *testing.T) {
	srv, clk := newTestServer(t)
	h := srv.Handler()
	do(t, h, http.MethodPost, "/api/v1/streaks/sleep", "")
	clk.AdvanceDays(1)

	w := do(t, h, http.MethodPost, "/api/v1/streaks/sleep", `{"completed":false}`)
	st := decode[streakResponse](t, w)
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, 1, st.Longest)
}

func TestGetStreak_MixedCaseCategory(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, http.MethodPost, "/api/v1/completions", `{"category":"workout"}`)

	st := decode[streakResponse](t, do(t, h, http.MethodGet, "/api/v1/streaks/Workout", ""))
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 1, st.State.CurrentCount)
	assert.Equal(t, "2025-07-10", st.State.LastCompleted)
}

func TestUnlockStatusCodes(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/achievements/NOPE/unlock", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, http.MethodPost, "/api/v1/achievements/WORKOUT_10/unlock", "").Code)

	w := do(t, h, http.MethodPost, "/api/v1/achievements/FIRST_WORKOUT/unlock", "")
	require.Equal(t, http.StatusCreated, w.Code)
	rec := decode[domain.UnlockedAchievement](t, w)
	assert.Equal(t, 25, rec.PointsAwarded)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/achievements/FIRST_WORKOUT/unlock", "").Code)
}

func TestCheckAchievements_Snapshot(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/achievements/check",
		`{"metrics":{"totalWorkouts":10},"unlocked_achievements":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Results []domain.AchievementCheck `json:"results"`
	}](t, w)

	got := map[string]bool{}
	for _, r := range body.Results {
		got[r.Achievement.ID] = r.NewlyUnlocked
	}
	assert.True(t, got["FIRST_WORKOUT"])
	assert.NotContains(t, got, "WORKOUT_10")

	// Empty body uses the engine's own view.
	w = do(t, h, http.MethodPost, "/api/v1/achievements/check", "")
	body = decode[struct {
		Results []domain.AchievementCheck `json:"results"`
	}](t, w)
	require.Len(t, body.Results, 1)
	assert.False(t, body.Results[0].NewlyUnlocked)
}

func TestProgressEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPut, "/api/v1/progress/totalWorkouts", `{"value":4}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/achievements/WORKOUT_10/progress", "")
	p := decode[domain.AchievementProgress](t, w)
	assert.Equal(t, 40, p.Percentage)

	w = do(t, h, http.MethodPost, "/api/v1/progress/friendsInvited/increment", "")
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, 1.0, body["value"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/v1/progress/x", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/achievements/NOPE/progress", "").Code)
}

func TestAchievementsByCategory(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/achievements", "")
	body := decode[map[string][]domain.AchievementStatus](t, w)
	assert.Len(t, body, len(domain.AchievementCategories))
	assert.NotEmpty(t, body["workout"])
}

func TestHabitEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/habits/meditation", `{"completed":true}`)
	rec := decode[domain.HabitRecord](t, w)
	assert.Equal(t, 1, rec.TotalCompletions)

	w = do(t, h, http.MethodGet, "/api/v1/habits/meditation/insights", "")
	ins := decode[domain.HabitInsights](t, w)
	assert.Equal(t, 3, ins.CompletionRate)

	w = do(t, h, http.MethodPost, "/api/v1/habits/workout/nudge", `{"streak":10,"days_since_last_completed":1}`)
	msg := decode[domain.NudgeMessage](t, w)
	assert.Equal(t, domain.NudgeStreakProtection, msg.Type)
	assert.Equal(t, domain.UrgencyHigh, msg.Urgency)

	w = do(t, h, http.MethodGet, "/api/v1/nudges", "")
	hist := decode[map[string][]domain.NudgeMessage](t, w)
	assert.Len(t, hist["nudges"], 1)
}

func TestReset(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, http.MethodPost, "/api/v1/completions", `{"category":"workout"}`)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/api/v1/reset", "").Code)
	w := do(t, h, http.MethodGet, "/api/v1/level", "")
	assert.Equal(t, 0, decode[domain.LevelInfo](t, w).Points)
}

func TestBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/habits/workout/nudge", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
