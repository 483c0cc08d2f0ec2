package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulsefit/pulse/internal/app/engagement"
	"github.com/pulsefit/pulse/internal/domain"
)

// ─── Request bodies ─────────────────────────────────────────────────────────

type completionRequest struct {
	Category  string     `json:"category"`
	Completed *bool      `json:"completed,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (c completionRequest) completed() bool {
	return c.Completed == nil || *c.Completed
}

func (c completionRequest) at() time.Time {
	if c.Timestamp == nil {
		return time.Time{}
	}
	return *c.Timestamp
}

type metricRequest struct {
	Value float64 `json:"value"`
	Delta float64 `json:"delta"`
}

type streakResponse struct {
	Category string             `json:"category"`
	Current  int                `json:"current"`
	Longest  int                `json:"longest"`
	State    domain.StreakState `json:"state"`
}

// ─── Streaks ────────────────────────────────────────────────────────────────

func (s *Server) handleListStreaks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"streaks":    s.tracker.Streaks(),
		"milestones": s.tracker.Milestones(),
	})
}

func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	cat := chi.URLParam(r, "category")
	st := s.tracker.StreakState(cat)
	writeJSON(w, http.StatusOK, streakResponse{
		Category: cat,
		Current:  st.CurrentCount,
		Longest:  st.LongestCount,
		State:    st,
	})
}

func (s *Server) handleUpdateStreak(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if _, err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat := chi.URLParam(r, "category")
	current := s.tracker.UpdateStreak(r.Context(), cat, req.completed(), req.at())
	writeJSON(w, http.StatusOK, streakResponse{
		Category: cat,
		Current:  current,
		Longest:  s.tracker.LongestStreak(cat),
		State:    s.tracker.StreakState(cat),
	})
}

func (s *Server) handleRecordCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if _, err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.tracker.RecordCompletion(r.Context(), req.Category, req.at())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Metrics & Achievements ─────────────────────────────────────────────────

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"metrics": s.tracker.Metrics()})
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req metricRequest
	if ok, err := decodeOptional(r, &req); err != nil || !ok {
		writeError(w, http.StatusBadRequest, "body must be {\"value\": number}")
		return
	}
	metric := chi.URLParam(r, "metric")
	unlocked := s.tracker.UpdateProgress(r.Context(), metric, req.Value)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric":   metric,
		"value":    s.tracker.Metrics()[metric],
		"unlocked": nonNil(unlocked),
	})
}

func (s *Server) handleIncrementMetric(w http.ResponseWriter, r *http.Request) {
	req := metricRequest{Delta: 1}
	if _, err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metric := chi.URLParam(r, "metric")
	value, unlocked := s.tracker.IncrementMetric(r.Context(), metric, req.Delta)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric":   metric,
		"value":    value,
		"unlocked": nonNil(unlocked),
	})
}

func (s *Server) handleAchievementsByCategory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.AchievementsByCategory())
}

func (s *Server) handleUnlocked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"unlocked":     nonNil(s.tracker.Unlocked()),
		"total_points": s.tracker.TotalPoints(),
	})
}

func (s *Server) handleCheckAchievements(w http.ResponseWriter, r *http.Request) {
	var snap domain.StatsSnapshot
	ok, err := decodeOptional(r, &snap)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var arg *domain.StatsSnapshot
	if ok {
		arg = &snap
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": nonNil(s.tracker.CheckAchievements(r.Context(), arg)),
	})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.tracker.TryUnlockAchievement(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrUnknownAchievement):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyUnlocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPrerequisitesUnmet):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.log.Info("achievement unlocked via api", "id", id)
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (s *Server) handleAchievementProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.tracker.AchievementProgress(id, nil)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown achievement: "+id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.UserLevel())
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"levels": engagement.Levels()})
}

// ─── Habits & Nudges ────────────────────────────────────────────────────────

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"habits": s.tracker.Habits()})
}

func (s *Server) handleTrackHabit(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if _, err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec := s.tracker.TrackHabit(r.Context(), chi.URLParam(r, "category"), req.completed(), req.at())
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.HabitInsights(chi.URLParam(r, "category")))
}

func (s *Server) handleNudge(w http.ResponseWriter, r *http.Request) {
	var nctx domain.NudgeContext
	if _, err := decodeOptional(r, &nctx); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.GenerateNudge(r.Context(), chi.URLParam(r, "category"), nctx))
}

func (s *Server) handleNudgeHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"nudges": nonNil(s.tracker.NudgeHistory())})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil turns a nil slice into an empty one so JSON renders [] not null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
