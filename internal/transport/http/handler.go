package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"edulearn-engine/internal/app"
	"edulearn-engine/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the progression, quiz and leaderboard use cases over REST.
type Handler struct {
	progression *app.ProgressionService
	attempts    *app.AttemptService
	leaderboard *app.LeaderboardService
}

func NewHandler(progression *app.ProgressionService, attempts *app.AttemptService, leaderboard *app.LeaderboardService) *Handler {
	return &Handler{
		progression: progression,
		attempts:    attempts,
		leaderboard: leaderboard,
	}
}

// NewRouter assembles the full route tree. The health check and the
// leaderboard websocket stay outside the auth group; everything else needs a
// bearer token.
func NewRouter(h *Handler, ws *WSHandler, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws/leaderboard", ws.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/gamification/daily-challenge", h.ClaimDaily)
		r.Get("/gamification/stats", h.Stats)
		r.Get("/gamification/xp-history", h.History)

		r.Get("/quiz/{quizID}", h.StartQuiz)
		r.Post("/quiz/{quizID}/answer", h.Answer)
		r.Post("/quiz/{quizID}/submit", h.Submit)
		r.Get("/quiz/attempts/{attemptID}", h.AttemptResult)

		r.Post("/lessons/{lessonID}/complete", h.CompleteLesson)

		r.Get("/leaderboard/global", h.Leaderboard(domain.ScopeGlobal))
		r.Get("/leaderboard/weekly", h.Leaderboard(domain.ScopeWeekly))
	})

	return r
}

func (h *Handler) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	result, err := h.progression.ClaimDaily(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type statsResponse struct {
	Level domain.LevelInfo `json:"level"`
	Stats struct {
		CompletedLessons int `json:"completed_lessons"`
		StreakDays       int `json:"streak_days"`
		WeeklyXP         int `json:"weekly_xp"`
	} `json:"stats"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	info, stats, err := h.progression.Stats(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := statsResponse{Level: info}
	resp.Stats.CompletedLessons = stats.CompletedLessons
	resp.Stats.StreakDays = stats.StreakDays
	resp.Stats.WeeklyXP = stats.WeeklyXP
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.progression.History(r.Context(), userIDFrom(r.Context()), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	started, err := h.attempts.Start(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "quizID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

type answerRequest struct {
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	Answer     int    `json:"answer"`
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.attempts.RecordAnswer(r.Context(), userIDFrom(r.Context()), req.AttemptID, req.QuestionID, req.Answer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

type submitRequest struct {
	AttemptID string         `json:"attempt_id"`
	Answers   map[string]int `json:"answers"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome, err := h.attempts.Submit(r.Context(), userIDFrom(r.Context()), req.AttemptID, req.Answers)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) AttemptResult(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.attempts.Result(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type completeLessonResponse struct {
	Completed bool             `json:"completed"`
	XPGained  int              `json:"xp_gained"`
	TotalXP   int              `json:"total_xp"`
	LevelUp   bool             `json:"level_up"`
	Level     domain.LevelInfo `json:"level_info"`
}

func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	first, outcome, err := h.progression.CompleteLesson(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "lessonID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completeLessonResponse{
		Completed: first,
		XPGained:  outcome.Entry.Amount,
		TotalXP:   outcome.TotalXP,
		LevelUp:   outcome.LevelUp,
		Level:     outcome.Level,
	})
}

func (h *Handler) Leaderboard(scope domain.LeaderboardScope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		snapshot, err := h.leaderboard.Top(r.Context(), scope, limit, userIDFrom(r.Context()))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPremiumRequired):
		writeError(w, http.StatusForbidden, "premium_required")
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrLessonNotFound),
		errors.Is(err, domain.ErrAttemptNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAttemptClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
