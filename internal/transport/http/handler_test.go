package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edulearn-engine/internal/app"
	"edulearn-engine/internal/domain"
	"edulearn-engine/internal/infra/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	users  *memory.UserStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := memory.NewUserStore()
	ledger := memory.NewLedgerStore()
	claims := memory.NewClaimStore()
	progress := memory.NewProgressStore()
	attemptStore := memory.NewAttemptStore()

	lessons := map[string]domain.Lesson{
		"lesson-1": {ID: "lesson-1", Title: "Greetings", XPReward: 50, IsActive: true},
		"lesson-2": {ID: "lesson-2", Title: "Advanced Idioms", XPReward: 80, IsPremium: true, IsActive: true},
	}
	quizzes := map[string]domain.Quiz{
		"quiz-1": {
			ID:           "quiz-1",
			LessonID:     "lesson-1",
			Title:        "Greetings Quiz",
			PassingScore: 70,
			XPReward:     100,
			TimeLimitSec: 300,
			Questions: []domain.Question{
				{ID: "q1", Text: "Hello?", Options: []string{"Hola", "Adios"}, CorrectIndex: 0},
				{ID: "q2", Text: "Bye?", Options: []string{"Hola", "Adios"}, CorrectIndex: 1},
			},
		},
	}
	content := memory.NewContentRepository(memory.NewStaticContentLoader(quizzes, lessons), time.Minute)

	policy := app.Policy{
		LessonXP:          50,
		DailyChallengeXP:  25,
		StreakBonusPerDay: 5,
		MaxStreakBonus:    50,
		Curve:             domain.DefaultLevelCurve(),
	}
	progression := app.NewProgressionService(users, ledger, claims, progress, content, policy, time.UTC)
	attempts := app.NewAttemptService(content, attemptStore, users, progress, progression)
	leaderboard := app.NewLeaderboardService(users, ledger, policy.Curve, time.UTC)

	handler := NewHandler(progression, attempts, leaderboard)
	ws := NewWSHandler(leaderboard)
	server := httptest.NewServer(NewRouter(handler, ws, testSecret))
	t.Cleanup(server.Close)

	require.NoError(t, users.Save(context.Background(), domain.User{ID: "u1", DisplayName: "Alice", IsActive: true}))
	return &testEnv{server: server, users: users}
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/gamification/stats", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDailyChallengeIdempotent(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/gamification/daily-challenge", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first domain.ClaimResult
	decode(t, resp, &first)
	assert.True(t, first.Granted)
	assert.Equal(t, 25, first.Amount)
	assert.Equal(t, 1, first.StreakDays)

	// Same day again: 200 with granted=false, not an error.
	resp = env.do(t, http.MethodPost, "/gamification/daily-challenge", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second domain.ClaimResult
	decode(t, resp, &second)
	assert.False(t, second.Granted)
	assert.Equal(t, first.TotalXP, second.TotalXP)
}

func TestStatsNestedShape(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/lessons/lesson-1/complete", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/gamification/stats", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw map[string]json.RawMessage
	decode(t, resp, &raw)
	require.Contains(t, raw, "level")
	require.Contains(t, raw, "stats")

	var level domain.LevelInfo
	require.NoError(t, json.Unmarshal(raw["level"], &level))
	assert.Equal(t, 50, level.TotalXP)
	assert.Equal(t, 1, level.Level)

	var stats struct {
		CompletedLessons int `json:"completed_lessons"`
		StreakDays       int `json:"streak_days"`
		WeeklyXP         int `json:"weekly_xp"`
	}
	require.NoError(t, json.Unmarshal(raw["stats"], &stats))
	assert.Equal(t, 1, stats.CompletedLessons)
	assert.Equal(t, 1, stats.StreakDays)
	assert.Equal(t, 50, stats.WeeklyXP)
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/quiz/quiz-1", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started app.StartedAttempt
	decode(t, resp, &started)
	require.NotEmpty(t, started.AttemptID)
	assert.Len(t, started.Quiz.Questions, 2)

	// Re-entry returns the same attempt without resetting the timer.
	resp = env.do(t, http.MethodGet, "/quiz/quiz-1", "u1", nil)
	var again app.StartedAttempt
	decode(t, resp, &again)
	assert.Equal(t, started.AttemptID, again.AttemptID)

	for questionID, answer := range map[string]int{"q1": 0, "q2": 1} {
		resp = env.do(t, http.MethodPost, "/quiz/quiz-1/answer", "u1", answerRequest{
			AttemptID:  started.AttemptID,
			QuestionID: questionID,
			Answer:     answer,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp = env.do(t, http.MethodPost, "/quiz/quiz-1/submit", "u1", submitRequest{AttemptID: started.AttemptID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var outcome domain.SubmitOutcome
	decode(t, resp, &outcome)
	assert.Equal(t, 100, outcome.ScorePct)
	assert.True(t, outcome.Passed)
	assert.Equal(t, 100, outcome.XPGained)

	// Retried submit sees the identical recorded outcome.
	resp = env.do(t, http.MethodPost, "/quiz/quiz-1/submit", "u1", submitRequest{AttemptID: started.AttemptID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var retried domain.SubmitOutcome
	decode(t, resp, &retried)
	assert.Equal(t, outcome, retried)
}

func TestInvalidAnswerRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/quiz/quiz-1", "u1", nil)
	var started app.StartedAttempt
	decode(t, resp, &started)

	resp = env.do(t, http.MethodPost, "/quiz/quiz-1/answer", "u1", answerRequest{
		AttemptID:  started.AttemptID,
		QuestionID: "q1",
		Answer:     7,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPremiumLessonGate(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/lessons/lesson-2/complete", "u1", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "premium_required", body["error"])

	// With an active premium window the lesson completes.
	until := time.Now().Add(24 * time.Hour)
	require.NoError(t, env.users.Save(context.Background(), domain.User{
		ID: "u1", DisplayName: "Alice", IsActive: true, PremiumUntil: &until,
	}))
	resp = env.do(t, http.MethodPost, "/lessons/lesson-2/complete", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completed completeLessonResponse
	decode(t, resp, &completed)
	assert.True(t, completed.Completed)
	assert.Equal(t, 80, completed.XPGained)
}

func TestLessonCompleteIdempotent(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/lessons/lesson-1/complete", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first completeLessonResponse
	decode(t, resp, &first)
	assert.True(t, first.Completed)
	assert.Equal(t, 50, first.XPGained)

	resp = env.do(t, http.MethodPost, "/lessons/lesson-1/complete", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second completeLessonResponse
	decode(t, resp, &second)
	assert.False(t, second.Completed)
	assert.Equal(t, 0, second.XPGained)
	assert.Equal(t, first.TotalXP, second.TotalXP)
}

func TestLeaderboardScopes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("rank-%02d", i)
		require.NoError(t, env.users.Save(ctx, domain.User{
			ID: id, DisplayName: id, TotalXP: 1000 - i*10, IsActive: true,
		}))
	}

	resp := env.do(t, http.MethodGet, "/leaderboard/global", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot domain.LeaderboardSnapshot
	decode(t, resp, &snapshot)
	assert.Len(t, snapshot.Entries, 10)
	assert.Equal(t, "rank-00", snapshot.Entries[0].UserID)
	assert.Equal(t, 1, snapshot.Entries[0].Rank)

	// u1 has no XP and falls outside the window; the response still carries
	// their rank.
	require.NotNil(t, snapshot.CurrentUser)
	assert.Equal(t, 13, snapshot.CurrentUser.Rank)

	resp = env.do(t, http.MethodGet, "/leaderboard/weekly", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var weekly domain.LeaderboardSnapshot
	decode(t, resp, &weekly)
	assert.Equal(t, domain.ScopeWeekly, weekly.Scope)
	// No ledger entries this week: everyone ties at 0, user_id breaks ties.
	require.NotEmpty(t, weekly.Entries)
	assert.Equal(t, "rank-00", weekly.Entries[0].UserID)
}

func TestUnknownQuizIs404(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/quiz/nope", "u1", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
