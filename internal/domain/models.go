package domain

import "time"

// XPReason classifies why a ledger entry was granted.
type XPReason string

const (
	ReasonLessonComplete XPReason = "lesson_complete"
	ReasonQuizPass       XPReason = "quiz_pass"
	ReasonDailyChallenge XPReason = "daily_challenge"
)

// User carries progression state for one learner. TotalXP is a cache over the
// ledger; the ledger is the source of truth. PremiumUntil is written only by
// the external payment-approval flow, the engine just reads it.
type User struct {
	ID           string     `json:"user_id"`
	DisplayName  string     `json:"display_name"`
	TotalXP      int        `json:"total_xp"`
	StreakDays   int        `json:"streak_days"`
	LastActive   time.Time  `json:"last_active"`
	PremiumUntil *time.Time `json:"premium_until,omitempty"`
	IsAdmin      bool       `json:"is_admin"`
	IsActive     bool       `json:"is_active"`
}

// PremiumActive reports whether the user can access premium content at now.
// Admins bypass the gate.
func (u User) PremiumActive(now time.Time) bool {
	if u.IsAdmin {
		return true
	}
	return u.PremiumUntil != nil && u.PremiumUntil.After(now)
}

// XPLedgerEntry is one immutable XP grant. A user's total XP is the sum of
// their entries.
type XPLedgerEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      int       `json:"amount"`
	Reason      XPReason  `json:"reason"`
	SourceID    string    `json:"source_id,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Lesson is the unit of content completion. Quiz premium gating follows the
// owning lesson's flag.
type Lesson struct {
	ID         string `json:"id"`
	ModuleID   string `json:"module_id"`
	Title      string `json:"title"`
	XPReward   int    `json:"xp_reward"`
	OrderIndex int    `json:"order_index"`
	IsPremium  bool   `json:"is_premium"`
	IsActive   bool   `json:"is_active"`
}

// Question models an MCQ question. CorrectIndex must never reach clients
// before scoring.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

// Quiz is an ordered question set attached to a lesson. IsPremium mirrors the
// owning lesson's flag and is filled in by the loader.
type Quiz struct {
	ID           string     `json:"id"`
	LessonID     string     `json:"lesson_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Questions    []Question `json:"questions"`
	TimeLimitSec int        `json:"time_limit_sec"`
	PassingScore int        `json:"passing_score"`
	XPReward     int        `json:"xp_reward"`
	IsPremium    bool       `json:"is_premium"`
}

// QuestionView is the client-safe projection of a question.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// QuizView is the client-safe projection of a quiz.
type QuizView struct {
	ID             string         `json:"id"`
	LessonID       string         `json:"lesson_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	TimeLimitSec   int            `json:"time_limit_sec"`
	PassingScore   int            `json:"passing_score"`
	XPReward       int            `json:"xp_reward"`
	TotalQuestions int            `json:"total_questions"`
	Questions      []QuestionView `json:"questions"`
}

// View strips correct answers and explanations for delivery to clients.
func (q Quiz) View() QuizView {
	questions := make([]QuestionView, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, QuestionView{
			ID:      question.ID,
			Text:    question.Text,
			Options: question.Options,
		})
	}
	return QuizView{
		ID:             q.ID,
		LessonID:       q.LessonID,
		Title:          q.Title,
		Description:    q.Description,
		TimeLimitSec:   q.TimeLimitSec,
		PassingScore:   q.PassingScore,
		XPReward:       q.XPReward,
		TotalQuestions: len(q.Questions),
		Questions:      questions,
	}
}

// AnswerReview explains one graded question, returned only after scoring.
type AnswerReview struct {
	QuestionID    string `json:"question_id"`
	YourAnswer    int    `json:"your_answer"`
	Answered      bool   `json:"answered"`
	CorrectAnswer int    `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation,omitempty"`
}

// QuizResult is the terminal outcome of one attempt.
type QuizResult struct {
	CorrectCount   int            `json:"correct_answers"`
	TotalQuestions int            `json:"total_questions"`
	ScorePct       int            `json:"score"`
	Passed         bool           `json:"passed"`
	XPGained       int            `json:"xp_gained"`
	Reviews        []AnswerReview `json:"results"`
}

// SubmitOutcome is the full submit payload, remembered on the attempt so that
// retried submits observe byte-identical results.
type SubmitOutcome struct {
	QuizResult
	LevelUp  bool      `json:"level_up"`
	NewLevel int       `json:"new_level"`
	Level    LevelInfo `json:"level_info"`
}

// LevelInfo is the derived level state reported to clients.
type LevelInfo struct {
	Level          int     `json:"level"`
	Badge          string  `json:"badge"`
	Title          string  `json:"title"`
	TotalXP        int     `json:"total_xp"`
	CurrentLevelXP int     `json:"current_level_xp"`
	NextLevelXP    int     `json:"next_level_xp"`
	XPInLevel      int     `json:"xp_in_level"`
	XPNeeded       int     `json:"xp_needed"`
	XPToNext       int     `json:"xp_to_next"`
	Progress       float64 `json:"progress"`
	IsMaxLevel     bool    `json:"is_max_level"`
}

// GrantOutcome reports the effect of a single ledger append.
type GrantOutcome struct {
	Entry      XPLedgerEntry `json:"entry"`
	TotalXP    int           `json:"total_xp"`
	StreakDays int           `json:"streak_days"`
	LevelUp    bool          `json:"level_up"`
	Level      LevelInfo     `json:"level_info"`
}

// ClaimResult is the daily-challenge response. Granted=false is the normal
// idempotent outcome for repeat claims, not an error.
type ClaimResult struct {
	Granted    bool      `json:"granted"`
	Amount     int       `json:"amount"`
	StreakDays int       `json:"streak_days"`
	TotalXP    int       `json:"total_xp"`
	LevelUp    bool      `json:"level_up"`
	Level      LevelInfo `json:"level_info"`
}

// ProgressStats backs the gamification stats endpoint.
type ProgressStats struct {
	CompletedLessons int `json:"completed_lessons"`
	StreakDays       int `json:"streak_days"`
	WeeklyXP         int `json:"weekly_xp"`
}

// LessonProgress tracks per-lesson completion; the completion flag is the
// idempotency gate for the lesson XP grant.
type LessonProgress struct {
	UserID       string     `json:"user_id"`
	LessonID     string     `json:"lesson_id"`
	Completed    bool       `json:"completed"`
	BestScore    int        `json:"best_quiz_score"`
	QuizAttempts int        `json:"quiz_attempts"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// LeaderboardScope selects the ranking window.
type LeaderboardScope string

const (
	ScopeGlobal LeaderboardScope = "global"
	ScopeWeekly LeaderboardScope = "weekly"
)

// LeaderboardEntry is one row of a ranking. TotalXP is set for global scope,
// WeeklyXP for weekly.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name,omitempty"`
	TotalXP       int    `json:"total_xp,omitempty"`
	WeeklyXP      int    `json:"weekly_xp,omitempty"`
	Level         int    `json:"level"`
	LevelBadge    string `json:"level_badge"`
	IsPremium     bool   `json:"is_premium"`
	IsCurrentUser bool   `json:"is_current_user"`
}

// CurrentUserRank is returned when the requesting user falls outside the
// requested top-N window.
type CurrentUserRank struct {
	Rank       int    `json:"rank"`
	TotalXP    int    `json:"total_xp"`
	Level      int    `json:"level"`
	LevelBadge string `json:"level_badge"`
}

// LeaderboardSnapshot is a derived, ordered view over the ledger.
type LeaderboardSnapshot struct {
	Scope       LeaderboardScope `json:"scope"`
	Entries     []LeaderboardEntry `json:"leaderboard"`
	CurrentUser *CurrentUserRank   `json:"current_user"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
