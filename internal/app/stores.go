package app

import (
	"context"
	"time"

	"edulearn-engine/internal/domain"
)

// UserStore persists progression state per user.
type UserStore interface {
	Get(ctx context.Context, userID string) (domain.User, error)
	Save(ctx context.Context, user domain.User) error
	ListActive(ctx context.Context) ([]domain.User, error)
}

// LedgerStore is the append-only XP ledger. Appending is the only way a
// user's XP ever changes.
type LedgerStore interface {
	Append(ctx context.Context, entry domain.XPLedgerEntry) error
	TotalXP(ctx context.Context, userID string) (int, error)
	// SumSince sums a user's entries with created_at >= since.
	SumSince(ctx context.Context, userID string, since time.Time) (int, error)
	// SumAllSince returns per-user sums over entries with created_at >= since.
	SumAllSince(ctx context.Context, since time.Time) (map[string]int, error)
	Recent(ctx context.Context, userID string, limit int) ([]domain.XPLedgerEntry, error)
}

// ClaimStore is the once-per-day gate for the daily challenge. Claim returns
// true only for the first call for a (user, date) pair; the uniqueness of the
// claim record is the compare-and-set that prevents double grants under
// concurrency. Release undoes a claim when the follow-up grant failed.
type ClaimStore interface {
	Claim(ctx context.Context, userID, date string) (bool, error)
	Release(ctx context.Context, userID, date string) error
}

// ProgressStore tracks per-lesson completion and quiz stats.
type ProgressStore interface {
	// MarkCompleted returns true only the first time the lesson is completed
	// for the user.
	MarkCompleted(ctx context.Context, userID, lessonID string, at time.Time) (bool, error)
	// RecordQuizAttempt bumps the attempt counter and keeps the best score.
	RecordQuizAttempt(ctx context.Context, userID, lessonID string, score int) error
	CountCompleted(ctx context.Context, userID string) (int, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// LessonRepository loads lesson metadata.
type LessonRepository interface {
	GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// AttemptStore keeps live quiz attempts. One in_progress attempt may exist
// per (user, quiz); terminal attempts stay reachable by ID so retried
// submits can read their recorded outcome.
type AttemptStore interface {
	// GetOrCreate returns the active attempt for the pair, creating one when
	// none exists. The bool reports whether a new attempt was created.
	GetOrCreate(userID string, quiz domain.Quiz, now func() time.Time) (*domain.QuizAttempt, bool)
	Get(attemptID string) (*domain.QuizAttempt, bool)
	// Deactivate drops the active-index mapping if it still points at
	// attemptID, so the next start creates a fresh attempt.
	Deactivate(userID, quizID, attemptID string)
	// InProgress snapshots attempts that have not reached a terminal state,
	// for the deadline sweep.
	InProgress() []*domain.QuizAttempt
}
