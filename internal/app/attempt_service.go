package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"edulearn-engine/internal/domain"
)

// AttemptService owns the quiz-attempt lifecycle: idempotent start, timed
// answer recording, at-most-once submission, and deadline expiry. Scoring
// happens exactly once per attempt inside the attempt's Finalize gate.
type AttemptService struct {
	quizzes     QuizRepository
	attempts    AttemptStore
	users       UserStore
	progress    ProgressStore
	progression *ProgressionService
	now         func() time.Time
}

func NewAttemptService(quizzes QuizRepository, attempts AttemptStore, users UserStore, progress ProgressStore, progression *ProgressionService) *AttemptService {
	return &AttemptService{
		quizzes:     quizzes,
		attempts:    attempts,
		users:       users,
		progress:    progress,
		progression: progression,
		now:         time.Now,
	}
}

// SetClock is test-only for deterministic timestamps.
func (s *AttemptService) SetClock(now func() time.Time) { s.now = now }

// StartedAttempt is what a "load quiz" call returns: the client-safe quiz
// plus the attempt the answers must go to.
type StartedAttempt struct {
	AttemptID string          `json:"attempt_id"`
	StartedAt time.Time       `json:"started_at"`
	Deadline  time.Time       `json:"deadline"`
	Quiz      domain.QuizView `json:"quiz"`
}

// Start returns the user's in_progress attempt for the quiz, creating one
// only when none is open. Re-entry never resets the timer. A stale attempt
// whose deadline already passed is finalized first, then a fresh attempt is
// created.
func (s *AttemptService) Start(ctx context.Context, userID, quizID string) (StartedAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartedAttempt{}, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return StartedAttempt{}, err
	}
	if quiz.IsPremium && !user.PremiumActive(s.now()) {
		return StartedAttempt{}, domain.ErrPremiumRequired
	}

	for {
		attempt, created := s.attempts.GetOrCreate(userID, quiz, s.now)
		if created || attempt.Open() {
			return StartedAttempt{
				AttemptID: attempt.ID(),
				StartedAt: attempt.StartedAt(),
				Deadline:  attempt.Deadline(),
				Quiz:      quiz.View(),
			}, nil
		}
		// Deadline passed without a submit: finalize with whatever answers
		// exist, release the slot, and loop to create a fresh attempt.
		if _, _, err := s.expire(ctx, attempt, quiz); err != nil {
			return StartedAttempt{}, err
		}
		s.attempts.Deactivate(userID, quiz.ID, attempt.ID())
	}
}

// RecordAnswer stores one answer on an open attempt, last write wins.
func (s *AttemptService) RecordAnswer(ctx context.Context, userID, attemptID, questionID string, option int) error {
	attempt, quiz, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if _, _, err := s.expire(ctx, attempt, quiz); err != nil {
		return err
	}
	return attempt.RecordAnswer(quiz, questionID, option)
}

// Submit finalizes the attempt at most once. Answers carried in the submit
// payload are merged last-write-wins over the incrementally recorded ones,
// but only while the attempt is still open; on a retry after finalization
// they are ignored and the recorded outcome comes back unchanged. The first
// caller scores and, on a pass, appends the XP grant; concurrent and retried
// submits receive the identical recorded outcome without re-scoring.
func (s *AttemptService) Submit(ctx context.Context, userID, attemptID string, answers map[string]int) (domain.SubmitOutcome, error) {
	attempt, quiz, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return domain.SubmitOutcome{}, err
	}

	// Reject a malformed payload before applying any of it.
	for questionID, option := range answers {
		if err := domain.ValidateAnswer(quiz, questionID, option); err != nil {
			return domain.SubmitOutcome{}, err
		}
	}
	for questionID, option := range answers {
		if err := attempt.RecordAnswer(quiz, questionID, option); err != nil {
			if errors.Is(err, domain.ErrAttemptClosed) {
				break
			}
			return domain.SubmitOutcome{}, err
		}
	}

	outcome, first, err := attempt.Finalize(quiz, func(result domain.QuizResult) (domain.SubmitOutcome, error) {
		return s.settle(ctx, attempt, quiz, result)
	})
	if err != nil {
		return domain.SubmitOutcome{}, err
	}
	if first {
		s.attempts.Deactivate(userID, quiz.ID, attempt.ID())
	}
	return outcome, nil
}

// Result returns the recorded outcome of a terminal attempt.
func (s *AttemptService) Result(ctx context.Context, userID, attemptID string) (domain.SubmitOutcome, error) {
	attempt, quiz, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return domain.SubmitOutcome{}, err
	}
	if _, _, err := s.expire(ctx, attempt, quiz); err != nil {
		return domain.SubmitOutcome{}, err
	}
	outcome, ok := attempt.Outcome()
	if !ok {
		return domain.SubmitOutcome{}, domain.ErrAttemptClosed
	}
	return outcome, nil
}

// ExpireDue finalizes every in_progress attempt whose deadline has passed.
// The server runs it on a ticker; lazy finalization on read keeps attempts
// correct even without the sweep.
func (s *AttemptService) ExpireDue(ctx context.Context) int {
	expired := 0
	for _, attempt := range s.attempts.InProgress() {
		quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID())
		if err != nil {
			log.Printf("deadline sweep: load quiz %s: %v", attempt.QuizID(), err)
			continue
		}
		_, finalized, err := s.expire(ctx, attempt, quiz)
		if err != nil {
			log.Printf("deadline sweep: finalize attempt %s: %v", attempt.ID(), err)
			continue
		}
		if finalized {
			s.attempts.Deactivate(attempt.UserID(), attempt.QuizID(), attempt.ID())
			expired++
		}
	}
	return expired
}

func (s *AttemptService) load(ctx context.Context, userID, attemptID string) (*domain.QuizAttempt, domain.Quiz, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok || attempt.UserID() != userID {
		return nil, domain.Quiz{}, domain.ErrAttemptNotFound
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID())
	if err != nil {
		return nil, domain.Quiz{}, err
	}
	return attempt, quiz, nil
}

func (s *AttemptService) expire(ctx context.Context, attempt *domain.QuizAttempt, quiz domain.Quiz) (domain.SubmitOutcome, bool, error) {
	return attempt.ExpireIfDue(quiz, func(result domain.QuizResult) (domain.SubmitOutcome, error) {
		return s.settle(ctx, attempt, quiz, result)
	})
}

// settle turns a pure score into the recorded outcome: quiz stats always,
// the XP grant only on a pass. Runs exactly once per attempt.
func (s *AttemptService) settle(ctx context.Context, attempt *domain.QuizAttempt, quiz domain.Quiz, result domain.QuizResult) (domain.SubmitOutcome, error) {
	if err := s.progress.RecordQuizAttempt(ctx, attempt.UserID(), quiz.LessonID, result.ScorePct); err != nil {
		return domain.SubmitOutcome{}, fmt.Errorf("record quiz attempt: %w", err)
	}

	if result.Passed && result.XPGained > 0 {
		description := fmt.Sprintf("Quiz: %s (%d%%)", quiz.Title, result.ScorePct)
		grant, err := s.progression.Grant(ctx, attempt.UserID(), result.XPGained, domain.ReasonQuizPass, quiz.ID, description)
		if err != nil {
			return domain.SubmitOutcome{}, err
		}
		return domain.SubmitOutcome{
			QuizResult: result,
			LevelUp:    grant.LevelUp,
			NewLevel:   grant.Level.Level,
			Level:      grant.Level,
		}, nil
	}

	info, err := s.progression.LevelInfoFor(ctx, attempt.UserID())
	if err != nil {
		return domain.SubmitOutcome{}, err
	}
	return domain.SubmitOutcome{
		QuizResult: result,
		NewLevel:   info.Level,
		Level:      info,
	}, nil
}
