package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the quiz-attempt lifecycle state. Transitions only move
// forward: in_progress -> submitted | expired_submitted.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptExpired    AttemptStatus = "expired_submitted"
)

// QuizAttempt is one timed run of a user through a quiz. The attempt's mutex
// is the serialization point that makes finalization at-most-once: the first
// finalizer scores and records the outcome, every later caller reads the
// recorded outcome back.
type QuizAttempt struct {
	id        string
	userID    string
	quizID    string
	startedAt time.Time
	deadline  time.Time
	now       func() time.Time

	mu      sync.Mutex
	status  AttemptStatus
	answers map[string]int
	outcome *SubmitOutcome
}

// NewAttempt starts an attempt for a quiz. The deadline is fixed at creation
// and never reset by re-entry.
func NewAttempt(userID string, quiz Quiz, now func() time.Time) *QuizAttempt {
	if now == nil {
		now = time.Now
	}
	started := now()
	return &QuizAttempt{
		id:        uuid.NewString(),
		userID:    userID,
		quizID:    quiz.ID,
		startedAt: started,
		deadline:  started.Add(time.Duration(quiz.TimeLimitSec) * time.Second),
		now:       now,
		status:    AttemptInProgress,
		answers:   make(map[string]int),
	}
}

func (a *QuizAttempt) ID() string           { return a.id }
func (a *QuizAttempt) UserID() string       { return a.userID }
func (a *QuizAttempt) QuizID() string       { return a.quizID }
func (a *QuizAttempt) StartedAt() time.Time { return a.startedAt }
func (a *QuizAttempt) Deadline() time.Time  { return a.deadline }

// Status returns the current lifecycle state.
func (a *QuizAttempt) Status() AttemptStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Answers returns a copy of the recorded answers.
func (a *QuizAttempt) Answers() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.answers))
	for k, v := range a.answers {
		out[k] = v
	}
	return out
}

// Open reports whether the attempt can still accept answers.
func (a *QuizAttempt) Open() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status == AttemptInProgress && a.now().Before(a.deadline)
}

// RecordAnswer stores one answer, overwriting any previous answer for the
// same question (last write wins). Fails with ErrAttemptClosed once the
// attempt is terminal or past its deadline.
func (a *QuizAttempt) RecordAnswer(quiz Quiz, questionID string, option int) error {
	if err := ValidateAnswer(quiz, questionID, option); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != AttemptInProgress || !a.now().Before(a.deadline) {
		return ErrAttemptClosed
	}
	a.answers[questionID] = option
	return nil
}

// Outcome returns the recorded terminal outcome, if any.
func (a *QuizAttempt) Outcome() (SubmitOutcome, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome == nil {
		return SubmitOutcome{}, false
	}
	return *a.outcome, true
}

// Finalize drives the attempt to a terminal state exactly once. onFirst runs
// under the attempt lock for the single caller that performs the scoring; it
// receives the pure score and returns the outcome to record (typically after
// appending the XP grant). Later callers get the recorded outcome with
// first=false. If onFirst fails the attempt stays in_progress so a retry can
// finalize it. Whether the terminal state is submitted or expired_submitted
// depends on the deadline at finalization time.
func (a *QuizAttempt) Finalize(quiz Quiz, onFirst func(QuizResult) (SubmitOutcome, error)) (SubmitOutcome, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome != nil {
		return *a.outcome, false, nil
	}

	result := Score(quiz, a.answers)
	outcome, err := onFirst(result)
	if err != nil {
		return SubmitOutcome{}, false, err
	}
	if a.now().Before(a.deadline) {
		a.status = AttemptSubmitted
	} else {
		a.status = AttemptExpired
	}
	a.outcome = &outcome
	return outcome, true, nil
}

// ExpireIfDue finalizes the attempt as expired_submitted when the deadline
// has passed, scoring whatever answers exist. It reports whether this call
// performed the finalization.
func (a *QuizAttempt) ExpireIfDue(quiz Quiz, onFirst func(QuizResult) (SubmitOutcome, error)) (SubmitOutcome, bool, error) {
	a.mu.Lock()
	if a.outcome != nil {
		out := *a.outcome
		a.mu.Unlock()
		return out, false, nil
	}
	if a.now().Before(a.deadline) {
		a.mu.Unlock()
		return SubmitOutcome{}, false, nil
	}
	a.mu.Unlock()
	return a.Finalize(quiz, onFirst)
}
