package domain

import "errors"

var (
	// ErrUserNotFound is returned when the caller's user record does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrLessonNotFound indicates the lesson could not be loaded.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrAttemptNotFound is returned when a quiz attempt ID is unknown.
	ErrAttemptNotFound = errors.New("quiz attempt not found")
	// ErrAttemptClosed is returned when answering or re-submitting after the
	// attempt reached a terminal state or its deadline passed.
	ErrAttemptClosed = errors.New("quiz attempt closed")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidOption indicates a submitted option index is out of range.
	ErrInvalidOption = errors.New("option out of range")
	// ErrInvalidAmount rejects non-positive XP grants.
	ErrInvalidAmount = errors.New("xp amount must be positive")
	// ErrPremiumRequired gates premium-flagged content.
	ErrPremiumRequired = errors.New("premium required")
)
