package memory

import (
	"sync"
	"time"

	"edulearn-engine/internal/domain"
)

// AttemptStore is the in-memory implementation of app.AttemptStore. The
// active index holds at most one attempt per (user, quiz); terminal attempts
// stay reachable by ID so retried submits read their recorded outcome.
type AttemptStore struct {
	mu     sync.RWMutex
	byID   map[string]*domain.QuizAttempt
	active map[string]*domain.QuizAttempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		byID:   make(map[string]*domain.QuizAttempt),
		active: make(map[string]*domain.QuizAttempt),
	}
}

func activeKey(userID, quizID string) string {
	return userID + "/" + quizID
}

func (s *AttemptStore) GetOrCreate(userID string, quiz domain.Quiz, now func() time.Time) (*domain.QuizAttempt, bool) {
	key := activeKey(userID, quiz.ID)

	s.mu.RLock()
	attempt, ok := s.active[key]
	s.mu.RUnlock()
	if ok {
		return attempt, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt, ok := s.active[key]; ok {
		return attempt, false
	}
	attempt = domain.NewAttempt(userID, quiz, now)
	s.byID[attempt.ID()] = attempt
	s.active[key] = attempt
	return attempt, true
}

func (s *AttemptStore) Get(attemptID string) (*domain.QuizAttempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.byID[attemptID]
	return attempt, ok
}

func (s *AttemptStore) Deactivate(userID, quizID, attemptID string) {
	key := activeKey(userID, quizID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt, ok := s.active[key]; ok && attempt.ID() == attemptID {
		delete(s.active, key)
	}
}

func (s *AttemptStore) InProgress() []*domain.QuizAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempts := make([]*domain.QuizAttempt, 0, len(s.active))
	for _, attempt := range s.active {
		attempts = append(attempts, attempt)
	}
	return attempts
}
