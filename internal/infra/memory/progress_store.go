package memory

import (
	"context"
	"sync"
	"time"

	"edulearn-engine/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore.
type ProgressStore struct {
	mu       sync.Mutex
	progress map[string]*domain.LessonProgress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[string]*domain.LessonProgress)}
}

func progressKey(userID, lessonID string) string {
	return userID + "/" + lessonID
}

func (s *ProgressStore) get(userID, lessonID string) *domain.LessonProgress {
	key := progressKey(userID, lessonID)
	if p, ok := s.progress[key]; ok {
		return p
	}
	p := &domain.LessonProgress{UserID: userID, LessonID: lessonID}
	s.progress[key] = p
	return p
}

func (s *ProgressStore) MarkCompleted(_ context.Context, userID, lessonID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.get(userID, lessonID)
	if p.Completed {
		return false, nil
	}
	p.Completed = true
	p.CompletedAt = &at
	return true, nil
}

func (s *ProgressStore) RecordQuizAttempt(_ context.Context, userID, lessonID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.get(userID, lessonID)
	p.QuizAttempts++
	if score > p.BestScore {
		p.BestScore = score
	}
	return nil
}

// Get returns a copy of the progress row, if any.
func (s *ProgressStore) Get(userID, lessonID string) (domain.LessonProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey(userID, lessonID)]
	if !ok {
		return domain.LessonProgress{}, false
	}
	return *p, true
}

func (s *ProgressStore) CountCompleted(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.progress {
		if p.UserID == userID && p.Completed {
			count++
		}
	}
	return count, nil
}
