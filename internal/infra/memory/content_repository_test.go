package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"edulearn-engine/internal/domain"
)

func TestContentRepositoryCachesQuizzes(t *testing.T) {
	loader := &countingLoader{
		ContentLoader: NewStaticContentLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}, nil),
	}
	repo := NewContentRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.quizCalls != 1 {
		t.Fatalf("expected loader once, got %d", loader.quizCalls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.quizCalls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.quizCalls)
	}
}

func TestContentRepositoryCachesLessons(t *testing.T) {
	loader := &countingLoader{
		ContentLoader: NewStaticContentLoader(nil, map[string]domain.Lesson{
			"lesson-1": {ID: "lesson-1", Title: "Greetings", XPReward: 50, IsActive: true},
		}),
	}
	repo := NewContentRepository(loader, time.Minute)

	if _, err := repo.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if _, err := repo.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get lesson 2: %v", err)
	}
	if loader.lessonCalls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.lessonCalls)
	}
}

func TestContentRepositoryMissIsNotCached(t *testing.T) {
	loader := &countingLoader{ContentLoader: NewStaticContentLoader(nil, nil)}
	repo := NewContentRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if loader.quizCalls != 2 {
		t.Fatalf("errors must not be cached, loader calls %d", loader.quizCalls)
	}
}

type countingLoader struct {
	ContentLoader
	quizCalls   int
	lessonCalls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.quizCalls++
	return l.ContentLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	l.lessonCalls++
	return l.ContentLoader.LoadLesson(ctx, lessonID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		LessonID:     "lesson-1",
		PassingScore: 70,
		XPReward:     100,
		TimeLimitSec: 300,
		Questions: []domain.Question{
			{
				ID:           "q1",
				Text:         "What is 2 + 2?",
				Options:      []string{"3", "4", "5"},
				CorrectIndex: 1,
			},
		},
	}
}
