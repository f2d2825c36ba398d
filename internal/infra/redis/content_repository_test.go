package redis

import (
	"context"
	"testing"
	"time"

	"edulearn-engine/internal/domain"
	"edulearn-engine/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestContentRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		ContentLoader: memory.NewStaticContentLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}, nil),
	}
	repo := NewContentRepository(newClient(mr), loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.quizCalls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.quizCalls)
	}
	if !mr.Exists("content:quiz:quiz-1") {
		t.Fatalf("expected quiz cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz cached: %v", err)
	}
	if loader.quizCalls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.quizCalls)
	}
	if cached.Questions[0].CorrectIndex != quiz.Questions[0].CorrectIndex {
		t.Fatalf("cached quiz lost answer data")
	}
}

func TestContentRepositoryCachesLessons(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		ContentLoader: memory.NewStaticContentLoader(nil, map[string]domain.Lesson{
			"lesson-1": {ID: "lesson-1", Title: "Greetings", XPReward: 50, IsActive: true},
		}),
	}
	repo := NewContentRepository(newClient(mr), loader, time.Minute)

	if _, err := repo.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if _, err := repo.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get lesson cached: %v", err)
	}
	if loader.lessonCalls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.lessonCalls)
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
