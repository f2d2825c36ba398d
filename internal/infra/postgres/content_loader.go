package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"edulearn-engine/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ContentLoader loads quiz JSONB and lesson rows from Postgres.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

// LoadQuiz reads the quiz document and stamps it with the owning lesson's
// premium flag, so premium gating never depends on the document staying in
// sync with the lesson row.
func (l *ContentLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		raw       []byte
		lessonID  string
		isPremium bool
	)
	err := l.pool.QueryRow(ctx, `
		SELECT q.data, q.lesson_id, l.is_premium
		FROM quizzes q
		JOIN lessons l ON l.id = q.lesson_id
		WHERE q.id = $1`, quizID).Scan(&raw, &lessonID, &isPremium)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	quiz.LessonID = lessonID
	quiz.IsPremium = isPremium
	return quiz, nil
}

func (l *ContentLoader) LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	var lesson domain.Lesson
	err := l.pool.QueryRow(ctx, `
		SELECT id, module_id, title, xp_reward, order_index, is_premium, is_active
		FROM lessons
		WHERE id = $1`, lessonID).Scan(
		&lesson.ID, &lesson.ModuleID, &lesson.Title, &lesson.XPReward,
		&lesson.OrderIndex, &lesson.IsPremium, &lesson.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("load lesson: %w", err)
	}
	return lesson, nil
}
