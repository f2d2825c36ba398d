package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"edulearn-engine/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches quiz and lesson content from a backing store.
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// ContentRepository caches quizzes and lessons with TTL to avoid repeated DB
// hits. Content includes correct answers, so it must never leave the server
// uncurated; handlers serve domain.QuizView projections only.
type ContentRepository struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu      sync.RWMutex
	quizzes map[string]cachedQuiz
	lessons map[string]cachedLesson
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

type cachedLesson struct {
	lesson    domain.Lesson
	expiresAt time.Time
}

func NewContentRepository(loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes: make(map[string]cachedQuiz),
		lessons: make(map[string]cachedLesson),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.quizzes[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.quiz, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("quiz:"+quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.quizzes[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.quiz, nil
		}
		r.mu.RUnlock()

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		r.quizzes[quizID] = cachedQuiz{quiz: quiz, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *ContentRepository) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.lessons[lessonID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.lesson, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("lesson:"+lessonID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.lessons[lessonID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.lesson, nil
		}
		r.mu.RUnlock()

		lesson, err := r.loader.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.Lesson{}, err
		}

		r.mu.Lock()
		r.lessons[lessonID] = cachedLesson{lesson: lesson, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

// StaticContentLoader is a loader backed by in-memory maps (useful for
// tests/demos).
type StaticContentLoader struct {
	quizzes map[string]domain.Quiz
	lessons map[string]domain.Lesson
}

func NewStaticContentLoader(quizzes map[string]domain.Quiz, lessons map[string]domain.Lesson) *StaticContentLoader {
	return &StaticContentLoader{quizzes: quizzes, lessons: lessons}
}

func (l *StaticContentLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticContentLoader) LoadLesson(_ context.Context, lessonID string) (domain.Lesson, error) {
	if lesson, ok := l.lessons[lessonID]; ok {
		return lesson, nil
	}
	return domain.Lesson{}, domain.ErrLessonNotFound
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
