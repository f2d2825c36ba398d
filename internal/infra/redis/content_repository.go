package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"edulearn-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches quiz and lesson content from a backing store
// (e.g., Postgres).
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// ContentRepository caches whole quiz and lesson documents in Redis as JSON
// and falls back to a loader on cache miss.
//
//	SET content:quiz:{quizID}   <json> EX ttl
//	SET content:lesson:{lessonID} <json> EX ttl
//
// Correct answers live inside the cached quiz JSON; the cache is server-side
// only and handlers expose domain.QuizView projections.
type ContentRepository struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewContentRepository(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := r.quizKey(quizID)

	var quiz domain.Quiz
	if ok, err := r.fetch(ctx, key, &quiz); err == nil && ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var quiz domain.Quiz
		if ok, err := r.fetch(ctx, key, &quiz); err == nil && ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(ctx, key, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *ContentRepository) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	key := r.lessonKey(lessonID)

	var lesson domain.Lesson
	if ok, err := r.fetch(ctx, key, &lesson); err == nil && ok {
		return lesson, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		var lesson domain.Lesson
		if ok, err := r.fetch(ctx, key, &lesson); err == nil && ok {
			return lesson, nil
		}

		lesson, err := r.loader.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.Lesson{}, err
		}
		r.store(ctx, key, lesson)
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

func (r *ContentRepository) fetch(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// corrupt entry, treat as miss
		return false, nil
	}
	return true, nil
}

// store is best-effort: a failed cache write only costs a reload later.
func (r *ContentRepository) store(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
}

func (r *ContentRepository) quizKey(quizID string) string {
	return "content:quiz:" + quizID
}

func (r *ContentRepository) lessonKey(lessonID string) string {
	return "content:lesson:" + lessonID
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
