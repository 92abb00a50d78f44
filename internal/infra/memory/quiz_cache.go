package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// QuizCache wraps a QuizRepository and caches GetQuiz with a TTL to avoid
// repeated store hits on the grading path. Every write passes through to the
// backing repository and evicts the affected quiz. A fill that started before
// an eviction is not stored.
type QuizCache struct {
	app.QuizRepository

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuiz
	gens  map[string]uint64 // bumped by every eviction
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(backing app.QuizRepository, ttl time.Duration) *QuizCache {
	return &QuizCache{
		QuizRepository: backing,
		ttl:            ttl,
		clock:          time.Now,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:          make(map[string]cachedQuiz),
		gens:           make(map[string]uint64),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := c.lookup(quizID); ok {
			return quiz, nil
		}
		now := c.clock()
		c.mu.RLock()
		gen := c.gens[quizID]
		c.mu.RUnlock()

		quiz, err := c.QuizRepository.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.mu.Lock()
		if c.gens[quizID] == gen {
			c.cache[quizID] = cachedQuiz{
				quiz:      quiz,
				expiresAt: now.Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return cloneQuiz(result.(domain.Quiz)), nil
}

func (c *QuizCache) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	defer c.Evict(quiz.ID)
	return c.QuizRepository.UpdateQuiz(ctx, quiz)
}

func (c *QuizCache) DeactivateQuiz(ctx context.Context, quizID string, at time.Time) error {
	defer c.Evict(quizID)
	return c.QuizRepository.DeactivateQuiz(ctx, quizID, at)
}

func (c *QuizCache) SetAccessCode(ctx context.Context, quizID, code string, at time.Time) error {
	defer c.Evict(quizID)
	return c.QuizRepository.SetAccessCode(ctx, quizID, code, at)
}

func (c *QuizCache) UpsertRating(ctx context.Context, rating domain.Rating) error {
	defer c.Evict(rating.QuizID)
	return c.QuizRepository.UpsertRating(ctx, rating)
}

func (c *QuizCache) AddJoinedUser(ctx context.Context, quizID, userID string) error {
	defer c.Evict(quizID)
	return c.QuizRepository.AddJoinedUser(ctx, quizID, userID)
}

func (c *QuizCache) RecordAttempt(ctx context.Context, quizID string, percentage float64) error {
	defer c.Evict(quizID)
	return c.QuizRepository.RecordAttempt(ctx, quizID, percentage)
}

// Evict drops a cached quiz and invalidates any fill still in flight.
func (c *QuizCache) Evict(quizID string) {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.gens[quizID]++
	c.mu.Unlock()
	c.sf.Forget(quizID)
}

func (c *QuizCache) lookup(quizID string) (domain.Quiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Quiz{}, false
	}
	return cloneQuiz(entry.quiz), true
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
