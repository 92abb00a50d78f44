package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// QuizCache caches whole quiz documents in Redis and falls back to the
// wrapped repository on a miss. Quizzes are stored as JSON under
// quiz:{quizID}. Writes go to the backing repository, then delete the key and
// bump quiz:{quizID}:gen; a fill only lands if the generation it read before
// loading is still current.
type QuizCache struct {
	app.QuizRepository

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

const genKeyTTL = 24 * time.Hour

var errStaleFill = errors.New("quiz changed while loading")

func NewQuizCache(client *redis.Client, backing app.QuizRepository, ttl time.Duration) *QuizCache {
	return &QuizCache{
		QuizRepository: backing,
		client:         client,
		ttl:            ttl,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := c.lookup(ctx, quizID); ok {
			return quiz, nil
		}

		gen, err := c.generation(ctx, c.client, quizID)
		if err != nil {
			glog.Warningf("read quiz generation %s: %v", quizID, err)
		}

		quiz, err := c.QuizRepository.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		payload, err := json.Marshal(quiz)
		if err != nil {
			return quiz, nil
		}
		c.store(ctx, quizID, gen, payload)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	defer c.Evict(ctx, quiz.ID)
	return c.QuizRepository.UpdateQuiz(ctx, quiz)
}

func (c *QuizCache) DeactivateQuiz(ctx context.Context, quizID string, at time.Time) error {
	defer c.Evict(ctx, quizID)
	return c.QuizRepository.DeactivateQuiz(ctx, quizID, at)
}

func (c *QuizCache) SetAccessCode(ctx context.Context, quizID, code string, at time.Time) error {
	defer c.Evict(ctx, quizID)
	return c.QuizRepository.SetAccessCode(ctx, quizID, code, at)
}

func (c *QuizCache) UpsertRating(ctx context.Context, rating domain.Rating) error {
	defer c.Evict(ctx, rating.QuizID)
	return c.QuizRepository.UpsertRating(ctx, rating)
}

func (c *QuizCache) AddJoinedUser(ctx context.Context, quizID, userID string) error {
	defer c.Evict(ctx, quizID)
	return c.QuizRepository.AddJoinedUser(ctx, quizID, userID)
}

func (c *QuizCache) RecordAttempt(ctx context.Context, quizID string, percentage float64) error {
	defer c.Evict(ctx, quizID)
	return c.QuizRepository.RecordAttempt(ctx, quizID, percentage)
}

// Evict removes the cached copy of a quiz and invalidates fills still in
// flight. Failures are logged only.
func (c *QuizCache) Evict(ctx context.Context, quizID string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(quizID))
		pipe.Expire(ctx, c.genKey(quizID), genKeyTTL)
		pipe.Del(ctx, c.key(quizID))
		return nil
	})
	if err != nil {
		glog.Warningf("evict quiz %s: %v", quizID, err)
	}
	c.sf.Forget(quizID)
}

// store writes payload only while the generation still equals gen.
func (c *QuizCache) store(ctx context.Context, quizID string, gen int64, payload []byte) {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.generation(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(quizID), payload, c.ttlWithJitter())
			return nil
		})
		return err
	}, c.genKey(quizID))
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		glog.V(2).Infof("skip caching quiz %s: changed while loading", quizID)
	default:
		glog.Warningf("cache quiz %s: %v", quizID, err)
	}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *QuizCache) generation(ctx context.Context, cmd getter, quizID string) (int64, error) {
	gen, err := cmd.Get(ctx, c.genKey(quizID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *QuizCache) lookup(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			glog.Warningf("read cached quiz %s: %v", quizID, err)
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (c *QuizCache) key(quizID string) string {
	return "quiz:" + quizID
}

func (c *QuizCache) genKey(quizID string) string {
	return "quiz:" + quizID + ":gen"
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
