package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"spaceforces-client/internal/domain"
)

// ContentSource fetches quiz content from a backing store (the REST API or a
// local database).
type ContentSource interface {
	Quiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	Questions(ctx context.Context, quizID int64) ([]domain.Question, error)
	Options(ctx context.Context, questionID int64) ([]domain.Option, error)
}

// ContentCache memoizes quiz content in Redis as JSON values:
//
//	SET contest:{quizID}:meta      {quiz}
//	SET contest:{quizID}:questions {questions}
//	SET question:{questionID}:options {options}
//
// Only sanitized options ever enter the cache; validity flags are stripped
// upstream, so a cache dump cannot leak answers for a running contest.
type ContentCache struct {
	client *redis.Client
	source ContentSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContentCache(client *redis.Client, source ContentSource, ttl time.Duration) *ContentCache {
	return &ContentCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ContentCache) Quiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.load(ctx, fmt.Sprintf("contest:%d:meta", quizID), &quiz, func() (any, error) {
		return c.source.Quiz(ctx, quizID)
	})
	return quiz, err
}

func (c *ContentCache) Questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var questions []domain.Question
	err := c.load(ctx, fmt.Sprintf("contest:%d:questions", quizID), &questions, func() (any, error) {
		return c.source.Questions(ctx, quizID)
	})
	return questions, err
}

func (c *ContentCache) Options(ctx context.Context, questionID int64) ([]domain.Option, error) {
	var options []domain.Option
	err := c.load(ctx, fmt.Sprintf("question:%d:options", questionID), &options, func() (any, error) {
		return c.source.Options(ctx, questionID)
	})
	return options, err
}

// load reads the key, collapsing concurrent misses into one source call and
// caching the result with a jittered TTL.
func (c *ContentCache) load(ctx context.Context, key string, out any, fetch func() (any, error)) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, out)
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}

		value, err := fetch()
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, key, encoded, c.ttlWithJitter()).Err()
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), out)
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
