package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

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

// ContentCache memoizes quiz content with TTL so a session restart or a
// status view reopening does not re-hit the backend for the same contest.
type ContentCache struct {
	source ContentSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	quizzes   map[int64]cached[domain.Quiz]
	questions map[int64]cached[[]domain.Question]
	options   map[int64]cached[[]domain.Option]
}

type cached[T any] struct {
	value     T
	expiresAt time.Time
}

func NewContentCache(source ContentSource, ttl time.Duration) *ContentCache {
	return &ContentCache{
		source:    source,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes:   make(map[int64]cached[domain.Quiz]),
		questions: make(map[int64]cached[[]domain.Question]),
		options:   make(map[int64]cached[[]domain.Option]),
	}
}

func (c *ContentCache) Quiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return load(c, "quiz", quizID, c.quizzes, func() (domain.Quiz, error) {
		return c.source.Quiz(ctx, quizID)
	})
}

func (c *ContentCache) Questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	return load(c, "questions", quizID, c.questions, func() ([]domain.Question, error) {
		return c.source.Questions(ctx, quizID)
	})
}

func (c *ContentCache) Options(ctx context.Context, questionID int64) ([]domain.Option, error) {
	return load(c, "options", questionID, c.options, func() ([]domain.Option, error) {
		return c.source.Options(ctx, questionID)
	})
}

// load collapses concurrent misses for the same key into one source call.
func load[T any](c *ContentCache, kind string, id int64, entries map[int64]cached[T], fetch func() (T, error)) (T, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := entries[id]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.value, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(fmt.Sprintf("%s:%d", kind, id), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := entries[id]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.value, nil
		}
		c.mu.RUnlock()

		value, err := fetch()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		entries[id] = cached[T]{value: value, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func (c *ContentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
