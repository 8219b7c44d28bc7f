package redis

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"spaceforces-client/internal/domain"
)

type countingSource struct {
	quizCalls   int32
	optionCalls int32
	quiz        domain.Quiz
	options     []domain.Option
}

func (s *countingSource) Quiz(context.Context, int64) (domain.Quiz, error) {
	atomic.AddInt32(&s.quizCalls, 1)
	return s.quiz, nil
}

func (s *countingSource) Questions(context.Context, int64) ([]domain.Question, error) {
	return []domain.Question{{ID: 1, Text: "question"}}, nil
}

func (s *countingSource) Options(context.Context, int64) ([]domain.Option, error) {
	atomic.AddInt32(&s.optionCalls, 1)
	return s.options, nil
}

func newTestCache(t *testing.T, source ContentSource, ttl time.Duration) (*ContentCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewContentCache(client, source, ttl), mr
}

func TestContentCacheServesFromRedisOnSecondRead(t *testing.T) {
	source := &countingSource{quiz: domain.Quiz{ID: 7, Title: "Oort Cloud", Status: domain.StatusLive}}
	cache, mr := newTestCache(t, source, time.Minute)

	quiz, err := cache.Quiz(context.Background(), 7)
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if quiz.Title != "Oort Cloud" {
		t.Fatalf("quiz = %+v", quiz)
	}
	if !mr.Exists("contest:7:meta") {
		t.Fatal("quiz metadata not written to redis")
	}

	if _, err := cache.Quiz(context.Background(), 7); err != nil {
		t.Fatalf("cached quiz: %v", err)
	}
	if calls := atomic.LoadInt32(&source.quizCalls); calls != 1 {
		t.Fatalf("source hit %d times, want 1", calls)
	}
}

func TestContentCacheRefetchesAfterTTL(t *testing.T) {
	source := &countingSource{quiz: domain.Quiz{ID: 7}}
	cache, mr := newTestCache(t, source, time.Minute)

	if _, err := cache.Quiz(context.Background(), 7); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	// Jitter extends the TTL by at most 10%.
	mr.FastForward(2 * time.Minute)
	if _, err := cache.Quiz(context.Background(), 7); err != nil {
		t.Fatalf("quiz after expiry: %v", err)
	}
	if calls := atomic.LoadInt32(&source.quizCalls); calls != 2 {
		t.Fatalf("source hit %d times, want 2", calls)
	}
}

func TestContentCacheStoresOnlySanitizedOptions(t *testing.T) {
	source := &countingSource{options: []domain.Option{{ID: 10, Text: "Callisto"}}}
	cache, mr := newTestCache(t, source, time.Minute)

	if _, err := cache.Options(context.Background(), 3); err != nil {
		t.Fatalf("options: %v", err)
	}
	raw, err := mr.Get("question:3:options")
	if err != nil {
		t.Fatalf("redis get: %v", err)
	}
	if strings.Contains(strings.ToLower(raw), "valid") {
		t.Fatalf("cached options carry validity: %s", raw)
	}

	var cached []domain.Option
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		t.Fatalf("unmarshal cached options: %v", err)
	}
	if len(cached) != 1 || cached[0].Text != "Callisto" {
		t.Fatalf("cached options = %+v", cached)
	}
}

func TestContentCacheQuestionsRoundTrip(t *testing.T) {
	source := &countingSource{}
	cache, _ := newTestCache(t, source, time.Minute)

	first, err := cache.Questions(context.Background(), 7)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	second, err := cache.Questions(context.Background(), 7)
	if err != nil {
		t.Fatalf("cached questions: %v", err)
	}
	if len(first) != len(second) || first[0].ID != second[0].ID {
		t.Fatalf("cache changed the question list: %+v vs %+v", first, second)
	}
}
