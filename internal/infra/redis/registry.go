package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRegistry tracks active solving sessions per quiz in Redis so the
// count survives across gateway instances. Counters carry a TTL as a safety
// net against releases lost to a crashed instance.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{client: client, ttl: ttl}
}

// Register increments the quiz's active-session counter, best-effort. The
// release function is idempotent.
func (r *SessionRegistry) Register(quizID int64) (release func()) {
	key := r.key(quizID)
	ctx := context.Background()
	_ = r.client.Incr(ctx, key).Err()
	if r.ttl > 0 {
		_ = r.client.Expire(ctx, key, r.ttl).Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = r.client.Decr(context.Background(), key).Err()
		})
	}
}

// Active reports how many sessions are currently solving the quiz. Errors
// degrade to zero; the count is informational.
func (r *SessionRegistry) Active(quizID int64) int {
	n, err := r.client.Get(context.Background(), r.key(quizID)).Int()
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (r *SessionRegistry) key(quizID int64) string {
	return fmt.Sprintf("contest:%d:active", quizID)
}
