package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRegistry(t *testing.T, ttl time.Duration) (*SessionRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSessionRegistry(client, ttl), mr
}

func TestSessionRegistryCountsAcrossRegistrations(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Hour)

	releaseA := reg.Register(1)
	releaseB := reg.Register(1)

	if got := reg.Active(1); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}
	if got := reg.Active(2); got != 0 {
		t.Fatalf("active for untouched quiz = %d, want 0", got)
	}

	releaseA()
	releaseA() // idempotent
	if got := reg.Active(1); got != 1 {
		t.Fatalf("active after release = %d, want 1", got)
	}

	releaseB()
	if got := reg.Active(1); got != 0 {
		t.Fatalf("active after all releases = %d, want 0", got)
	}
}

func TestSessionRegistryCounterExpires(t *testing.T) {
	reg, mr := newTestRegistry(t, time.Minute)

	_ = reg.Register(3)
	if got := reg.Active(3); got != 1 {
		t.Fatalf("active = %d, want 1", got)
	}

	// A crashed instance never calls release; the TTL reaps the counter.
	mr.FastForward(2 * time.Minute)
	if got := reg.Active(3); got != 0 {
		t.Fatalf("active after TTL = %d, want 0", got)
	}
}

func TestSessionRegistryDegradesWhenRedisDown(t *testing.T) {
	reg, mr := newTestRegistry(t, time.Minute)
	mr.Close()

	release := reg.Register(1)
	release()
	if got := reg.Active(1); got != 0 {
		t.Fatalf("active = %d, want 0 when redis is unreachable", got)
	}
}
