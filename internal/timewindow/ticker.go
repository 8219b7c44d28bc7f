package timewindow

import (
	"sync"
	"time"
)

// Repeat invokes fn once per interval until the returned stop function is
// called. Stop is idempotent and blocks until the ticking goroutine has
// exited, so no invocation of fn can race a completed teardown.
func Repeat(interval time.Duration, fn func(now time.Time)) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		for {
			select {
			case now := <-ticker.C:
				fn(now)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			<-exited
		})
	}
}
