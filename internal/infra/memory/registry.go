package memory

import "sync"

// SessionRegistry counts active solving sessions per quiz in-process.
type SessionRegistry struct {
	mu     sync.Mutex
	active map[int64]int
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{active: make(map[int64]int)}
}

// Register marks one active session. The release function is idempotent and
// must be called on teardown.
func (r *SessionRegistry) Register(quizID int64) (release func()) {
	r.mu.Lock()
	r.active[quizID]++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.active[quizID]--
			if r.active[quizID] <= 0 {
				delete(r.active, quizID)
			}
			r.mu.Unlock()
		})
	}
}

// Active reports how many sessions are currently solving the quiz.
func (r *SessionRegistry) Active(quizID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[quizID]
}
