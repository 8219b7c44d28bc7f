package session

import (
	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/timewindow"
)

// QuestionStatus is the per-question answered marker shown in the review index.
type QuestionStatus struct {
	QuestionID int64 `json:"questionId"`
	Answered   bool  `json:"answered"`
}

// Snapshot is an externally observable view of the session. Options carry no
// validity data, so nothing in a snapshot can leak correctness while solving.
type Snapshot struct {
	State          State                 `json:"state"`
	Quiz           domain.Quiz           `json:"quiz"`
	QuestionIndex  int                   `json:"questionIndex"`
	QuestionCount  int                   `json:"questionCount"`
	Question       *domain.Question      `json:"question,omitempty"`
	Options        []domain.Option       `json:"options,omitempty"`
	SelectedOption int64                 `json:"selectedOption,omitempty"`
	Questions      []QuestionStatus      `json:"questions,omitempty"`
	AnsweredCount  int                   `json:"answeredCount"`
	Remaining      string                `json:"remaining"`
	RemainingMs    int64                 `json:"remainingMs"`
	Progress       float64               `json:"progress"`
	Result         *domain.Participation `json:"result,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Err reports the last fetch or submit failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe returns a channel receiving a snapshot on every state change and
// countdown tick. The caller must invoke the cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so slow consumers never block the session.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         s.state,
		Quiz:          s.quiz,
		QuestionIndex: s.index,
		QuestionCount: len(s.questions),
		AnsweredCount: len(s.answers),
		Result:        s.result,
	}
	if s.quiz.ID != 0 {
		now := s.now()
		remaining := timewindow.Remaining(s.quiz.StartDateTime, s.quiz.Duration, now)
		snap.Remaining = timewindow.FormatClock(remaining)
		snap.RemainingMs = remaining.Milliseconds()
		snap.Progress = timewindow.Progress(s.quiz.StartDateTime, s.quiz.Duration, now)
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}

	switch s.state {
	case StateInProgress:
		q := s.questions[s.index]
		snap.Question = &q
		snap.Options = append([]domain.Option(nil), s.options[q.ID]...)
		snap.SelectedOption = s.answers[q.ID]
	case StateReviewComplete, StateSubmitting, StateSubmitted:
		statuses := make([]QuestionStatus, 0, len(s.questions))
		for _, q := range s.questions {
			_, answered := s.answers[q.ID]
			statuses = append(statuses, QuestionStatus{QuestionID: q.ID, Answered: answered})
		}
		snap.Questions = statuses
	}
	return snap
}
