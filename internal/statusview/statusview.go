// Package statusview computes the status-appropriate live view of a quiz:
// a countdown to start, a countdown to end with a participant snapshot, or
// final standings. Build is a pure function of (quiz, participants, now);
// Watcher owns the once-per-second recomputation while a view is open.
package statusview

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/timewindow"
)

// Standing is one row of the participant list, annotated for display.
type Standing struct {
	Position      int                  `json:"position"`
	Participation domain.Participation `json:"participation"`
	Completed     bool                 `json:"completed"`
}

// Snapshot is the derived view for a single instant.
type Snapshot struct {
	Quiz        domain.Quiz       `json:"quiz"`
	Status      domain.QuizStatus `json:"status"`
	ComputedAt  time.Time         `json:"computedAt"`
	UntilStart  string            `json:"untilStart,omitempty"`
	StartingNow bool              `json:"startingNow,omitempty"`
	Remaining   string            `json:"remaining,omitempty"`
	Ended       bool              `json:"ended,omitempty"`
	Progress    float64           `json:"progress"`
	Standings   []Standing        `json:"standings"`
}

// Build derives the snapshot for one instant. Status comes from the backend
// and is never overridden locally: a CREATED quiz whose start has passed
// reports StartingNow rather than flipping to LIVE.
func Build(quiz domain.Quiz, participants []domain.Participation, now time.Time) Snapshot {
	snap := Snapshot{
		Quiz:       quiz,
		Status:     quiz.Status,
		ComputedAt: now,
	}

	switch quiz.Status {
	case domain.StatusCreated:
		until := timewindow.Until(quiz.StartDateTime, now)
		snap.StartingNow = until == 0
		snap.UntilStart = timewindow.FormatSpan(until)
		snap.Standings = standings(participants, quiz, false)
	case domain.StatusLive:
		remaining := timewindow.Remaining(quiz.StartDateTime, quiz.Duration, now)
		snap.Ended = remaining == 0
		snap.Remaining = timewindow.FormatClock(remaining)
		snap.Progress = timewindow.Progress(quiz.StartDateTime, quiz.Duration, now)
		snap.Standings = standings(participants, quiz, false)
	case domain.StatusFinished:
		snap.Progress = 1
		snap.Standings = standings(participants, quiz, true)
	}
	return snap
}

// standings annotates participants; for finished quizzes they are ordered by
// score descending with fetch order breaking ties (stable sort, no invented
// secondary key).
func standings(participants []domain.Participation, quiz domain.Quiz, ranked bool) []Standing {
	rows := make([]Standing, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, Standing{
			Participation: p,
			Completed:     quiz.Status == domain.StatusFinished || !p.CompletionTime.IsZero(),
		})
	}
	if ranked {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Participation.Score > rows[j].Participation.Score
		})
	}
	for i := range rows {
		rows[i].Position = i + 1
	}
	return rows
}

// ParticipantSource fetches the standing snapshot for a quiz.
type ParticipantSource interface {
	Participants(ctx context.Context, quizID int64) ([]domain.Participation, error)
}

// Watcher recomputes a quiz's snapshot once per second while open. The
// participant snapshot is fetched once per open, best-effort: a failure
// degrades to an empty list and never blocks the countdown.
type Watcher struct {
	updates chan Snapshot
	stop    func()
	once    sync.Once
}

// Watch fetches participants, emits an initial snapshot, and then one per
// interval until Close. Zero interval means one second.
func Watch(ctx context.Context, quiz domain.Quiz, source ParticipantSource, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}

	var participants []domain.Participation
	if source != nil {
		snapshot, err := source.Participants(ctx, quiz.ID)
		if err != nil {
			log.Printf("participants for quiz %d unavailable: %v", quiz.ID, err)
		} else {
			participants = snapshot
		}
	}

	ch := make(chan Snapshot, 8)
	ch <- Build(quiz, participants, time.Now())

	stopTick := timewindow.Repeat(interval, func(now time.Time) {
		snap := Build(quiz, participants, now)
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot; readers only care about the latest.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	})

	return &Watcher{updates: ch, stop: stopTick}
}

// Updates streams derived snapshots, most recent last. The channel closes
// when the watcher does.
func (w *Watcher) Updates() <-chan Snapshot { return w.updates }

// Close stops the recomputation. No snapshot is emitted after Close returns.
// Idempotent.
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.stop()
		close(w.updates)
	})
}
