// Package session drives a user through a timed quiz: it loads the full
// working set of questions and options, tracks answers, reconciles the
// countdown against the absolute quiz end instant, and submits the answers
// as a single batch.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/timewindow"
)

// State is the lifecycle phase of a quiz session.
type State string

const (
	StateLoading        State = "LOADING"
	StateInProgress     State = "IN_PROGRESS"
	StateReviewComplete State = "REVIEW_COMPLETE"
	StateSubmitting     State = "SUBMITTING"
	StateSubmitted      State = "SUBMITTED"
	StateError          State = "ERROR"
)

// Direction selects where Advance moves the current question index.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

var (
	// ErrNotInProgress rejects navigation and answer selection outside IN_PROGRESS.
	ErrNotInProgress = errors.New("session is not in progress")
	// ErrNotReviewing rejects submit and question revisits outside REVIEW_COMPLETE.
	ErrNotReviewing = errors.New("session is not in review")
	// ErrAnswerRequired rejects forward navigation from an unanswered question.
	ErrAnswerRequired = errors.New("current question has no selected answer")
	// ErrAtFirstQuestion rejects backward navigation from index zero.
	ErrAtFirstQuestion = errors.New("already at the first question")
	// ErrQuestionIndex rejects revisiting an index outside the question list.
	ErrQuestionIndex = errors.New("question index out of range")
	// ErrSubmitInFlight enforces at most one outstanding submission.
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	// ErrSessionClosed rejects operations after Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotLoadable rejects Start outside LOADING or ERROR.
	ErrNotLoadable = errors.New("session already started")
)

// ContentSource provides the quiz working set. Implemented by the API client,
// the content caches, and the Postgres source.
type ContentSource interface {
	Quiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	Questions(ctx context.Context, quizID int64) ([]domain.Question, error)
	Options(ctx context.Context, questionID int64) ([]domain.Option, error)
}

// Submitter delivers the finished answer batch.
type Submitter interface {
	SubmitAnswers(ctx context.Context, batch domain.SubmissionBatch) (domain.Participation, error)
}

// Config wires a Session.
type Config struct {
	Source    ContentSource
	Submitter Submitter
	QuizID    int64
	// FetchConcurrency bounds the option fan-out during Start. Defaults to 4.
	FetchConcurrency int
	// Tick is the countdown recomputation interval. Zero means one second;
	// negative disables the internal ticker so ticks can be driven manually.
	Tick time.Duration
	// Now is test-only for deterministic timestamps.
	Now func() time.Time
}

// Session is the quiz-taking state machine. All mutations are serialized by
// one mutex; ticks are last-write-wins on remaining time and never stack.
type Session struct {
	source    ContentSource
	submitter Submitter
	quizID    int64
	fetchN    int
	tickEvery time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       State
	quiz        domain.Quiz
	questions   []domain.Question
	options     map[int64][]domain.Option
	answers     map[int64]int64
	index       int
	expired     bool
	inFlight    bool
	lastErr     error
	result      *domain.Participation
	subscribers map[chan Snapshot]struct{}
	closed      bool
	stopTick    func()
}

func New(cfg Config) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	fetchN := cfg.FetchConcurrency
	if fetchN <= 0 {
		fetchN = 4
	}
	tick := cfg.Tick
	if tick == 0 {
		tick = time.Second
	}
	return &Session{
		source:      cfg.Source,
		submitter:   cfg.Submitter,
		quizID:      cfg.QuizID,
		fetchN:      fetchN,
		tickEvery:   tick,
		now:         now,
		state:       StateLoading,
		options:     make(map[int64][]domain.Option),
		answers:     make(map[int64]int64),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Start loads quiz metadata, the question list, and every question's options.
// Metadata comes first so the time authority is fixed before anything else;
// option fetches fan out with bounded concurrency but the session only enters
// IN_PROGRESS once the entire working set has resolved. Any failure leaves
// the session in ERROR, from which Start may be called again.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateLoading && s.state != StateError {
		s.mu.Unlock()
		return ErrNotLoadable
	}
	s.state = StateLoading
	s.lastErr = nil
	s.mu.Unlock()

	quiz, questions, options, err := s.loadWorkingSet(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err != nil {
		s.state = StateError
		s.lastErr = err
		s.broadcastLocked()
		return err
	}

	s.quiz = quiz
	s.questions = questions
	s.options = options
	s.index = 0
	s.state = StateInProgress
	if s.tickEvery > 0 && s.stopTick == nil {
		s.stopTick = timewindow.Repeat(s.tickEvery, s.Tick)
	}
	s.broadcastLocked()
	return nil
}

func (s *Session) loadWorkingSet(ctx context.Context) (domain.Quiz, []domain.Question, map[int64][]domain.Option, error) {
	quiz, err := s.source.Quiz(ctx, s.quizID)
	if err != nil {
		return domain.Quiz{}, nil, nil, err
	}
	if quiz.Status == domain.StatusFinished {
		return domain.Quiz{}, nil, nil, domain.ErrQuizFinished
	}

	questions, err := s.source.Questions(ctx, s.quizID)
	if err != nil {
		return domain.Quiz{}, nil, nil, err
	}
	if len(questions) == 0 {
		// The working set is all-or-nothing and navigation assumes at
		// least one question exists.
		return domain.Quiz{}, nil, nil, domain.ErrNoQuestions
	}

	options := make(map[int64][]domain.Option, len(questions))
	var optMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchN)
	for _, q := range questions {
		q := q
		g.Go(func() error {
			opts, err := s.source.Options(gctx, q.ID)
			if err != nil {
				return err
			}
			optMu.Lock()
			options[q.ID] = opts
			optMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Partial working sets are not accepted.
		return domain.Quiz{}, nil, nil, err
	}
	return quiz, questions, options, nil
}

// Tick reconciles remaining time against the absolute end instant. Crossing
// zero forces REVIEW_COMPLETE exactly once; later zero-remaining ticks only
// refresh the countdown for subscribers.
func (s *Session) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.state != StateInProgress && s.state != StateReviewComplete {
		return
	}
	remaining := timewindow.Remaining(s.quiz.StartDateTime, s.quiz.Duration, now)
	if remaining == 0 && !s.expired {
		s.expired = true
		s.state = StateReviewComplete
	}
	s.broadcastLocked()
}

// SelectAnswer records the option chosen for a question, overwriting any
// prior selection. Navigation position is unaffected.
func (s *Session) SelectAnswer(questionID, optionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	opts, ok := s.options[questionID]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	found := false
	for _, o := range opts {
		if o.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrOptionNotFound
	}
	s.answers[questionID] = optionID
	s.broadcastLocked()
	return nil
}

// Advance moves between questions. Forward requires an answer for the current
// question; forward on the last question completes the run instead of
// incrementing the index.
func (s *Session) Advance(dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	switch dir {
	case Backward:
		if s.index == 0 {
			return ErrAtFirstQuestion
		}
		s.index--
	case Forward:
		current := s.questions[s.index]
		if _, answered := s.answers[current.ID]; !answered {
			return ErrAnswerRequired
		}
		if s.index == len(s.questions)-1 {
			s.state = StateReviewComplete
		} else {
			s.index++
		}
	default:
		return ErrNotInProgress
	}
	s.broadcastLocked()
	return nil
}

// GoTo returns from review to a specific question. Answers already given are
// preserved.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateReviewComplete {
		return ErrNotReviewing
	}
	if index < 0 || index >= len(s.questions) {
		return ErrQuestionIndex
	}
	s.index = index
	s.state = StateInProgress
	s.broadcastLocked()
	return nil
}

// Submit freezes the answer map into a batch and sends it. Unanswered
// questions are omitted. At most one submission is in flight; failure
// returns the session to review with all answers intact.
func (s *Session) Submit(ctx context.Context) (domain.Participation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Participation{}, ErrSessionClosed
	}
	if s.inFlight {
		s.mu.Unlock()
		return domain.Participation{}, ErrSubmitInFlight
	}
	if s.state != StateReviewComplete {
		s.mu.Unlock()
		return domain.Participation{}, ErrNotReviewing
	}
	batch := s.buildBatchLocked()
	s.inFlight = true
	s.state = StateSubmitting
	s.broadcastLocked()
	s.mu.Unlock()

	result, err := s.submitter.SubmitAnswers(ctx, batch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		s.state = StateReviewComplete
		s.lastErr = err
		s.broadcastLocked()
		return domain.Participation{}, err
	}
	s.state = StateSubmitted
	s.result = &result
	s.broadcastLocked()
	return result, nil
}

// buildBatchLocked keeps question order so repeated submissions of the same
// answer map produce identical payloads.
func (s *Session) buildBatchLocked() domain.SubmissionBatch {
	batch := domain.SubmissionBatch{Submissions: make([]domain.AnswerSubmission, 0, len(s.answers))}
	for _, q := range s.questions {
		if optionID, ok := s.answers[q.ID]; ok {
			batch.Submissions = append(batch.Submissions, domain.AnswerSubmission{
				QuestionID: q.ID,
				OptionID:   optionID,
			})
		}
	}
	return batch
}

// Close tears the session down: the countdown stops deterministically and no
// tick mutates state afterwards. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stop := s.stopTick
	s.stopTick = nil
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}
