package memory

import (
	"context"
	"sync"
	"time"

	"spaceforces-client/internal/domain"
)

// StaticSource serves quiz content from an in-memory map, useful for demos
// and tests. Validity flags never leave it on the play path.
type StaticSource struct {
	contents map[int64]domain.QuizContent
}

func NewStaticSource(contents map[int64]domain.QuizContent) *StaticSource {
	return &StaticSource{contents: contents}
}

func (s *StaticSource) Quiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	content, ok := s.contents[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return content.Quiz, nil
}

func (s *StaticSource) Questions(_ context.Context, quizID int64) ([]domain.Question, error) {
	content, ok := s.contents[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return content.Questions, nil
}

func (s *StaticSource) Options(_ context.Context, questionID int64) ([]domain.Option, error) {
	for _, content := range s.contents {
		if review, ok := content.Options[questionID]; ok {
			return domain.SanitizeOptions(review), nil
		}
	}
	return nil, domain.ErrQuestionNotFound
}

// LocalSubmitter accepts submission batches without scoring them; evaluation
// belongs to the real backend. It exists so the demo gateway and tests can
// exercise the full session lifecycle.
type LocalSubmitter struct {
	mu      sync.Mutex
	batches []domain.SubmissionBatch
	nextID  int64
}

func NewLocalSubmitter() *LocalSubmitter {
	return &LocalSubmitter{nextID: 1}
}

func (s *LocalSubmitter) SubmitAnswers(_ context.Context, batch domain.SubmissionBatch) (domain.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	id := s.nextID
	s.nextID++
	return domain.Participation{ID: id, CompletionTime: time.Now()}, nil
}

// Batches returns every accepted batch, in submission order.
func (s *LocalSubmitter) Batches() []domain.SubmissionBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SubmissionBatch(nil), s.batches...)
}
