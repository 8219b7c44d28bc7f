package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"spaceforces-client/internal/domain"
)

// ContentSource loads self-hosted quiz content stored as JSONB. Options are
// persisted with validity flags but sanitized before leaving the source.
type ContentSource struct {
	pool *pgxpool.Pool
}

func NewContentSource(pool *pgxpool.Pool) *ContentSource {
	return &ContentSource{pool: pool}
}

func (s *ContentSource) Quiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	content, err := s.loadContent(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return content.Quiz, nil
}

func (s *ContentSource) Questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	content, err := s.loadContent(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return content.Questions, nil
}

func (s *ContentSource) Options(ctx context.Context, questionID int64) ([]domain.Option, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data->'options'->$1::text FROM contests WHERE data->'options' ? $1::text`,
		fmt.Sprintf("%d", questionID),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	var review []domain.ReviewOption
	if err := json.Unmarshal(raw, &review); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	return domain.SanitizeOptions(review), nil
}

// ReviewOptions returns options with validity for finished-quiz review.
func (s *ContentSource) ReviewOptions(ctx context.Context, quiz domain.Quiz, questionID int64) ([]domain.ReviewOption, error) {
	if quiz.Status != domain.StatusFinished {
		return nil, domain.ErrQuizNotFinished
	}
	content, err := s.loadContent(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}
	review, ok := content.Options[questionID]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return review, nil
}

func (s *ContentSource) loadContent(ctx context.Context, quizID int64) (domain.QuizContent, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM contests WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizContent{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizContent{}, fmt.Errorf("load contest: %w", err)
	}
	var content domain.QuizContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return domain.QuizContent{}, fmt.Errorf("unmarshal contest: %w", err)
	}
	return content, nil
}
