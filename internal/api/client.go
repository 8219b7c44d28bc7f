// Package api is the HTTP client for the spaceforces REST backend. It maps
// transport failures into the domain error taxonomy so nothing above it ever
// sees a raw HTTP error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"spaceforces-client/internal/domain"
)

// Client talks to the spaceforces API. The zero timeout falls back to 15s.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Token is sent as a bearer token when set. Auth itself lives outside
	// this client; it only forwards the credential.
	Token string
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   opts.Token,
	}
}

// Quiz fetches contest metadata, including the authoritative start time.
func (c *Client) Quiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.getJSON(ctx, fmt.Sprintf("/quizzes/%d", quizID), &quiz, domain.ErrQuizNotFound)
	return quiz, err
}

// Quizzes lists all contests.
func (c *Client) Quizzes(ctx context.Context) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	err := c.getJSON(ctx, "/quizzes", &quizzes, nil)
	return quizzes, err
}

// Questions fetches the ordered question list of a quiz.
func (c *Client) Questions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var questions []domain.Question
	err := c.getJSON(ctx, fmt.Sprintf("/quizzes/%d/questions", quizID), &questions, domain.ErrQuizNotFound)
	return questions, err
}

// Options fetches the answer choices for a question. The decoded type has no
// validity field, so correctness data is dropped at the wire boundary even if
// the backend were to send it.
func (c *Client) Options(ctx context.Context, questionID int64) ([]domain.Option, error) {
	var options []domain.Option
	err := c.getJSON(ctx, fmt.Sprintf("/questions/%d/options", questionID), &options, domain.ErrQuestionNotFound)
	return options, err
}

// ReviewOptions fetches answer choices including validity. It refuses unless
// the quiz is FINISHED; validity must never be observable during solving.
func (c *Client) ReviewOptions(ctx context.Context, quiz domain.Quiz, questionID int64) ([]domain.ReviewOption, error) {
	if quiz.Status != domain.StatusFinished {
		return nil, domain.ErrQuizNotFinished
	}
	var options []domain.ReviewOption
	err := c.getJSON(ctx, fmt.Sprintf("/questions/%d/options", questionID), &options, domain.ErrQuestionNotFound)
	return options, err
}

// Participants fetches the current standing snapshot for a quiz.
func (c *Client) Participants(ctx context.Context, quizID int64) ([]domain.Participation, error) {
	var participants []domain.Participation
	err := c.getJSON(ctx, fmt.Sprintf("/participations/quiz/%d", quizID), &participants, domain.ErrQuizNotFound)
	return participants, err
}

// SubmitAnswers sends the whole batch in one request and returns the
// resulting participation, which carries the score.
func (c *Client) SubmitAnswers(ctx context.Context, batch domain.SubmissionBatch) (domain.Participation, error) {
	var result domain.Participation
	body, err := json.Marshal(batch)
	if err != nil {
		return result, fmt.Errorf("marshal submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return result, &domain.NetworkError{Op: "submit answers", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return result, &domain.NetworkError{Op: "decode submission result", Err: err}
		}
		return result, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return result, &domain.ValidationError{Op: "submit answers", Detail: readDetail(resp.Body)}
	default:
		return result, &domain.NetworkError{Op: "submit answers", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

// MySubmissions fetches the caller's own submissions for a finished quiz.
func (c *Client) MySubmissions(ctx context.Context, quizID int64) ([]domain.AnswerSubmission, error) {
	var submissions []domain.AnswerSubmission
	err := c.getJSON(ctx, fmt.Sprintf("/submissions/quiz/%d", quizID), &submissions, domain.ErrQuizNotFound)
	return submissions, err
}

func (c *Client) getJSON(ctx context.Context, path string, out any, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.NetworkError{Op: "decode " + path, Err: err}
		}
		return nil
	case resp.StatusCode == http.StatusNotFound && notFound != nil:
		return notFound
	default:
		return &domain.NetworkError{Op: "GET " + path, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil || len(data) == 0 {
		return "request rejected"
	}
	return string(data)
}
