package domain

import "time"

// QuizStatus is the lifecycle phase assigned by the spaceforces backend.
// The client never mutates it locally; it is advisory metadata.
type QuizStatus string

const (
	StatusCreated  QuizStatus = "CREATED"
	StatusLive     QuizStatus = "LIVE"
	StatusFinished QuizStatus = "FINISHED"
)

// Quiz is the contest metadata, immutable for the lifetime of a session.
// StartDateTime plus Duration define the authoritative time window.
type Quiz struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Difficulty    string     `json:"difficulty,omitempty"`
	Topic         string     `json:"topic,omitempty"`
	Duration      int        `json:"duration"` // minutes
	StartDateTime time.Time  `json:"startDateTime"`
	Status        QuizStatus `json:"status"`
	Mode          string     `json:"mode,omitempty"`
}

// EndDateTime is the absolute instant the quiz closes.
func (q Quiz) EndDateTime() time.Time {
	return q.StartDateTime.Add(time.Duration(q.Duration) * time.Minute)
}

// Question is a single quiz question. Fetch order defines navigation order
// and must stay stable for the duration of a session.
type Question struct {
	ID       int64  `json:"id"`
	Text     string `json:"questionText"`
	Points   int    `json:"points"`
	Tags     string `json:"tags,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Option is an answer choice as seen while solving. It deliberately carries
// no validity flag: correctness must not be observable before the quiz is
// finished, so the play-path type cannot represent it.
type Option struct {
	ID   int64  `json:"id"`
	Text string `json:"optionText"`
}

// ReviewOption includes the validity flag and is only served for quizzes in
// FINISHED status, when reviewing results.
type ReviewOption struct {
	Option
	Valid bool `json:"valid"`
}

// User is the subset of account data attached to a participation.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Points   int    `json:"points,omitempty"`
	Rank     string `json:"rank,omitempty"`
}

// Participation is a read-only standing snapshot from the participants endpoint.
type Participation struct {
	ID             int64     `json:"id"`
	User           User      `json:"user"`
	QuizID         int64     `json:"quizId"`
	Score          int       `json:"score"`
	CompletionTime time.Time `json:"completionTime"`
}

// QuizContent is the full working set of one quiz as stored by self-hosted
// content sources. Options keep their validity flags at rest; sources strip
// them with SanitizeOptions before serving the play path.
type QuizContent struct {
	Quiz      Quiz                     `json:"quiz"`
	Questions []Question               `json:"questions"`
	Options   map[int64][]ReviewOption `json:"options"`
}

// SanitizeOptions strips validity flags for the play path.
func SanitizeOptions(review []ReviewOption) []Option {
	options := make([]Option, 0, len(review))
	for _, r := range review {
		options = append(options, r.Option)
	}
	return options
}

// AnswerSubmission is one answered question inside a submission batch.
type AnswerSubmission struct {
	QuestionID int64 `json:"questionId"`
	OptionID   int64 `json:"optionId"`
}

// SubmissionBatch carries every answered question of a session in a single
// request. It is built once, at submit time, and never mutated afterwards.
type SubmissionBatch struct {
	Submissions []AnswerSubmission `json:"submissions"`
}
