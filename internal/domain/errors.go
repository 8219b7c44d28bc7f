package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz metadata could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID is unknown to the backend.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates an option ID is unknown for the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrQuizFinished is returned when trying to start a session on a quiz
	// that is no longer available for solving.
	ErrQuizFinished = errors.New("quiz already finished")
	// ErrNoQuestions indicates the backend returned a quiz without any
	// questions; such a quiz cannot be solved.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrQuizNotFinished guards review data: option validity is only served
	// once the quiz status is FINISHED.
	ErrQuizNotFinished = errors.New("quiz not finished yet")
)

// NetworkError wraps a transport-level failure. These are transient from the
// caller's perspective and safe to retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Op + ": " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError reports a payload the backend rejected as malformed.
type ValidationError struct {
	Op     string
	Detail string
}

func (e *ValidationError) Error() string { return "validation: " + e.Op + ": " + e.Detail }

// IsRetryable reports whether the caller may usefully try again. Network
// failures and rejected payloads both leave the user's answers intact, and a
// rejected batch can be corrected before resubmitting.
func IsRetryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var ve *ValidationError
	return errors.As(err, &ve)
}
