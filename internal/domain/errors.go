package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound is returned for missing or soft-deleted quizzes.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when no attempt matches the (attempt, user) pair.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrUserNotFound is returned when a user record does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccessDenied covers private-quiz and ownership violations.
	ErrAccessDenied = errors.New("access denied")
	// ErrAlreadySubmitted is returned when a completed attempt is submitted again.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrInvalidInput covers malformed request payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports a malformed answer key at quiz creation or update.
// QuestionIndex is zero-based; the message uses the 1-based question number.
type ValidationError struct {
	QuestionIndex int
	Reason        string
}

func (e *ValidationError) Error() string {
	if e.QuestionIndex < 0 {
		return e.Reason
	}
	return fmt.Sprintf("question %d %s", e.QuestionIndex+1, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuizNotFound) || errors.Is(err, ErrAttemptNotFound) || errors.Is(err, ErrUserNotFound)
}
