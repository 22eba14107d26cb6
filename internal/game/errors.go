package game

import (
	"errors"
	"fmt"

	"trivia-service/internal/models"
)

var (
	// ErrSupply wraps a failure to obtain questions. Recoverable: the
	// session stays in its loading state and the caller may retry.
	ErrSupply = errors.New("question supply failed")

	// ErrSubmission wraps a failed answer write. The session does not
	// advance; the same question may be resubmitted.
	ErrSubmission = errors.New("answer submission failed")

	// ErrUnauthenticated is fatal to the session flow and must trigger
	// re-authentication, never an automatic retry.
	ErrUnauthenticated = errors.New("authentication required")

	ErrSessionFinished = errors.New("session is no longer in progress")
	ErrNotOwner        = errors.New("session belongs to another user")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrNotAwaiting     = errors.New("no question awaiting an answer")
	ErrNoResultToAck   = errors.New("no result to acknowledge")
	ErrUnknownMode     = errors.New("unknown game mode")
	ErrEngineClosed    = errors.New("session engine closed")
	ErrWrongQuestion   = errors.New("answer does not match the current question")
)

// ActiveSessionError reports that the learner already has a running session.
// It carries that session so the caller can offer the resume-or-abandon
// choice instead of failing.
type ActiveSessionError struct {
	Session *models.GameSession
}

func (e *ActiveSessionError) Error() string {
	return fmt.Sprintf("an active session already exists: %s", e.Session.ID)
}
