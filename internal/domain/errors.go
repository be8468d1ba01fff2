package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSessionNotFound is returned when an evaluation session does not exist.
	ErrSessionNotFound = errors.New("evaluation session not found")
	// ErrSessionClosed is returned for commands sent to a session that has ended.
	ErrSessionClosed = errors.New("evaluation session closed")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz marks a quiz definition that cannot drive a session.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrInvalidPhase is returned for a command the current phase does not accept.
	ErrInvalidPhase = errors.New("command not allowed in current phase")
	// ErrQuestionOutOfRange indicates a question index outside the quiz.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrOptionOutOfRange indicates an option index outside the question.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrConfirmationRequired is returned when a guarded action needs an explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrInvalidIdentity is matched by every ValidationError.
	ErrInvalidIdentity = errors.New("invalid respondent identity")
	// ErrResultQueued means the result store rejected a record and it was queued for reconciliation.
	ErrResultQueued = errors.New("result queued for reconciliation")
)

// ValidationError carries per-field messages for respondent identity fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "invalid respondent identity: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidIdentity
}

// ConfirmationError asks the respondent to confirm a submission with unanswered questions
// or the abandonment of a running attempt.
type ConfirmationError struct {
	Action     string
	Unanswered int
}

func (e *ConfirmationError) Error() string {
	if e.Unanswered > 0 {
		return fmt.Sprintf("%s: %d question(s) unanswered, confirmation required", e.Action, e.Unanswered)
	}
	return fmt.Sprintf("%s: confirmation required", e.Action)
}

func (e *ConfirmationError) Is(target error) bool {
	return target == ErrConfirmationRequired
}
