package authoring

import "fmt"

// Code classifies a caller-facing failure.
type Code string

const (
	CodeProjectNotFound   Code = "PROJECT_NOT_FOUND"
	CodeSessionNotFound   Code = "SESSION_NOT_FOUND"
	CodeInvalidQuestions  Code = "INVALID_QUESTIONS_ID"
	CodeSessionCompleted  Code = "SESSION_COMPLETED"
	CodeNotWaitingForUser Code = "NOT_WAITING_FOR_USER"
	CodeWaitingForUser    Code = "WAITING_FOR_USER"
	CodeNoSuggestion      Code = "NO_SUGGESTION"
	CodeAPIError          Code = "API_ERROR"
	CodeDatabaseError     Code = "DATABASE_ERROR"
)

// Error is the discriminated failure result returned by every controller
// operation. No operation raises past the controller boundary.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
