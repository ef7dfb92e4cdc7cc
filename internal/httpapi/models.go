package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentdevsl/taskdraft/internal/authoring"
)

// StartConversationRequest is the request for POST /api/v1/conversations.
type StartConversationRequest struct {
	ProjectID string `json:"projectId"`
}

// SendMessageRequest is the request for POST /api/v1/conversations/:id/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// AnswerQuestionsRequest is the request for POST /api/v1/conversations/:id/answers.
type AnswerQuestionsRequest struct {
	QuestionsID string             `json:"questionsId"`
	Answers     []authoring.Answer `json:"answers"`
}

// AcceptSuggestionRequest is the request for POST /api/v1/conversations/:id/accept.
type AcceptSuggestionRequest struct {
	Overrides *authoring.SuggestionOverride `json:"overrides"`
}

// SessionResponse wraps a session snapshot.
type SessionResponse struct {
	Session *authoring.Session `json:"session"`
}

// AcceptResponse is the response for a successful accept.
type AcceptResponse struct {
	TaskID  string             `json:"taskId"`
	Session *authoring.Session `json:"session"`
}

// CreateProjectRequest is the request for POST /api/v1/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProblemDetail is an RFC 7807 Problem Detail error body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// engineError maps an engine error to its HTTP representation.
func engineError(c *fiber.Ctx, err *authoring.Error) error {
	status := fiber.StatusInternalServerError
	title := "Internal Server Error"
	switch err.Code {
	case authoring.CodeProjectNotFound, authoring.CodeSessionNotFound:
		status, title = fiber.StatusNotFound, "Not Found"
	case authoring.CodeInvalidQuestions, authoring.CodeSessionCompleted,
		authoring.CodeNotWaitingForUser, authoring.CodeWaitingForUser,
		authoring.CodeNoSuggestion:
		status, title = fiber.StatusConflict, "Conflict"
	case authoring.CodeAPIError:
		status, title = fiber.StatusBadGateway, "Bad Gateway"
	case authoring.CodeDatabaseError:
		status, title = fiber.StatusInternalServerError, "Internal Server Error"
	}
	return problemResponse(c, status, string(err.Code), title, err.Message)
}
