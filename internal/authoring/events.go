package authoring

// Event types published to the session's log stream.
const (
	EventStarted    = "started"
	EventMessage    = "message"
	EventToken      = "token"
	EventTool       = "tool"
	EventQuestions  = "questions"
	EventSuggestion = "suggestion"
	EventCompleted  = "completed"
	EventCancelled  = "cancelled"
	EventError      = "error"
)

// StartedPayload is the payload of a "started" event.
type StartedPayload struct {
	SessionID string `json:"sessionId"`
	ProjectID string `json:"projectId"`
}

// MessagePayload is the payload of a "message" event.
type MessagePayload struct {
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// TokenPayload is the payload of a "token" event.
type TokenPayload struct {
	Delta       string `json:"delta"`
	Accumulated string `json:"accumulated"`
}

// ToolPayload is the payload of a "tool" observability event.
type ToolPayload struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Phase      string `json:"phase"` // "start" or "stop"
}

// QuestionsPayload is the payload of a "questions" event.
type QuestionsPayload struct {
	Questions PendingQuestions `json:"questions"`
}

// SuggestionPayload is the payload of a "suggestion" event.
type SuggestionPayload struct {
	Suggestion TaskSuggestion `json:"suggestion"`
}

// CompletedPayload is the payload of a "completed" event.
type CompletedPayload struct {
	TaskID string `json:"taskId"`
}

// CancelledPayload is the payload of a "cancelled" event.
type CancelledPayload struct {
	SessionID string `json:"sessionId"`
}

// ErrorPayload is the payload of an "error" event.
type ErrorPayload struct {
	Error string `json:"error"`
}
