// Package authoring implements the conversational task-authoring engine: the
// session state machine, the clarifying-question interceptor with its budget,
// and the suggestion extractor.
package authoring

import (
	"time"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive      Status = "active"
	StatusWaitingUser Status = "waiting_user"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Priority of a task suggestion.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Message is one conversation turn. Immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// QuestionOption is one selectable answer for a clarifying question.
type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Question is a single clarifying question posed by the assistant.
type Question struct {
	Header      string           `json:"header,omitempty"`
	Question    string           `json:"question"`
	Options     []QuestionOption `json:"options,omitempty"`
	MultiSelect bool             `json:"multiSelect,omitempty"`
}

// PendingQuestions is one outstanding clarifying-question round. It exists
// only between the assistant asking and the operator answering or skipping.
type PendingQuestions struct {
	ID           string     `json:"id"`
	Questions    []Question `json:"questions"`
	Round        int        `json:"round"`
	TotalAsked   int        `json:"totalAsked"` // cumulative after this round
	MaxQuestions int        `json:"maxQuestions"`
}

// Answer is the operator's response to one clarifying question.
type Answer struct {
	Question string   `json:"question"`
	Selected []string `json:"selected,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// TaskSuggestion is the validated structured artifact the conversation exists
// to produce.
type TaskSuggestion struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	Priority    Priority `json:"priority"`
}

// SuggestionOverride carries accept-time field overrides. Empty fields keep
// the extracted value; a non-nil Labels slice replaces the extracted labels.
type SuggestionOverride struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}

// Session is one end-to-end conversation working toward a single task
// suggestion. Values handed to callers are snapshots.
type Session struct {
	ID                  string            `json:"id"`
	ProjectID           string            `json:"projectId"`
	Status              Status            `json:"status"`
	Messages            []Message         `json:"messages"`
	PendingQuestions    *PendingQuestions `json:"pendingQuestions,omitempty"`
	QuestionRound       int               `json:"questionRound"`
	TotalQuestionsAsked int               `json:"totalQuestionsAsked"`
	MaxQuestions        int               `json:"maxQuestions"`
	Suggestion          *TaskSuggestion   `json:"suggestion,omitempty"`
	CreatedTaskID       string            `json:"createdTaskId,omitempty"`
	PendingToolCallID   string            `json:"pendingToolCallId,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
}

// snapshot returns a deep copy safe to hand outside the controller.
func (s *Session) snapshot() *Session {
	cp := *s
	cp.Messages = make([]Message, len(s.Messages))
	copy(cp.Messages, s.Messages)
	if s.PendingQuestions != nil {
		pq := *s.PendingQuestions
		pq.Questions = make([]Question, len(s.PendingQuestions.Questions))
		copy(pq.Questions, s.PendingQuestions.Questions)
		cp.PendingQuestions = &pq
	}
	if s.Suggestion != nil {
		sug := *s.Suggestion
		sug.Labels = append([]string(nil), s.Suggestion.Labels...)
		cp.Suggestion = &sug
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
