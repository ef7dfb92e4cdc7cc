// Package llm defines the conversation handle contract and the provider-level
// streaming event types. Providers are interchangeable behind the Handle and
// Dialer interfaces.
package llm

import (
	"context"
	"encoding/json"
)

// Role constants for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StopReason describes why the model stopped generating.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonToolUse   = "tool_use"
	StopReasonMaxTokens = "max_tokens"
)

// ToolUse represents a tool call requested by the model.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the result returned to the model after a tool call, addressed
// to the tool use that requested it.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Message is a single turn in the handle's cumulative history.
type Message struct {
	Role       string      `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolUses   []ToolUse   `json:"tool_uses,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ToolSchema describes a tool's interface for the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"` // JSON Schema object
}

// Outbound is one user turn: either free text or a tool-result continuation.
type Outbound struct {
	Text       string
	ToolResult *ToolResult
}

// StreamEventType tags a provider-level streaming event.
type StreamEventType string

const (
	EventTextDelta      StreamEventType = "text_delta"
	EventToolUseStart   StreamEventType = "tool_use_start"
	EventToolInputDelta StreamEventType = "tool_input_delta"
	EventToolUseStop    StreamEventType = "tool_use_stop"
	EventTurnEnd        StreamEventType = "turn_end"
	EventError          StreamEventType = "error"
)

// StreamEvent is a single provider event within one model turn.
type StreamEvent struct {
	Type StreamEventType

	// EventTextDelta
	Text string

	// EventToolUseStart / EventToolUseStop
	ToolID   string
	ToolName string

	// EventToolInputDelta
	PartialJSON string

	// EventTurnEnd
	StopReason   string
	InputTokens  int
	OutputTokens int

	// EventError
	Err error
}

// Handle is the conversation handle: one live model conversation owned by one
// session for its whole lifetime. Send transmits a user turn and returns the
// turn's event sequence; the channel is single-consumer and closes when the
// turn completes. Close is idempotent and ends any in-flight turn.
type Handle interface {
	Send(ctx context.Context, msg Outbound) (<-chan StreamEvent, error)
	Close() error
}

// Dialer creates handles. One Dial per session.
type Dialer interface {
	Dial(ctx context.Context, systemPrompt string, tools []ToolSchema) (Handle, error)
}
