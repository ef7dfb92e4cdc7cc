package authoring

import (
	"encoding/json"
	"strings"

	"github.com/agentdevsl/taskdraft/internal/llm"
)

// QuestionToolName is the tool invocation that pauses the conversation for
// human clarification.
const QuestionToolName = "ask_clarifying_questions"

// InterceptKind tags the interceptor's per-tool-call result so the controller
// switches on a closed set of cases instead of comparing tool names.
type InterceptKind int

const (
	KindNone InterceptKind = iota
	KindQuestions
	KindOtherTool
)

// Intercept is the result of one completed tool invocation within a turn.
type Intercept struct {
	Kind       InterceptKind
	ToolCallID string
	ToolName   string
	Questions  []Question
}

// ToolInterceptor accumulates a tool invocation's structured input across
// provider delta events. Feed it every stream event; it yields a result when
// an invocation block closes. Malformed question payloads degrade to
// KindOtherTool rather than erroring.
type ToolInterceptor struct {
	target string

	active bool
	id     string
	name   string
	buf    strings.Builder
}

// NewToolInterceptor watches for the named tool (normally QuestionToolName).
func NewToolInterceptor(toolName string) *ToolInterceptor {
	return &ToolInterceptor{target: toolName}
}

// Observe consumes one provider event. It returns a non-nil Intercept exactly
// when a tool invocation block closes; every other event returns nil.
func (ti *ToolInterceptor) Observe(ev llm.StreamEvent) *Intercept {
	switch ev.Type {
	case llm.EventToolUseStart:
		ti.active = true
		ti.id = ev.ToolID
		ti.name = ev.ToolName
		ti.buf.Reset()

	case llm.EventToolInputDelta:
		if ti.active {
			ti.buf.WriteString(ev.PartialJSON)
		}

	case llm.EventToolUseStop:
		if !ti.active {
			return nil
		}
		ti.active = false
		res := &Intercept{Kind: KindOtherTool, ToolCallID: ti.id, ToolName: ti.name}
		if ti.name == ti.target {
			if qs, ok := parseQuestions(ti.buf.String()); ok {
				res.Kind = KindQuestions
				res.Questions = qs
			}
		}
		return res
	}
	return nil
}

// questionsPayload is the tool's wire input.
type questionsPayload struct {
	Questions []struct {
		Header      string `json:"header"`
		Question    string `json:"question"`
		Options     []struct {
			Label       string `json:"label"`
			Description string `json:"description"`
		} `json:"options"`
		MultiSelect bool `json:"multiSelect"`
	} `json:"questions"`
}

func parseQuestions(raw string) ([]Question, bool) {
	var payload questionsPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}
	if len(payload.Questions) == 0 {
		return nil, false
	}

	out := make([]Question, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		question := Question{
			Header:      q.Header,
			Question:    q.Question,
			MultiSelect: q.MultiSelect,
		}
		for _, o := range q.Options {
			question.Options = append(question.Options, QuestionOption{
				Label:       o.Label,
				Description: o.Description,
			})
		}
		out = append(out, question)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// ApplyBudget trims questions to the session's remaining budget, preserving
// order. An empty result means the round must be suppressed entirely.
func ApplyBudget(questions []Question, totalAsked, maxQuestions int) []Question {
	remaining := maxQuestions - totalAsked
	if remaining <= 0 {
		return nil
	}
	if len(questions) > remaining {
		return questions[:remaining]
	}
	return questions
}
