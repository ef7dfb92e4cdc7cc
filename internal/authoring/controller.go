package authoring

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentdevsl/taskdraft/internal/eventlog"
	"github.com/agentdevsl/taskdraft/internal/llm"
	"github.com/agentdevsl/taskdraft/internal/metrics"
	"github.com/agentdevsl/taskdraft/internal/prompts"
)

// Gateway is the persistence contract the controller consumes. History
// operations are best-effort: the in-memory event log stays authoritative for
// a live session, and history failures never abort a state transition.
type Gateway interface {
	ProjectExists(ctx context.Context, projectID string) (bool, error)
	CreateHistorySession(ctx context.Context, projectID, title string) (string, error)
	AppendHistory(ctx context.Context, historyID, eventType string, payload interface{}) error
	CloseHistorySession(ctx context.Context, historyID string) error
	CreateTaskRecord(ctx context.Context, projectID string, suggestion TaskSuggestion) (string, error)
}

// skipInstruction is the tool-result content delivered when the operator
// skips a clarifying-question round.
const skipInstruction = "The user chose to skip these questions. Proceed with your best judgment and do not ask further clarifying questions."

// OnToken is invoked for every streamed text delta of a turn.
type OnToken func(delta string)

// Controller owns sessions and drives authoring conversations: it forwards
// user turns to the conversation handle, consumes the model's event stream,
// republishes derived events to the log, and updates session state.
type Controller struct {
	sessions     *SessionStore
	log          *eventlog.Log
	gateway      Gateway
	dialer       llm.Dialer
	prompts      *prompts.Pack
	maxQuestions int
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewController wires the authoring engine together.
func NewController(
	log *eventlog.Log,
	gateway Gateway,
	dialer llm.Dialer,
	pack *prompts.Pack,
	m *metrics.Metrics,
	maxQuestions int,
	logger zerolog.Logger,
) *Controller {
	if maxQuestions <= 0 {
		maxQuestions = 10
	}
	return &Controller{
		sessions:     NewSessionStore(),
		log:          log,
		gateway:      gateway,
		dialer:       dialer,
		prompts:      pack,
		maxQuestions: maxQuestions,
		metrics:      m,
		logger:       logger.With().Str("component", "controller").Logger(),
	}
}

// Log exposes the event log backing session streams (for the live view).
func (c *Controller) Log() *eventlog.Log { return c.log }

// Start verifies the project, acquires a conversation handle, creates the
// session's event stream and optionally opens a durable history session.
func (c *Controller) Start(ctx context.Context, projectID string) (*Session, *Error) {
	exists, err := c.gateway.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, newError(CodeDatabaseError, "project lookup failed: %v", err)
	}
	if !exists {
		return nil, newError(CodeProjectNotFound, "project %s not found", projectID)
	}

	handle, err := c.dialer.Dial(ctx, c.prompts.SystemPrompt, []llm.ToolSchema{
		c.prompts.QuestionTool(QuestionToolName),
	})
	if err != nil {
		return nil, newError(CodeAPIError, "failed to open conversation: %v", err)
	}

	now := time.Now().UTC()
	session := &Session{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		Status:       StatusActive,
		Messages:     []Message{},
		MaxQuestions: c.maxQuestions,
		CreatedAt:    now,
	}

	c.log.CreateStream(session.ID)

	// Durable history is best-effort; the session runs without it.
	historyID, err := c.gateway.CreateHistorySession(ctx, projectID, "Task authoring "+now.Format("2006-01-02 15:04"))
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", session.ID).Msg("history session unavailable")
		historyID = ""
	}

	entry := c.sessions.Put(session, handle, historyID)
	c.publish(entry, EventStarted, StartedPayload{SessionID: session.ID, ProjectID: projectID})
	c.metrics.SessionsStarted.Inc()

	c.logger.Info().
		Str("session_id", session.ID).
		Str("project_id", projectID).
		Msg("session started")

	entry.dataMu.Lock()
	defer entry.dataMu.Unlock()
	return session.snapshot(), nil
}

// SendMessage appends a user turn, forwards it to the handle and consumes the
// model's response stream. onToken may be nil.
func (c *Controller) SendMessage(ctx context.Context, sessionID, text string, onToken OnToken) (*Session, *Error) {
	entry, cerr := c.liveEntry(sessionID)
	if cerr != nil {
		return nil, cerr
	}
	entry.opMu.Lock()
	defer entry.opMu.Unlock()

	var status Status
	entry.withData(func(s *Session) { status = s.Status })
	switch {
	case status.Terminal():
		return nil, newError(CodeSessionCompleted, "session %s is %s", sessionID, status)
	case status == StatusWaitingUser:
		return nil, newError(CodeWaitingForUser, "session %s has unanswered questions", sessionID)
	}
	if entry.handle == nil {
		return nil, newError(CodeAPIError, "session %s has no conversation handle", sessionID)
	}

	msg := Message{ID: uuid.New().String(), Role: llm.RoleUser, Content: text, Timestamp: time.Now().UTC()}
	entry.withData(func(s *Session) { s.Messages = append(s.Messages, msg) })
	c.publish(entry, EventMessage, MessagePayload{MessageID: msg.ID, Role: msg.Role, Content: msg.Content})
	c.metrics.MessagesTotal.WithLabelValues(llm.RoleUser).Inc()

	ch, err := entry.handle.Send(ctx, c.outboundFor(entry, text))
	if err != nil {
		c.publish(entry, EventError, ErrorPayload{Error: err.Error()})
		c.metrics.ModelTurns.WithLabelValues("error").Inc()
		return nil, newError(CodeAPIError, "model call failed: %v", err)
	}

	if cerr := c.consumeTurn(entry, ch, onToken); cerr != nil {
		return nil, cerr
	}
	return c.snapshotOf(entry), nil
}

// AnswerQuestions resolves the pending clarifying-question round and resumes
// the model with a tool-result continuation addressed to the stored tool call.
func (c *Controller) AnswerQuestions(ctx context.Context, sessionID, questionsID string, answers []Answer, onToken OnToken) (*Session, *Error) {
	content, err := json.Marshal(map[string]interface{}{"answers": answers})
	if err != nil {
		return nil, newError(CodeAPIError, "encode answers: %v", err)
	}
	return c.resume(ctx, sessionID, questionsID, string(content), true, onToken)
}

// SkipQuestions resolves the pending round with an instruction to proceed
// without further clarification.
func (c *Controller) SkipQuestions(ctx context.Context, sessionID string, onToken OnToken) (*Session, *Error) {
	return c.resume(ctx, sessionID, "", skipInstruction, false, onToken)
}

func (c *Controller) resume(ctx context.Context, sessionID, questionsID, content string, matchID bool, onToken OnToken) (*Session, *Error) {
	entry, cerr := c.liveEntry(sessionID)
	if cerr != nil {
		return nil, cerr
	}
	entry.opMu.Lock()
	defer entry.opMu.Unlock()

	var (
		status     Status
		pending    *PendingQuestions
		toolCallID string
	)
	entry.withData(func(s *Session) {
		status = s.Status
		pending = s.PendingQuestions
		toolCallID = s.PendingToolCallID
	})

	if status.Terminal() {
		return nil, newError(CodeSessionCompleted, "session %s is %s", sessionID, status)
	}
	if status != StatusWaitingUser || pending == nil {
		return nil, newError(CodeNotWaitingForUser, "session %s is not waiting for answers", sessionID)
	}
	if matchID && pending.ID != questionsID {
		return nil, newError(CodeInvalidQuestions, "questions id %s does not match pending round", questionsID)
	}
	if entry.handle == nil {
		return nil, newError(CodeAPIError, "session %s has no conversation handle", sessionID)
	}

	entry.withData(func(s *Session) {
		s.PendingQuestions = nil
		s.PendingToolCallID = ""
		s.Status = StatusActive
	})

	ch, err := entry.handle.Send(ctx, llm.Outbound{
		ToolResult: &llm.ToolResult{ToolUseID: toolCallID, Content: content},
	})
	if err != nil {
		// Restore the pending round so the operator can retry.
		entry.withData(func(s *Session) {
			s.PendingQuestions = pending
			s.PendingToolCallID = toolCallID
			s.Status = StatusWaitingUser
		})
		c.publish(entry, EventError, ErrorPayload{Error: err.Error()})
		c.metrics.ModelTurns.WithLabelValues("error").Inc()
		return nil, newError(CodeAPIError, "model call failed: %v", err)
	}

	if cerr := c.consumeTurn(entry, ch, onToken); cerr != nil {
		return nil, cerr
	}
	return c.snapshotOf(entry), nil
}

// AcceptSuggestion merges overrides onto the extracted suggestion, creates the
// task record, releases the handle and completes the session.
func (c *Controller) AcceptSuggestion(ctx context.Context, sessionID string, overrides *SuggestionOverride) (string, *Error) {
	entry, cerr := c.liveEntry(sessionID)
	if cerr != nil {
		return "", cerr
	}
	entry.opMu.Lock()
	defer entry.opMu.Unlock()

	var (
		status    Status
		current   *TaskSuggestion
		projectID string
	)
	entry.withData(func(s *Session) {
		status = s.Status
		current = s.Suggestion
		projectID = s.ProjectID
	})
	if status.Terminal() {
		return "", newError(CodeSessionCompleted, "session %s is %s", sessionID, status)
	}

	merged := mergeSuggestion(current, overrides)
	if merged == nil {
		return "", newError(CodeNoSuggestion, "no suggestion to accept; provide title and description overrides")
	}

	taskID, err := c.gateway.CreateTaskRecord(ctx, projectID, *merged)
	if err != nil {
		return "", newError(CodeDatabaseError, "create task record: %v", err)
	}
	c.metrics.TasksCreated.Inc()

	now := time.Now().UTC()
	entry.withData(func(s *Session) {
		s.Suggestion = merged
		s.CreatedTaskID = taskID
		s.Status = StatusCompleted
		s.CompletedAt = &now
	})

	c.publish(entry, EventCompleted, CompletedPayload{TaskID: taskID})
	c.metrics.SessionsFinished.WithLabelValues("completed").Inc()
	c.finish(entry)

	c.logger.Info().
		Str("session_id", sessionID).
		Str("task_id", taskID).
		Msg("suggestion accepted")
	return taskID, nil
}

// Cancel terminates the session and releases its resources.
func (c *Controller) Cancel(_ context.Context, sessionID string) (*Session, *Error) {
	entry, cerr := c.liveEntry(sessionID)
	if cerr != nil {
		return nil, cerr
	}
	entry.opMu.Lock()
	defer entry.opMu.Unlock()

	var status Status
	entry.withData(func(s *Session) { status = s.Status })
	if status.Terminal() {
		return nil, newError(CodeSessionCompleted, "session %s is %s", sessionID, status)
	}

	now := time.Now().UTC()
	entry.withData(func(s *Session) {
		s.Status = StatusCancelled
		s.PendingQuestions = nil
		s.PendingToolCallID = ""
		s.CompletedAt = &now
	})

	c.publish(entry, EventCancelled, CancelledPayload{SessionID: sessionID})
	c.metrics.SessionsFinished.WithLabelValues("cancelled").Inc()
	snapshot := c.snapshotOf(entry)
	c.finish(entry)

	c.logger.Info().Str("session_id", sessionID).Msg("session cancelled")
	return snapshot, nil
}

// GetSession returns a point-in-time snapshot, live or recently finished.
// The second return is false when the session is unknown.
func (c *Controller) GetSession(sessionID string) (*Session, bool) {
	return c.sessions.Snapshot(sessionID)
}

// ---- internals ----

// liveEntry resolves a session id to its live entry, mapping recently
// finished sessions to SESSION_COMPLETED and unknown ids to SESSION_NOT_FOUND.
func (c *Controller) liveEntry(sessionID string) (*sessionEntry, *Error) {
	if entry, ok := c.sessions.Get(sessionID); ok {
		return entry, nil
	}
	if s, ok := c.sessions.Snapshot(sessionID); ok && s.Status.Terminal() {
		return nil, newError(CodeSessionCompleted, "session %s is %s", sessionID, s.Status)
	}
	return nil, newError(CodeSessionNotFound, "session %s not found", sessionID)
}

// outboundFor wraps user text as a tool result when the previous turn's
// clarifying-question call was suppressed by an exhausted budget, keeping the
// provider-side conversation well-formed.
func (c *Controller) outboundFor(entry *sessionEntry, text string) llm.Outbound {
	if id := entry.suppressedToolCallID; id != "" {
		entry.suppressedToolCallID = ""
		return llm.Outbound{ToolResult: &llm.ToolResult{ToolUseID: id, Content: text}}
	}
	return llm.Outbound{Text: text}
}

// consumeTurn drains one model turn: it republishes token and tool events,
// pauses the session when a budgeted clarifying-question call arrives, and
// otherwise finalizes the assistant message and runs the extractor.
func (c *Controller) consumeTurn(entry *sessionEntry, ch <-chan llm.StreamEvent, onToken OnToken) *Error {
	interceptor := NewToolInterceptor(QuestionToolName)
	var text strings.Builder
	var turnErr error

	for ev := range ch {
		switch ev.Type {
		case llm.EventTextDelta:
			text.WriteString(ev.Text)
			c.publish(entry, EventToken, TokenPayload{Delta: ev.Text, Accumulated: text.String()})
			c.metrics.TokensStreamed.Inc()
			if onToken != nil {
				onToken(ev.Text)
			}

		case llm.EventToolUseStart:
			c.publish(entry, EventTool, ToolPayload{ToolCallID: ev.ToolID, ToolName: ev.ToolName, Phase: "start"})

		case llm.EventError:
			turnErr = ev.Err
		}

		res := interceptor.Observe(ev)
		if res == nil {
			continue
		}
		c.publish(entry, EventTool, ToolPayload{ToolCallID: res.ToolCallID, ToolName: res.ToolName, Phase: "stop"})
		if res.Kind != KindQuestions {
			continue
		}

		var allowed []Question
		entry.withData(func(s *Session) {
			allowed = ApplyBudget(res.Questions, s.TotalQuestionsAsked, s.MaxQuestions)
		})
		if len(allowed) == 0 {
			// Budget exhausted: the round is suppressed and the turn proceeds
			// as plain text. The next user message answers the dangling call.
			entry.suppressedToolCallID = res.ToolCallID
			continue
		}

		var pending PendingQuestions
		entry.withData(func(s *Session) {
			s.QuestionRound++
			s.TotalQuestionsAsked += len(allowed)
			s.PendingQuestions = &PendingQuestions{
				ID:           uuid.New().String(),
				Questions:    allowed,
				Round:        s.QuestionRound,
				TotalAsked:   s.TotalQuestionsAsked,
				MaxQuestions: s.MaxQuestions,
			}
			s.PendingToolCallID = res.ToolCallID
			s.Status = StatusWaitingUser
			pending = *s.PendingQuestions
		})

		c.publish(entry, EventQuestions, QuestionsPayload{Questions: pending})
		c.metrics.QuestionsAsked.Add(float64(len(allowed)))
		c.metrics.ModelTurns.WithLabelValues("questions").Inc()

		// Drain the turn tail before returning: the provider records the
		// assistant tool-call turn only once its stream ends, and the
		// tool-result continuation must not be sent before that. Only the
		// turn-end markers remain at this point, so the drain is bounded.
		for range ch {
		}
		return nil
	}

	if turnErr != nil {
		c.publish(entry, EventError, ErrorPayload{Error: turnErr.Error()})
		c.metrics.ModelTurns.WithLabelValues("error").Inc()
		return newError(CodeAPIError, "model turn failed: %v", turnErr)
	}

	if assistantText := text.String(); assistantText != "" {
		msg := Message{ID: uuid.New().String(), Role: llm.RoleAssistant, Content: assistantText, Timestamp: time.Now().UTC()}
		entry.withData(func(s *Session) { s.Messages = append(s.Messages, msg) })
		c.publish(entry, EventMessage, MessagePayload{MessageID: msg.ID, Role: msg.Role, Content: msg.Content})
		c.metrics.MessagesTotal.WithLabelValues(llm.RoleAssistant).Inc()

		if sug := ExtractSuggestion(assistantText); sug != nil {
			entry.withData(func(s *Session) { s.Suggestion = sug })
			c.publish(entry, EventSuggestion, SuggestionPayload{Suggestion: *sug})
			c.metrics.SuggestionsExtracted.Inc()
		}
	}
	c.metrics.ModelTurns.WithLabelValues("ok").Inc()
	return nil
}

// finish releases the handle and history session, retires the session to the
// finished set and disposes its event stream. Resource failures are logged,
// never surfaced.
func (c *Controller) finish(entry *sessionEntry) {
	sessionID := entry.session.ID

	if entry.handle != nil {
		if err := entry.handle.Close(); err != nil {
			c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("handle close failed")
		}
		entry.handle = nil
	}
	if entry.historyID != "" {
		if err := c.gateway.CloseHistorySession(context.Background(), entry.historyID); err != nil {
			c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("history close failed")
		}
	}

	entry.dataMu.Lock()
	final := entry.session.snapshot()
	entry.dataMu.Unlock()
	c.sessions.Finish(sessionID, final)
	c.log.DeleteStream(sessionID)
}

// publish mirrors an event to the log and, best-effort, to durable history.
func (c *Controller) publish(entry *sessionEntry, eventType string, payload interface{}) {
	c.log.Publish(entry.session.ID, eventType, payload)
	c.metrics.EventsPublished.WithLabelValues(eventType).Inc()

	if entry.historyID != "" {
		if err := c.gateway.AppendHistory(context.Background(), entry.historyID, eventType, payload); err != nil {
			c.logger.Warn().Err(err).
				Str("session_id", entry.session.ID).
				Str("event_type", eventType).
				Msg("history append failed")
		}
	}
}

func (c *Controller) snapshotOf(entry *sessionEntry) *Session {
	entry.dataMu.Lock()
	defer entry.dataMu.Unlock()
	return entry.session.snapshot()
}

// mergeSuggestion layers accept-time overrides onto the extracted suggestion.
// Returns nil when the result lacks a title or description.
func mergeSuggestion(current *TaskSuggestion, overrides *SuggestionOverride) *TaskSuggestion {
	merged := TaskSuggestion{Labels: []string{}, Priority: PriorityMedium}
	if current != nil {
		merged = *current
		merged.Labels = append([]string(nil), current.Labels...)
	}
	if overrides != nil {
		if overrides.Title != "" {
			merged.Title = overrides.Title
		}
		if overrides.Description != "" {
			merged.Description = overrides.Description
		}
		if overrides.Labels != nil {
			merged.Labels = append([]string(nil), overrides.Labels...)
		}
		if overrides.Priority != "" {
			merged.Priority = coercePriority(string(overrides.Priority))
		}
	}
	if strings.TrimSpace(merged.Title) == "" || strings.TrimSpace(merged.Description) == "" {
		return nil
	}
	if merged.Labels == nil {
		merged.Labels = []string{}
	}
	return &merged
}
