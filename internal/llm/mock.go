package llm

import (
	"context"
	"sync"

	"github.com/agentdevsl/taskdraft/internal/apperr"
)

// ScriptedHandle is a test double that plays back pre-scripted turns. Each call
// to Send consumes the next turn's events and records the outbound message.
type ScriptedHandle struct {
	mu      sync.Mutex
	turns   [][]StreamEvent
	sent    []Outbound
	sendErr error
	closed  bool
}

// NewScriptedHandle creates a handle that answers successive Sends with the
// given event sequences.
func NewScriptedHandle(turns ...[]StreamEvent) *ScriptedHandle {
	return &ScriptedHandle{turns: turns}
}

// FailNextSend makes the next Send return err instead of streaming.
func (m *ScriptedHandle) FailNextSend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Sent returns a copy of every outbound message the handle has received.
func (m *ScriptedHandle) Sent() []Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outbound, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close has been called.
func (m *ScriptedHandle) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ScriptedHandle) Send(_ context.Context, msg Outbound) (<-chan StreamEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, apperr.ErrClosed
	}
	if m.sendErr != nil {
		err := m.sendErr
		m.sendErr = nil
		return nil, err
	}
	m.sent = append(m.sent, msg)

	var turn []StreamEvent
	if len(m.turns) > 0 {
		turn = m.turns[0]
		m.turns = m.turns[1:]
	}

	out := make(chan StreamEvent, len(turn)+1)
	for _, ev := range turn {
		out <- ev
	}
	close(out)
	return out, nil
}

func (m *ScriptedHandle) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ScriptedDialer hands out pre-built handles in order. Dial fails with
// DialErr when set.
type ScriptedDialer struct {
	mu      sync.Mutex
	handles []Handle
	DialErr error
}

// NewScriptedDialer creates a dialer returning the given handles in order.
func NewScriptedDialer(handles ...Handle) *ScriptedDialer {
	return &ScriptedDialer{handles: handles}
}

func (d *ScriptedDialer) Dial(context.Context, string, []ToolSchema) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	if len(d.handles) == 0 {
		return NewScriptedHandle(), nil
	}
	h := d.handles[0]
	d.handles = d.handles[1:]
	return h, nil
}

// TextTurn builds a plain-text turn: deltas for each fragment, then turn end.
func TextTurn(fragments ...string) []StreamEvent {
	evs := make([]StreamEvent, 0, len(fragments)+1)
	for _, f := range fragments {
		evs = append(evs, StreamEvent{Type: EventTextDelta, Text: f})
	}
	evs = append(evs, StreamEvent{Type: EventTurnEnd, StopReason: StopReasonEndTurn})
	return evs
}

// ToolTurn builds a turn that invokes a tool with the given JSON input split
// across input deltas.
func ToolTurn(toolID, toolName string, inputChunks ...string) []StreamEvent {
	evs := []StreamEvent{{Type: EventToolUseStart, ToolID: toolID, ToolName: toolName}}
	for _, c := range inputChunks {
		evs = append(evs, StreamEvent{Type: EventToolInputDelta, ToolID: toolID, PartialJSON: c})
	}
	evs = append(evs,
		StreamEvent{Type: EventToolUseStop, ToolID: toolID, ToolName: toolName},
		StreamEvent{Type: EventTurnEnd, StopReason: StopReasonToolUse},
	)
	return evs
}
