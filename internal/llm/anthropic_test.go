package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdevsl/taskdraft/internal/apperr"
	"github.com/agentdevsl/taskdraft/internal/retry"
)

// sseServer replays canned SSE lines and captures request bodies.
type sseServer struct {
	mu     sync.Mutex
	bodies []anthropicRequest
	lines  [][]string // one slice of lines per request
}

func (s *sseServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		s.mu.Lock()
		s.bodies = append(s.bodies, req)
		var lines []string
		if len(s.lines) > 0 {
			lines = s.lines[0]
			s.lines = s.lines[1:]
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			fmt.Fprintf(w, "data: %s\n\n", l)
		}
	}
}

func textTurnLines(fragments ...string) []string {
	lines := []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":12}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
	}
	for _, f := range fragments {
		b, _ := json.Marshal(f)
		lines = append(lines, fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%s}}`, b))
	}
	lines = append(lines,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":7}}`,
		`{"type":"message_stop"}`,
	)
	return lines
}

func newTestDialer(t *testing.T, srv *sseServer) (*AnthropicDialer, *httptest.Server) {
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)
	d := NewAnthropicDialer("test-key", zerolog.Nop(),
		WithBaseURL(ts.URL),
		WithModel("test-model"),
		WithRetry(retry.Config{MaxAttempts: 1}))
	return d, ts
}

func TestAnthropicHandle_TextTurn(t *testing.T) {
	srv := &sseServer{lines: [][]string{textTurnLines("Hel", "lo")}}
	d, _ := newTestDialer(t, srv)

	h, err := d.Dial(context.Background(), "sys", nil)
	require.NoError(t, err)
	defer h.Close()

	ch, err := h.Send(context.Background(), Outbound{Text: "hi"})
	require.NoError(t, err)

	var evs []StreamEvent
	for ev := range ch {
		evs = append(evs, ev)
	}

	require.Len(t, evs, 3)
	assert.Equal(t, EventTextDelta, evs[0].Type)
	assert.Equal(t, "Hel", evs[0].Text)
	assert.Equal(t, "lo", evs[1].Text)
	assert.Equal(t, EventTurnEnd, evs[2].Type)
	assert.Equal(t, StopReasonEndTurn, evs[2].StopReason)
	assert.Equal(t, 12, evs[2].InputTokens)
	assert.Equal(t, 7, evs[2].OutputTokens)
}

func TestAnthropicHandle_ToolUseTurn(t *testing.T) {
	lines := []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":5}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"tu_1","name":"ask_clarifying_questions"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"questions\":"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"[]}"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":3}}`,
		`{"type":"message_stop"}`,
	}
	srv := &sseServer{lines: [][]string{lines}}
	d, _ := newTestDialer(t, srv)

	h, err := d.Dial(context.Background(), "sys", nil)
	require.NoError(t, err)
	defer h.Close()

	ch, err := h.Send(context.Background(), Outbound{Text: "hi"})
	require.NoError(t, err)

	var types []StreamEventType
	var inputJSON string
	for ev := range ch {
		types = append(types, ev.Type)
		if ev.Type == EventToolInputDelta {
			inputJSON += ev.PartialJSON
		}
	}

	assert.Equal(t, []StreamEventType{
		EventToolUseStart, EventToolInputDelta, EventToolInputDelta, EventToolUseStop, EventTurnEnd,
	}, types)
	assert.JSONEq(t, `{"questions":[]}`, inputJSON)

	// Tool use is recorded into history for the continuation turn.
	ah := h.(*anthropicHandle)
	ah.mu.Lock()
	defer ah.mu.Unlock()
	require.Len(t, ah.history, 2)
	require.Len(t, ah.history[1].ToolUses, 1)
	assert.Equal(t, "tu_1", ah.history[1].ToolUses[0].ID)
}

func TestAnthropicHandle_HistoryAccumulatesAcrossTurns(t *testing.T) {
	srv := &sseServer{lines: [][]string{
		textTurnLines("first"),
		textTurnLines("second"),
	}}
	d, _ := newTestDialer(t, srv)

	h, err := d.Dial(context.Background(), "you are a planner", nil)
	require.NoError(t, err)
	defer h.Close()

	ch, err := h.Send(context.Background(), Outbound{Text: "one"})
	require.NoError(t, err)
	for range ch {
	}

	ch, err = h.Send(context.Background(), Outbound{Text: "two"})
	require.NoError(t, err)
	for range ch {
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.bodies, 2)
	assert.Len(t, srv.bodies[0].Messages, 1)
	// Second request carries user, assistant, user.
	require.Len(t, srv.bodies[1].Messages, 3)
	assert.Equal(t, "assistant", srv.bodies[1].Messages[1].Role)
	assert.Equal(t, "you are a planner", srv.bodies[1].System)
}

func TestAnthropicHandle_ToolResultContinuation(t *testing.T) {
	srv := &sseServer{lines: [][]string{textTurnLines("ok")}}
	d, _ := newTestDialer(t, srv)

	h, err := d.Dial(context.Background(), "sys", nil)
	require.NoError(t, err)
	defer h.Close()

	ch, err := h.Send(context.Background(), Outbound{ToolResult: &ToolResult{ToolUseID: "tu_9", Content: "answers"}})
	require.NoError(t, err)
	for range ch {
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.bodies, 1)
	blocks, ok := srv.bodies[0].Messages[0].Content.([]interface{})
	require.True(t, ok)
	block := blocks[0].(map[string]interface{})
	assert.Equal(t, "tool_result", block["type"])
	assert.Equal(t, "tu_9", block["tool_use_id"])
}

func TestAnthropicHandle_HTTPErrorSurfacesAsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"invalid_request_error"}}`, http.StatusBadRequest)
	}))
	t.Cleanup(ts.Close)

	d := NewAnthropicDialer("test-key", zerolog.Nop(),
		WithBaseURL(ts.URL),
		WithRetry(retry.Config{MaxAttempts: 1}))
	h, err := d.Dial(context.Background(), "sys", nil)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Send(context.Background(), Outbound{Text: "hi"})
	require.Error(t, err)
	var apiErr *apperr.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestAnthropicHandle_SendAfterCloseFails(t *testing.T) {
	srv := &sseServer{}
	d, _ := newTestDialer(t, srv)

	h, err := d.Dial(context.Background(), "sys", nil)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close()) // idempotent

	_, err = h.Send(context.Background(), Outbound{Text: "hi"})
	assert.ErrorIs(t, err, apperr.ErrClosed)
}
