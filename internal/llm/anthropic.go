package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentdevsl/taskdraft/internal/apperr"
	"github.com/agentdevsl/taskdraft/internal/retry"
)

const (
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
	defaultMaxTokens    = 4096
	defaultModel        = "claude-sonnet-4-5"
)

// AnthropicDialer creates streaming conversation handles backed by the
// Anthropic Messages API.
type AnthropicDialer struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
	retryCfg  retry.Config
	logger    zerolog.Logger
}

// AnthropicOption configures the dialer.
type AnthropicOption func(*AnthropicDialer)

func WithModel(model string) AnthropicOption {
	return func(d *AnthropicDialer) { d.model = model }
}

func WithMaxTokens(n int) AnthropicOption {
	return func(d *AnthropicDialer) { d.maxTokens = n }
}

func WithHTTPClient(c *http.Client) AnthropicOption {
	return func(d *AnthropicDialer) { d.client = c }
}

func WithBaseURL(u string) AnthropicOption {
	return func(d *AnthropicDialer) { d.baseURL = u }
}

func WithRetry(cfg retry.Config) AnthropicOption {
	return func(d *AnthropicDialer) { d.retryCfg = cfg }
}

// NewAnthropicDialer constructs a new dialer.
func NewAnthropicDialer(apiKey string, logger zerolog.Logger, opts ...AnthropicOption) *AnthropicDialer {
	d := &AnthropicDialer{
		apiKey:    apiKey,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		baseURL:   anthropicAPIBase,
		client:    &http.Client{Timeout: 300 * time.Second},
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.With().Str("component", "llm").Logger(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dial opens a new conversation handle with the given system prompt and tools.
func (d *AnthropicDialer) Dial(_ context.Context, systemPrompt string, tools []ToolSchema) (Handle, error) {
	return &anthropicHandle{
		dialer: d,
		system: systemPrompt,
		tools:  tools,
		done:   make(chan struct{}),
	}, nil
}

// anthropicHandle holds one conversation's cumulative message history. The
// event sequence is single-consumer: at most one Send is in flight at a time.
type anthropicHandle struct {
	dialer *AnthropicDialer
	system string
	tools  []ToolSchema

	mu      sync.Mutex
	history []Message
	cancel  context.CancelFunc // current turn

	closeOnce sync.Once
	done      chan struct{}
}

// ---- Anthropic wire types ----

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []anthropicContentBlock
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Stream    bool               `json:"stream"`
}

// anthropicStreamEvent is the union of SSE payloads the stream can carry.
type anthropicStreamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Message *struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// buildMessages converts handle history to wire messages, expanding tool
// results and recorded tool uses into content blocks.
func buildMessages(msgs []Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.ToolResult != nil:
			out = append(out, anthropicMessage{
				Role: RoleUser,
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolResult.ToolUseID,
					Content:   m.ToolResult.Content,
					IsError:   m.ToolResult.IsError,
				}},
			})
		case len(m.ToolUses) > 0:
			blocks := make([]anthropicContentBlock, 0, len(m.ToolUses)+1)
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tu := range m.ToolUses {
				input := tu.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tu.ID,
					Name:  tu.Name,
					Input: input,
				})
			}
			out = append(out, anthropicMessage{Role: m.Role, Content: blocks})
		default:
			out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

func (h *anthropicHandle) buildRequest() anthropicRequest {
	ar := anthropicRequest{
		Model:     h.dialer.model,
		MaxTokens: h.dialer.maxTokens,
		System:    h.system,
		Messages:  buildMessages(h.history),
		Stream:    true,
	}
	for _, t := range h.tools {
		ar.Tools = append(ar.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return ar
}

func (h *anthropicHandle) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Send transmits one user turn and returns the turn's event sequence.
func (h *anthropicHandle) Send(ctx context.Context, msg Outbound) (<-chan StreamEvent, error) {
	if h.closed() {
		return nil, apperr.ErrClosed
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if msg.ToolResult != nil {
		h.history = append(h.history, Message{Role: RoleUser, ToolResult: msg.ToolResult})
	} else {
		h.history = append(h.history, Message{Role: RoleUser, Content: msg.Text})
	}

	body, err := json.Marshal(h.buildRequest())
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	turnCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	var resp *http.Response
	err = retry.Do(turnCtx, h.dialer.retryCfg, func(ctx context.Context) error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
			h.dialer.baseURL+"/messages", bytes.NewReader(body))
		if reqErr != nil {
			return fmt.Errorf("create request: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", h.dialer.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
		httpReq.Header.Set("Accept", "text/event-stream")

		r, doErr := h.dialer.client.Do(httpReq)
		if doErr != nil {
			return apperr.NewAPIError("anthropic", 0, doErr.Error())
		}
		if r.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			r.Body.Close()
			return apperr.NewAPIError("anthropic", r.StatusCode, strings.TrimSpace(string(raw)))
		}
		resp = r
		return nil
	})
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan StreamEvent, 16)
	go h.consumeTurn(turnCtx, resp, out)
	return out, nil
}

// consumeTurn parses the SSE body into StreamEvents and records the finished
// assistant message into the handle history.
func (h *anthropicHandle) consumeTurn(ctx context.Context, resp *http.Response, out chan<- StreamEvent) {
	defer resp.Body.Close()
	defer close(out)

	emit := func(ev StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		case <-h.done:
			return false
		}
	}

	var (
		text         strings.Builder
		toolUses     []ToolUse
		curTool      *ToolUse
		curToolInput strings.Builder
		stopReason   string
		inTokens     int
		outTokens    int
	)

	finish := func() {
		assistant := Message{Role: RoleAssistant, Content: text.String(), ToolUses: toolUses}
		h.mu.Lock()
		h.history = append(h.history, assistant)
		h.mu.Unlock()
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				inTokens = ev.Message.Usage.InputTokens
			}

		case "content_block_start":
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				curTool = &ToolUse{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}
				curToolInput.Reset()
				if !emit(StreamEvent{Type: EventToolUseStart, ToolID: curTool.ID, ToolName: curTool.Name}) {
					return
				}
			}

		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			switch ev.Delta.Type {
			case "text_delta":
				text.WriteString(ev.Delta.Text)
				if !emit(StreamEvent{Type: EventTextDelta, Text: ev.Delta.Text}) {
					return
				}
			case "input_json_delta":
				if curTool != nil {
					curToolInput.WriteString(ev.Delta.PartialJSON)
					if !emit(StreamEvent{Type: EventToolInputDelta, ToolID: curTool.ID, PartialJSON: ev.Delta.PartialJSON}) {
						return
					}
				}
			}

		case "content_block_stop":
			if curTool != nil {
				curTool.Input = json.RawMessage(curToolInput.String())
				toolUses = append(toolUses, *curTool)
				if !emit(StreamEvent{Type: EventToolUseStop, ToolID: curTool.ID, ToolName: curTool.Name}) {
					return
				}
				curTool = nil
			}

		case "message_delta":
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				stopReason = ev.Delta.StopReason
			}
			if ev.Usage != nil {
				outTokens = ev.Usage.OutputTokens
			}

		case "message_stop":
			finish()
			emit(StreamEvent{
				Type:         EventTurnEnd,
				StopReason:   stopReason,
				InputTokens:  inTokens,
				OutputTokens: outTokens,
			})
			h.dialer.logger.Debug().
				Str("stop_reason", stopReason).
				Int("in_tokens", inTokens).
				Int("out_tokens", outTokens).
				Msg("anthropic turn complete")
			return

		case "error":
			msg := "stream error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			emit(StreamEvent{Type: EventError, Err: apperr.NewAPIError("anthropic", 0, msg)})
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !h.closed() {
		emit(StreamEvent{Type: EventError, Err: fmt.Errorf("read stream: %w", err)})
	}
}

// Close releases the handle. Idempotent; terminates an in-flight turn.
func (h *anthropicHandle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		if h.cancel != nil {
			h.cancel()
		}
		h.mu.Unlock()
	})
	return nil
}
