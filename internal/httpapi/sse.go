package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/agentdevsl/taskdraft/internal/authoring"
)

// StreamEvents handles GET /api/v1/conversations/:id/events. It serves the
// conversation's event stream over SSE: full replay from the requested offset,
// then live events until the stream is deleted or the client disconnects.
// Comment keepalives are emitted while the conversation is idle.
func (h *Handlers) StreamEvents(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := h.controller.GetSession(id); !ok {
		return problemResponse(c, fiber.StatusNotFound,
			string(authoring.CodeSessionNotFound), "Not Found",
			"Conversation not found: "+id)
	}
	if !h.controller.Log().StreamExists(id) {
		return problemResponse(c, fiber.StatusGone,
			"stream_closed", "Gone",
			"Conversation stream has closed: "+id)
	}

	// Resume point: explicit query param wins, else the standard SSE
	// reconnect header.
	from := int64(c.QueryInt("from", 0))
	if from == 0 {
		if lastID := c.Get("Last-Event-ID"); lastID != "" {
			var last int64
			if _, err := fmt.Sscanf(lastID, "%d", &last); err == nil {
				from = last + 1
			}
		}
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.controller.Log()
	keepAlive := h.sseKeepAlive
	logger := h.logger
	metrics := h.metrics

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The subscription outlives the handler; it ends when the stream is
		// deleted or a write to the client fails.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := log.Subscribe(ctx, id)
		if metrics != nil {
			metrics.SSESubscribers.Inc()
			defer metrics.SSESubscribers.Dec()
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					// Stream deleted: the terminal event has already been
					// delivered, close the SSE connection.
					return
				}
				if ev.Offset < from {
					continue
				}
				if err := writeSSE(w, ev.Offset, ev.Type, ev); err != nil {
					logger.Debug().Err(err).Str("session_id", id).Msg("sse client gone")
					return
				}

			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

// writeSSE writes one event in wire format and flushes it to the client.
func writeSSE(w *bufio.Writer, offset int64, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", offset, eventType, payload); err != nil {
		return err
	}
	return w.Flush()
}
