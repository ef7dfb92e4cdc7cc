// Package requestid correlates one API request across the response header,
// the request context, and every log line written for it. Inbound ids are
// honored so a client driving a conversation can trace its calls end to end.
package requestid

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Header is the HTTP header carrying the request ID.
const Header = "X-Request-ID"

type ctxKey struct{}

// With returns a context carrying the given request ID.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From extracts the request ID from the context, or "" when absent.
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure adopts the supplied id (typically a client-provided header value) or
// generates a fresh one, and returns the enriched context alongside the id.
func Ensure(ctx context.Context, id string) (context.Context, string) {
	if id == "" {
		id = uuid.New().String()
	}
	return With(ctx, id), id
}

// Logger returns a child of base stamped with the context's request ID, so
// every line logged for the request carries it. Without an id in the context
// it returns base unchanged.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if id := From(ctx); id != "" {
		return base.With().Str("request_id", id).Logger()
	}
	return base
}
