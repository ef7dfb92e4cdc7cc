package requestid

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEnsure_GeneratesWhenEmpty(t *testing.T) {
	ctx, id := Ensure(context.Background(), "")
	assert.NotEmpty(t, id)
	assert.Equal(t, id, From(ctx))
}

func TestEnsure_AdoptsClientID(t *testing.T) {
	ctx, id := Ensure(context.Background(), "client-abc")
	assert.Equal(t, "client-abc", id)
	assert.Equal(t, "client-abc", From(ctx))
}

func TestFrom_Missing(t *testing.T) {
	assert.Empty(t, From(context.Background()))
}

func TestLogger_StampsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := With(context.Background(), "req-42")
	logger := Logger(ctx, base)
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}

func TestLogger_NoIDReturnsBase(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := Logger(context.Background(), base)
	logger.Info().Msg("hello")

	assert.NotContains(t, buf.String(), "request_id")
}
