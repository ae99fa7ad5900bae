package logger

import (
	"context"
	"testing"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsAccumulate(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := ctxzap.ToContext(context.Background(), zap.New(core))

	ctx = WithAction(WithSession(ctx, "s1"), "generate_proposal")
	ctxzap.Info(ctx, "done")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "s1", fields["session_id"])
	assert.Equal(t, "generate_proposal", fields["action"])
}

func TestDetachKeepsLoggerDropsDeadline(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	parent, cancel := context.WithTimeout(ctxzap.ToContext(context.Background(), zap.New(core)), time.Minute)
	parent = WithSession(parent, "s2")
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)

	ctxzap.Info(detached, "still logging")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "s2", logs.All()[0].ContextMap()["session_id"])
}
