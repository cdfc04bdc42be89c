package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug", Env: "prod"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestCorrelationIDField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	ctx := WithCorrelationID(context.Background(), "corr-1")
	Info(ctx, l, "hello", zap.String("k", "v"))
	Debug(ctx, l, "dropped")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.Equal(t, "v", fields["k"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithCorrelationIDEmpty(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "")
	assert.Equal(t, "", CorrelationID(ctx))
}
