package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New("info", "json", true, nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.NoError(t, Sync(logger))
}

func TestNewConsoleFormat(t *testing.T) {
	logger, err := New("debug", "console", false, nil)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("loud", "json", false, nil)
	assert.Error(t, err)
}

func TestRedactingEncoderRedactsNameKeys(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc := NewRedactingEncoder(base, nameFields)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "assigned"}, []zapcore.Field{
		zap.String("name", "Aiko Tanaka"),
		zap.String("Staff_Name", "Ben Okafor"),
		zap.String("role", "kitchen"),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "Aiko Tanaka")
	assert.NotContains(t, out, "Ben Okafor")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "kitchen")
}

func TestRedactionAppliesThroughCore(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc := NewRedactingEncoder(base, nameFields)

	var buf bytes.Buffer
	logger := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel))

	logger.With(zap.String("employee", "Chen Wei")).Info("shift assigned",
		zap.String("name", "Aiko Tanaka"),
		zap.String("shift", "morning"))

	out := buf.String()
	assert.NotContains(t, out, "Chen Wei")
	assert.NotContains(t, out, "Aiko Tanaka")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "morning")
}

func TestRedactingEncoderCloneKeepsRules(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc := NewRedactingEncoder(base, []string{"name"})

	clone, ok := enc.Clone().(*RedactingEncoder)
	require.True(t, ok)
	assert.True(t, clone.shouldRedactKey("NAME"))
	assert.False(t, clone.shouldRedactKey("role"))
}

func TestRedactedString(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	logger.Info("login", RedactedString("token", "hunter2"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "[REDACTED:7]", entry.ContextMap()["token"])
}
