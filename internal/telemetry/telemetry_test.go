package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabled(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.False(t, tel.Degraded())

	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
}

func TestNewEnabledWithoutEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true})
	assert.Error(t, err)
}

func TestNewEnabled(t *testing.T) {
	// OTLP exporters construct lazily, so creation succeeds without a
	// collector listening.
	tel, err := New(context.Background(), Config{
		Enabled:     true,
		ServiceName: "shiftd-test",
		Endpoint:    "localhost:4317",
		Protocol:    "grpc",
		Insecure:    true,
		SampleRate:  0.5,
	})
	require.NoError(t, err)
	assert.False(t, tel.Degraded())

	// Shutdown flushes; with no collector this may error but must not
	// hang or panic.
	_ = tel.Shutdown(context.Background())
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.False(t, tel.Degraded())
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("http://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("otel:4318"))
}
