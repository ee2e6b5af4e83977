package debugger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDebugPrintEvent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	DebugPrintEvent(logger, "booking.cancelled", []byte(`{"seats":2}`))
	DebugPrintEvent(logger, "broken", []byte(`{not json`))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "Event", entries[0].Message)
	assert.Contains(t, entries[0].ContextMap()["payload"], `"seats": 2`)
	assert.Equal(t, "Event (raw)", entries[1].Message)
}

func TestDebugPrintEvent_SkippedAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	DebugPrintEvent(zap.New(core), "booking.confirmed", []byte(`{}`))
	assert.Zero(t, logs.Len())
}
