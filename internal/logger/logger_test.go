package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromZapEmitsEventKey(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.InfoObj("watermark loaded", "watermark_loaded", map[string]any{"source": "file"})
	log.WarnObj("delivery failed", "delivery_failed", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "watermark loaded", entries[0].Message)
	assert.Equal(t, "watermark_loaded", entries[0].ContextMap()["event"])
	assert.Equal(t, "file", entries[0].ContextMap()["source"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	log, err := New(Options{})
	require.NoError(t, err)
	require.NotNil(t, log)

	log, err = New(Options{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestEnsure(t *testing.T) {
	assert.IsType(t, NopLogger{}, Ensure(nil))
	assert.Nil(t, FromZap(nil).Sync())
}
