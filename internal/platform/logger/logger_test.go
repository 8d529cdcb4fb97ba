package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "production", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		require.NotNil(t, l.SugaredLogger)
	}
}

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core).With("component", "service")

	l.Debug("committed", "unit", "u-1")
	l.Info("not found", "id", int64(7))
	l.Warn("invalid", "field", "name")
	l.Error("storage failure", "err", "disk full")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "service", entries[0].ContextMap()["component"])
	assert.Equal(t, "u-1", entries[0].ContextMap()["unit"])
}

func TestCredentialsAreRedacted(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)
	l.Info("opening store", "postgres_dsn", "postgres://u:p@h/db", "secret_access_key", "abc", "driver", "postgres")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["postgres_dsn"])
	assert.Equal(t, "[REDACTED]", fields["secret_access_key"])
	assert.Equal(t, "postgres", fields["driver"])
}
