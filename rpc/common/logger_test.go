package common

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggersTwice(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() { SetLogOutput(os.Stderr) })

	require.NoError(t, InitLoggers("info"))
	require.NotPanics(t, func() {
		require.NoError(t, InitLoggers("debug"))
	})

	l := logger.GetLogger(LoggerServer)
	l.Debugf("accepted %d", 7)
	assert.Contains(t, buf.String(), "DEBUG | relay/server")
	assert.Contains(t, buf.String(), fmt.Sprintf("pid %-6d", os.Getpid()))
	assert.Contains(t, buf.String(), "accepted 7")

	buf.Reset()
	require.NoError(t, InitLoggers("error"))
	l.Warningf("hidden")
	assert.Empty(t, buf.String())

	l.Errorf("shown")
	assert.Contains(t, buf.String(), "ERROR | relay/server")
}

func TestInitLoggersInvalidLevel(t *testing.T) {
	assert.Error(t, InitLoggers("loud"))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DEBUG},
		{"INFO", logger.INFO},
		{"warn", logger.WARNING},
		{"warning", logger.WARNING},
		{"", logger.WARNING},
		{"error", logger.ERROR},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPanicfAlwaysPanics(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() { SetLogOutput(os.Stderr) })

	l := CreateLogger("relay/test")
	l.SetLevel(logger.ERROR)
	assert.PanicsWithValue(t, "broken 1", func() { l.Panicf("broken %d", 1) })
	assert.Contains(t, buf.String(), "CRIT  | relay/test")
}
