package util

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondTimeFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		second int64
		want   string
	}{
		{name: "zero", second: 0, want: "00:00:00"},
		{name: "negative clamps to zero", second: -5, want: "00:00:00"},
		{name: "wake sequence", second: 150, want: "00:02:30"},
		{name: "hours", second: 3*3600 + 7, want: "03:00:07"},
		{name: "days", second: 2*86400 + 3661, want: "2-01:01:01"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SecondTimeFormat(tt.second))
		})
	}
}

func TestRoundTo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 179.46, RoundTo(179.4567, 2))
	assert.Equal(t, 0.333, RoundTo(1.0/3.0, 3))
	assert.Equal(t, 5.0, RoundTo(5, 2))
}

func TestCheckLogLevel(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"trace", "debug", "info", "warn", "error", "INFO"} {
		assert.NoError(t, CheckLogLevel(level), level)
	}
	assert.Error(t, CheckLogLevel("verbose"))
	assert.Error(t, CheckLogLevel(""))
}

func TestExitCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrorSuccess, ExitCodeOf(nil))
	assert.Equal(t, ErrorGeneric, ExitCodeOf(errors.New("boom")))
	assert.Equal(t, ErrorTimeout, ExitCodeOf(NewCmdError(ErrorTimeout, "host %s did not answer", "10.0.0.1")))

	wrapped := fmt.Errorf("wake: %w", &CmdError{Code: ErrorNetwork})
	assert.Equal(t, ErrorNetwork, ExitCodeOf(wrapped))
	assert.Equal(t, "exit code 3", (&CmdError{Code: ErrorNetwork}).Error())
}

func TestSetLogFile(t *testing.T) {
	original := log.StandardLogger().Out
	t.Cleanup(func() { log.SetOutput(original) })

	closer, err := SetLogFile(LogFileConfig{})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())

	path := filepath.Join(t.TempDir(), "logs", "powersimd.log")
	closer, err = SetLogFile(LogFileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)
	log.Info("rotated log line")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotated log line")
}

func TestRenderKeyValueTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	RenderKeyValueTable(&buf, [][]string{{"state", "running"}, {"wattage", "180.00"}})

	out := buf.String()
	assert.True(t, strings.Contains(out, "FIELD"))
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "180.00")
	assert.NotContains(t, out, "|")
	assert.NotContains(t, out, "+")
}
