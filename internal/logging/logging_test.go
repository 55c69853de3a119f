package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetLogger(newStdLogger(&buf, nil))
	t.Cleanup(func() {
		SetLogger(prev)
		SetLogMode(InfoMode)
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := capture(t)
	SetLogMode(WarningMode)
	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warningf("warning %d", 3)
	Errorf("error %d", 4)
	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, " WARNING warning 3")
	assert.Contains(t, out, " ERROR error 4")

	buf.Reset()
	SetLogMode(SilentMode)
	Criticalf("gone")
	assert.Empty(t, buf.String())
}

func TestParseMode(t *testing.T) {
	tests := map[string]ModeFlag{
		"":         InfoMode,
		"DEBUG":    DebugMode,
		"warn":     WarningMode,
		"critical": CriticalMode,
		"off":      SilentMode,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("loud")
	assert.Error(t, err)
}

func TestSetupLogfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	prev := SetLogger(newStdLogger(os.Stderr, nil))
	t.Cleanup(func() {
		SetLogger(prev)
		SetLogMode(InfoMode)
	})

	require.NoError(t, Setup(Config{Logfile: path, Level: "debug", MaxSize: 1}))
	Debugf("slice %d encoded", 7)
	NewTimeLog().Infof("finished")
	Shutdown()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), " DEBUG slice 7 encoded")
	assert.Contains(t, string(data), " INFO finished: ")

	assert.Error(t, Setup(Config{Level: "chatty"}))
}
