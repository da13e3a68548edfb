package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToStdoutAndInfo(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)

	assert.Equal(t, os.Stdout, logger.Out)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}

func TestNew_JSONFormat(t *testing.T) {
	logger, err := New(Options{Level: "debug", Format: "JSON"})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNew_CreatesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gochat.log")
	logger, err := New(Options{Level: "info", FilePath: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info("test")

	_, err = os.Stat(path)
	require.NoError(t, err, "expected log file to be created")
}

func TestNew_FallsBackWhenDirectoryIsBlocked(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	logger, err := New(Options{FilePath: filepath.Join(blocker, "sub", "gochat.log")})
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, logger.Out)
}

func TestFields(t *testing.T) {
	fields := SessionFields("abc", "127.0.0.1:5000")
	assert.Equal(t, "abc", fields["session_id"])

	fields = CommandFields("alice", "send", "hi")
	assert.Equal(t, "send", fields["command"])
	assert.Equal(t, "hi", fields["args"])
}
