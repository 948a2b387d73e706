package reactorecho

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger, release, err := NewLogger(LogConfig{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug("server initialized")
	release()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "DEBUG")
	assert.Contains(t, string(content), "server initialized")
}

func TestNewLoggerBadLevel(t *testing.T) {
	_, _, err := NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
