package async_log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSyncWritesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	w, err := NewWriter(path, 1, 16)
	require.NoError(t, err)
	defer w.Close()

	lines := []string{"first line\n", "second line\n", "a line that is longer than sixteen bytes\n", "last\n"}
	for _, l := range lines {
		n, err := w.Write([]byte(l))
		require.NoError(t, err)
		assert.Equal(t, len(l), n)
	}
	require.NoError(t, w.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(lines, ""), string(content))

	w.mu.Lock()
	assert.Empty(t, w.fullBuffers)
	w.mu.Unlock()
}

func TestWriterCloseFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	w, err := NewWriter(path, 0, 0)
	require.NoError(t, err)

	_, err = w.Write([]byte("bye\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bye\n", string(content))
}

func TestWriterOpenFailure(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "missing", "server.log"), 1, 16)
	assert.Error(t, err)
}
