package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestFileLoggerWritesFlatJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	l := New(Options{FilePath: path, Level: "info", Service: "curiow-deepchat"})

	l.Info("Hub", "Client registered", map[string]interface{}{"user_id": "u1"})
	l.Debug("Hub", "below file level", nil)
	l.Error("Hub", "Relay failed", map[string]interface{}{"error": errors.New("redis down")})
	_ = l.Sync()

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "Client registered", lines[0]["message"])
	assert.Equal(t, "Hub", lines[0]["module"])
	assert.Equal(t, "u1", lines[0]["user_id"])
	assert.Equal(t, "curiow-deepchat", lines[0]["service"])
	assert.Equal(t, "redis down", lines[1]["error"])
}

func TestLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := New(Options{FilePath: path, Level: "chatty"})

	l.Debug("Test", "dropped", nil)
	l.Warn("Test", "kept", nil)
	_ = l.Sync()

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["message"])
}

func TestNopLoggerAcceptsNilDetails(t *testing.T) {
	l := NewNopLogger()
	l.Error("Test", "nothing happens", nil)
	assert.NoError(t, l.Sync())
}
