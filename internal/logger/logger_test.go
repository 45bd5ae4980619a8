package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The logger package keeps package-level state, so these tests must not
// run in parallel: each one runs its own Init/Close cycle against that
// shared state.
func TestLogger_InitAddRedactAndClose(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	AddLog("INFO", "starting with key mcpgw-abc123XYZ embedded")
	AddLog("ERROR", "a plain message")
	AddLog("INFO", "activated mount under prefix interactive-sqlite")

	entries := GetLogs()
	require.GreaterOrEqual(t, len(entries), 3)

	var redacted, sawOrdinaryHyphen bool
	for _, e := range entries {
		if strings.Contains(e.Message, "REDACTED") {
			redacted = true
			assert.NotContains(t, e.Message, "mcpgw-abc123XYZ")
		}
		if strings.Contains(e.Message, "interactive-sqlite") {
			sawOrdinaryHyphen = true
		}
	}
	assert.True(t, redacted, "expected the gateway API key pattern to be redacted")
	assert.True(t, sawOrdinaryHyphen, "ordinary hyphenated text must not be redacted")

	path := GetLogFilePath()
	assert.True(t, strings.HasPrefix(filepath.Base(path), ""))

	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)
	var first LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.NotEmpty(t, first.Timestamp)
}

func TestLogger_SubscribeReceivesEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	defer Close()

	ch := Subscribe()
	defer Unsubscribe(ch)

	AddLog("INFO", "hello subscriber")

	select {
	case entry := <-ch:
		assert.Equal(t, "hello subscriber", entry.Message)
	default:
		t.Fatal("expected a log entry to be delivered to the subscriber")
	}
}
