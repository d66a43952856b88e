package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowLogAppendsLines(t *testing.T) {
	dir := t.TempDir()

	flow, err := NewFlowLog(dir, "farm", "acc-123")
	require.NoError(t, err)

	flow.Printf("Starting session")
	flow.Printf("Liked a post. Total: %d/%d", 1, 5)

	raw, err := os.ReadFile(filepath.Join(dir, "farm_acc-123.log"))
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, "[Account acc-123] Starting session")
	assert.Contains(t, content, "Liked a post. Total: 1/5")
}

func TestNewFlowLogCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	_, err := NewFlowLog(dir, "post", "acc-1")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
