package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_OfflineRunsProcedure(t *testing.T) {
	path, _ := writeConfig(t, "")
	input := strings.Join([]string{"fire panel", "/state", "done", "done", "done", "/state", "/quit"}, "\n")

	out, err := run(t, input, "chat", "--config", path, "--offline")
	require.NoError(t, err)

	assert.Contains(t, out, "offline")
	assert.Contains(t, out, "[WatchTower]")
	assert.Contains(t, out, "Okay, let's reset this.")
	assert.Contains(t, out, "Fire Panel Reset: step 1 of 3, retries 0, 0 completed")
	assert.Contains(t, out, "All done!")
	assert.Contains(t, out, "No procedure in progress.")
}

func TestChat_EscalationAlertsSupervisor(t *testing.T) {
	path, _ := writeConfig(t, "escalation:\n  supervisor_phone: \"+15550199\"\n")
	out, err := run(t, "gate stuck\nsupervisor\n", "chat", "--config", path, "--offline")
	require.NoError(t, err)

	assert.Contains(t, out, "Connecting you with your supervisor")
	assert.Contains(t, out, "[WatchTower → +15550199]")
	assert.Contains(t, out, "Gate Issues")
}

func TestChat_RecordWritesIncident(t *testing.T) {
	path, _ := writeConfig(t, "")
	_, err := run(t, "electric fence\ndone\ndone\n", "chat", "--config", path, "--offline", "--record")
	require.NoError(t, err)

	out, err := run(t, "", "report", "incidents", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Electric Fence")
	assert.Contains(t, out, "resolved")
}

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, isTerminal(strings.NewReader("")))
}
