package behavioral

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractLines(t *testing.T, lines ...string) *RunMetrics {
	t.Helper()
	metrics, err := ExtractReader(strings.NewReader(strings.Join(lines, "\n")), ExtractOptions{})
	require.NoError(t, err)
	require.NotNil(t, metrics)
	return metrics
}

func TestExtractReader_EmptyLog(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "blank lines", content: "\n\n   \n"},
		{name: "all malformed", content: "{bad\nnot json\n[1,2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ExtractReader(strings.NewReader(tt.content), ExtractOptions{})
			require.NoError(t, err)

			assert.Equal(t, 0.0, m.TotalSteps)
			assert.Equal(t, 0.0, m.FinalTime)
			assert.Equal(t, 0, m.TotalRescues)
			assert.Equal(t, 0, m.UniqueRoomsCount)
			assert.Empty(t, m.UniqueRoomsVisited)
			assert.NotNil(t, m.AgentSteps)
			assert.Empty(t, m.AgentSteps)
			assert.NotNil(t, m.AgentVisits)
			assert.Empty(t, m.AgentVisits)
			assert.Empty(t, m.AgentInteractions)
			assert.Empty(t, m.CommunicationEvents)
			assert.False(t, m.SimulationCompleted)
			assert.Nil(t, m.CommunicationSuccessRate)
			assert.Nil(t, m.CommunicationAttemptsPerAgent)
			assert.Nil(t, m.TotalCommunicationsPerAgent)
			assert.NoError(t, m.Validate())
		})
	}
}

func TestExtractReader_FinalTimeIsMaximum(t *testing.T) {
	m := extractLines(t,
		`{"time": 5}`,
		`{"time": 3}`,
		`{"time": 9}`,
		`{"time": 2}`,
	)

	assert.Equal(t, 9.0, m.FinalTime)
	assert.Equal(t, 9.0, m.TotalSteps)
	assert.True(t, m.SimulationCompleted)
}

func TestExtractReader_TimeEdgeCases(t *testing.T) {
	t.Run("zero time does not complete the run", func(t *testing.T) {
		m := extractLines(t, `{"time": 0}`)
		assert.False(t, m.SimulationCompleted)
		assert.Equal(t, 0.0, m.FinalTime)
	})

	t.Run("non-numeric time ignored", func(t *testing.T) {
		m := extractLines(t, `{"time": 4}`, `{"time": "99"}`)
		assert.Equal(t, 4.0, m.FinalTime)
	})
}

func TestExtractReader_WorldState(t *testing.T) {
	t.Run("rooms deduplicated", func(t *testing.T) {
		m := extractLines(t,
			`{"world_state": {"room_descriptions": ["A", "B"]}}`,
			`{"world_state": {"room_descriptions": ["A", "B"]}}`,
		)
		assert.Equal(t, 2, m.UniqueRoomsCount)
		assert.Equal(t, []string{"A", "B"}, m.UniqueRoomsVisited)
	})

	t.Run("rooms sorted and unioned", func(t *testing.T) {
		m := extractLines(t,
			`{"world_state": {"room_descriptions": ["C", "A"]}}`,
			`{"world_state": {"room_descriptions": ["B"]}}`,
		)
		assert.Equal(t, []string{"A", "B", "C"}, m.UniqueRoomsVisited)
	})

	t.Run("rescues are last seen", func(t *testing.T) {
		m := extractLines(t,
			`{"world_state": {"total rescues": 3}}`,
			`{"world_state": {"room_descriptions": []}}`,
			`{"world_state": {"total rescues": 1}}`,
		)
		assert.Equal(t, 1, m.TotalRescues)
	})
}

func TestExtractReader_Actions(t *testing.T) {
	m := extractLines(t,
		`{"agent": {"name": "a"}, "command": "move"}`,
		`{"agent": {"name": "a"}, "command": "look"}`,
		`{"agent": "b", "command": null}`,
		`{"agent": {"name": "c"}}`,
		`{"command": "orphan"}`,
	)

	assert.Equal(t, map[string]int{"a": 2, "b": 1}, m.AgentSteps)
	assert.Equal(t, 3, m.AgentActions)
	assert.Equal(t, 2, m.NumAgents)
}

func TestExtractReader_Movement(t *testing.T) {
	m := extractLines(t,
		`{"agent": {"name": "bob"}, "parsed_response": "{\"move\": \"kitchen\"}"}`,
		`{"agent": {"name": "bob"}, "parsed_response": "{\"move\": \"kitchen\"}"}`,
		`{"agent": {"name": "bob"}, "parsed_response": {"move": {"move": "hall"}}}`,
		`{"agent": {"name": "bob"}, "parsed_response": "garbage"}`,
		`{"parsed_response": {"move": "attic"}}`,
	)

	assert.Equal(t, map[string]map[string]int{
		"bob": {"kitchen": 2, "hall": 1},
	}, m.AgentVisits)
}

func TestExtractReader_MovementNestedKeyOrder(t *testing.T) {
	m := extractLines(t,
		`{"agent": {"name": "bob"}, "parsed_response": {"move": {"room": "kitchen", "direction": "north"}}}`,
		`{"agent": {"name": "bob"}, "parsed_response": "{\"move\": {\"room\": \"hall\", \"direction\": \"south\"}}"}`,
	)

	assert.Equal(t, map[string]map[string]int{
		"bob": {"kitchen": 1, "hall": 1},
	}, m.AgentVisits)
}

func TestExtractReader_Communication(t *testing.T) {
	m := extractLines(t,
		`{"time": 1, "agent": {"role": "scout"}, "parsed_response": {"communicate": ["r2"]}}`,
		`{"action_result": {"success": true, "reason": "communicate ok"}}`,
	)

	assert.Equal(t, 1, m.CommunicationAttempts)
	assert.Equal(t, 1, m.TotalCommunications)
	assert.Equal(t, 1, m.CommunicationSuccesses)
	assert.Equal(t, 0, m.CommunicationFailures)
	assert.Equal(t, map[string]int{"scout->r2": 1}, m.AgentInteractions)
	require.NotNil(t, m.CommunicationSuccessRate)
	assert.Equal(t, 1.0, *m.CommunicationSuccessRate)

	require.Len(t, m.CommunicationEvents, 1)
	assert.Equal(t, 1.0, m.CommunicationEvents[0].Time)
	assert.Equal(t, map[string]any{"role": "scout"}, m.CommunicationEvents[0].Agent)
	assert.Equal(t, []any{"r2"}, m.CommunicationEvents[0].Targets)
}

func TestExtractReader_CommunicationTargets(t *testing.T) {
	m := extractLines(t,
		`{"agent": "x", "parsed_response": {"communicate": ["r2", "r3"]}}`,
		`{"parsed_response": {"communicate": "r2"}}`,
		`{"agent": {"role": "medic"}, "parsed_response": {"communicate": 7}}`,
	)

	assert.Equal(t, 3, m.CommunicationAttempts)
	assert.Equal(t, map[string]int{"unknown->r2": 2, "unknown->r3": 1}, m.AgentInteractions)
	require.Len(t, m.CommunicationEvents, 3)
	assert.Equal(t, 0.0, m.CommunicationEvents[1].Time)
	assert.Nil(t, m.CommunicationEvents[1].Agent)
}

func TestExtractReader_CommunicationOutcomes(t *testing.T) {
	m := extractLines(t,
		`{"parsed_response": {"communicate": ["r2"]}}`,
		`{"parsed_response": {"communicate": ["r3"]}}`,
		`{"parsed_response": {"communicate": ["r4"]}}`,
		`{"parsed_response": {"communicate": ["r5"]}}`,
		`{"action_result": {"success": true, "reason": "communicate ok"}}`,
		`{"action_result": {"success": false, "reason": "Failed to communicate"}}`,
		`{"action_result": {"success": false, "kind": "communication"}}`,
		`{"action_result": {"success": true, "reason": "moved"}}`,
	)

	assert.Equal(t, 1, m.CommunicationSuccesses)
	assert.Equal(t, 2, m.CommunicationFailures)
	require.NotNil(t, m.CommunicationSuccessRate)
	assert.Equal(t, 0.25, *m.CommunicationSuccessRate)
}

func TestExtractReader_PerAgentRatios(t *testing.T) {
	m := extractLines(t,
		`{"agent": {"name": "a", "role": "scout"}, "command": "talk", "parsed_response": {"communicate": ["b"]}}`,
		`{"agent": {"name": "b"}, "command": "wait"}`,
		`{"action_result": {"success": false, "reason": "communicate timeout"}}`,
	)

	require.NotNil(t, m.CommunicationAttemptsPerAgent)
	assert.Equal(t, 0.5, *m.CommunicationAttemptsPerAgent)
	require.NotNil(t, m.CommunicationSuccessesPerAgent)
	assert.Equal(t, 0.0, *m.CommunicationSuccessesPerAgent)
	require.NotNil(t, m.CommunicationFailuresPerAgent)
	assert.Equal(t, 0.5, *m.CommunicationFailuresPerAgent)
	require.NotNil(t, m.TotalCommunicationsPerAgent)
	assert.Equal(t, 0.5, *m.TotalCommunicationsPerAgent)
	require.NotNil(t, m.CommunicationSuccessRate)
	assert.Equal(t, 0.0, *m.CommunicationSuccessRate)
}

func TestExtractReader_MalformedLinesSkipped(t *testing.T) {
	m := extractLines(t,
		`{"time": 2, "world_state": {"total rescues": 1}}`,
		`{"time": 3, "world_state": {"total rescu`,
		`not json at all`,
		`{"time": 4}`,
	)

	assert.Equal(t, 4.0, m.FinalTime)
	assert.Equal(t, 1, m.TotalRescues)
}

func TestExtractReader_LineTooLong(t *testing.T) {
	long := `{"pad": "` + strings.Repeat("x", 2048) + `"}`
	_, err := ExtractReader(strings.NewReader(`{"time": 1}`+"\n"+long), ExtractOptions{MaxLineBytes: 1024})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading run log")
}

func TestExtractor_ObserveNilRecord(t *testing.T) {
	e := NewExtractor()
	e.Observe(nil)
	m := e.Finish()
	assert.Equal(t, 0, m.AgentActions)
}

func TestExtractFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("sets file path", func(t *testing.T) {
		path := filepath.Join(tmpDir, "run.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{\"time\": 7}\n{\"world_state\": {\"total rescues\": 2}}\n"), 0644))

		m, err := ExtractFile(path, ExtractOptions{})
		require.NoError(t, err)
		assert.Equal(t, path, m.FilePath)
		assert.Equal(t, 7.0, m.TotalSteps)
		assert.Equal(t, 2, m.TotalRescues)
	})

	t.Run("missing file", func(t *testing.T) {
		m, err := ExtractFile(filepath.Join(tmpDir, "missing.json"), ExtractOptions{})
		assert.Error(t, err)
		assert.Nil(t, m)
	})

	t.Run("directory instead of file", func(t *testing.T) {
		m, err := ExtractFile(tmpDir, ExtractOptions{})
		assert.Error(t, err)
		assert.Nil(t, m)
	})
}

func TestExtractReader_LargeValues(t *testing.T) {
	m := extractLines(t, `{"time": 1e6}`)
	assert.Equal(t, 1e6, m.FinalTime)
	assert.False(t, math.IsInf(m.FinalTime, 0))
}
