package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webreplay/internal/executor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	id, err := s.CreateRun("activity_log.json")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.SaveStep(id, executor.StepResult{
		Step: 1, Action: "navigation", Success: true, Method: "navigation",
		Timestamp: "2026-08-31T10:00:00Z",
	}))
	require.NoError(t, s.SaveStep(id, executor.StepResult{
		Step: 2, Action: "click", Success: false, Method: "not_found",
		Error: "all resolution strategies exhausted", Timestamp: "2026-08-31T10:00:05Z",
		ScreenshotBefore: "shots/step_002_before.png",
		Assertions: []executor.AssertionResult{
			{Name: `text present: "ok"`, Passed: false, Message: `"ok" not found on page`},
		},
	}))
	require.NoError(t, s.FinishRun(id, "completed", 2, 1, 1))

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 1, runs[0].Passed)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotEmpty(t, runs[0].FinishedAt)

	steps, err := s.ListSteps(id)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "navigation", steps[0].Action)
	assert.True(t, steps[0].Success)
	assert.Equal(t, "not_found", steps[1].Method)
	require.Len(t, steps[1].Assertions, 1)
	assert.False(t, steps[1].Assertions[0].Passed)

	shots, err := s.Screenshots(id)
	require.NoError(t, err)
	assert.Equal(t, "shots/step_002_before.png", shots["2/before"])
}

func TestListRunsEmptyDatabase(t *testing.T) {
	s := openTestStore(t)
	runs, err := s.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)
}
