package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatus(t *testing.T) {
	assert.False(t, RUN_STATUS_QUEUED.IsTerminal())
	assert.False(t, RUN_STATUS_RUNNING.IsTerminal())
	assert.True(t, RUN_STATUS_SUCCESS.IsTerminal())
	assert.True(t, RUN_STATUS_FAILED.IsTerminal())

	status, err := ParseRunStatus("Success")
	require.NoError(t, err)
	assert.Equal(t, RUN_STATUS_SUCCESS, status)

	_, err = ParseRunStatus("upstream_failed")
	require.Error(t, err)
}

func TestJobRunSyncable(t *testing.T) {
	run := &JobRun{Status: RUN_STATUS_QUEUED}
	assert.False(t, run.Syncable())

	run.EngineRunId = "manual__1"
	assert.True(t, run.Syncable())

	run.Status = RUN_STATUS_FAILED
	assert.False(t, run.Syncable())
}

func TestJobRunClone(t *testing.T) {
	started := time.Now()
	run := &JobRun{Id: "r", StartedAt: &started}
	c := run.Clone()
	*c.StartedAt = started.Add(time.Minute)
	assert.Equal(t, started, *run.StartedAt)
}
