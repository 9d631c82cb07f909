package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/mohitkumar/dagforge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f.monitoring.now = func() time.Time { return now }

	wf := f.workflow(t, "active", true)
	f.workflow(t, "inactive", false)
	for i, run := range []struct {
		status model.RunStatus
		age    time.Duration
	}{
		{model.RUN_STATUS_SUCCESS, time.Hour},
		{model.RUN_STATUS_SUCCESS, 48 * time.Hour},
		{model.RUN_STATUS_FAILED, 2 * time.Hour},
		{model.RUN_STATUS_RUNNING, time.Minute},
	} {
		require.NoError(t, f.storage.CreateJobRun(f.ctx, &model.JobRun{
			Id:         fmt.Sprintf("run-%d", i),
			WorkflowId: wf.Id,
			Status:     run.status,
			CreatedAt:  now.Add(-run.age),
		}))
	}

	stats, err := f.monitoring.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, WorkflowStats{Total: 2, Active: 1, Inactive: 1}, stats.Workflows)
	assert.Equal(t, 4, stats.JobRuns.Total)
	assert.Equal(t, 3, stats.JobRuns.Recent24h)
	assert.Equal(t, 2, stats.JobRuns.ByStatus[model.RUN_STATUS_SUCCESS])
	assert.Equal(t, 66.67, stats.JobRuns.SuccessRate)
}

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, successRate(0, 0))
	assert.Equal(t, 100.0, successRate(3, 0))
	assert.Equal(t, 33.33, successRate(1, 2))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	h := f.monitoring.Health(f.ctx)
	assert.Equal(t, HEALTH_HEALTHY, h.Status)

	f.engine.SetHealthy(false)
	h = f.monitoring.Health(f.ctx)
	assert.Equal(t, HEALTH_DEGRADED, h.Status)
	assert.Equal(t, HEALTH_UNHEALTHY, h.Components["engine"])
	assert.Equal(t, HEALTH_HEALTHY, h.Components["storage"])
}
