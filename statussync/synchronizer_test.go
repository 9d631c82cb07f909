package statussync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/dagforge/engine"
	"github.com/mohitkumar/dagforge/engine/enginetest"
	"github.com/mohitkumar/dagforge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	updates []*model.JobRun
	err     error
}

func (s *recordingStore) UpdateJobRun(ctx context.Context, run *model.JobRun) error {
	if s.err != nil {
		return s.err
	}
	s.updates = append(s.updates, run.Clone())
	return nil
}

func strPtr(s string) *string { return &s }

func runningRun() *model.JobRun {
	started := time.Date(2024, 5, 1, 9, 59, 0, 0, time.UTC)
	return &model.JobRun{
		Id:          "run-1",
		WorkflowId:  "wf",
		EngineRunId: "manual__1",
		Status:      model.RUN_STATUS_RUNNING,
		StartedAt:   &started,
	}
}

func TestSync(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, fake *enginetest.Fake, store *recordingStore, s *Synchronizer){
		"success with timestamps is applied once":  testSyncSuccess,
		"unknown engine state is ignored":          testSyncUnknownState,
		"terminal runs are never fetched":          testSyncTerminal,
		"runs without engine id are skipped":       testSyncNoEngineId,
		"engine failure returns stored state":      testSyncEngineFailure,
		"persistence failure returns stored state": testSyncStoreFailure,
		"bad timestamps are ignored":               testSyncBadTimestamp,
	} {
		t.Run(scenario, func(t *testing.T) {
			fake := enginetest.NewFake()
			store := &recordingStore{}
			fn(t, fake, store, NewSynchronizer(fake, store, time.Second))
		})
	}
}

func testSyncSuccess(t *testing.T, fake *enginetest.Fake, store *recordingStore, s *Synchronizer) {
	fake.SetRun("workflow_wf", engine.Run{Id: "manual__1", State: "success", StartDate: strPtr("2024-05-01T10:00:00Z"), EndDate: strPtr("2024-05-01T10:05:00+00:00")})

	res := s.Sync(context.Background(), runningRun())
	require.NoError(t, res.Err)
	assert.Equal(t, OUTCOME_UPDATED, res.Outcome)
	assert.Equal(t, model.RUN_STATUS_SUCCESS, res.Run.Status)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), *res.Run.StartedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC), *res.Run.EndedAt)
	require.Len(t, store.updates, 1)

	again := s.Sync(context.Background(), res.Run)
	assert.Equal(t, OUTCOME_SKIPPED, again.Outcome)
	assert.Len(t, store.updates, 1)
	assert.Equal(t, 1, fake.CallCount("get_run", "workflow_wf"))
}

func testSyncUnknownState(t *testing.T, fake *enginetest.Fake, store *recordingStore, s *Synchronizer) {
	run := runningRun()
	fake.SetRun("workflow_wf", engine.Run{Id: "manual__1", State: "upstream_failed", StartDate: strPtr("2024-05-01T09:59:00Z")})

	res := s.Sync(context.Background(), run)
	assert.Equal(t, OUTCOME_UNCHANGED, res.Outcome)
	assert.Equal(t, model.RUN_STATUS_RUNNING, res.Run.Status)
	assert.Empty(t, store.updates)
}

func testSyncTerminal(t *testing.T, fake *enginetest.Fake, store *recordingStore, s *Synchronizer) {
	run := runningRun()
	run.Status = model.RUN_STATUS_FAILED
	fake.SetRun("workflow_wf", engine.Run{Id: "manual__1", State: "running"})

	res := s.Sync(context.Background(), run)
	assert.Equal(t, OUTCOME_SKIPPED, res.Outcome)
	assert.Equal(t, model.RUN_STATUS_FAILED, res.Run.Status)
	assert.Equal(t, 0, fake.CallCount("get_run", "workflow_wf"))
}

func testSyncNoEngineId(t *testing.T, fake *enginetest.Fake, store *recordingStore, s *Synchronizer) {
	run := runningRun()
	run.EngineRunId = ""
	run.Status = model.RUN_STATUS_QUEUED

	res := s.Sync(context.Background(), run)
	assert.Equal(t, OUTCOME_SKIPPED, res.Outcome)
	assert.Empty(t, fake.Calls())
}

func testSyncEngineFailure(t *testing.T, fake *enginetest.Fake, store *recordingStore, s *Synchronizer) {
	fake.Fail("get_run", &engine.UnavailableError{Op: "get_run", Err: errors.New("timeout")})
	run := runningRun()

	res := s.Sync(context.Background(), run)
	assert.Equal(t, OUTCOME_STALE, res.Outcome)
	assert.Same(t, run, res.Run)
	assert.Error(t, res.Err)
	assert.Empty(t, store.updates)
}

func testSyncStoreFailure(t *testing.T, fake *enginetest.Fake, store *recordingStore, s *Synchronizer) {
	store.err = errors.New("disk full")
	fake.SetRun("workflow_wf", engine.Run{Id: "manual__1", State: "failed"})
	run := runningRun()

	res := s.Sync(context.Background(), run)
	assert.Equal(t, OUTCOME_STALE, res.Outcome)
	assert.Equal(t, model.RUN_STATUS_RUNNING, res.Run.Status)
	assert.Equal(t, model.RUN_STATUS_RUNNING, run.Status)
}

func testSyncBadTimestamp(t *testing.T, fake *enginetest.Fake, store *recordingStore, s *Synchronizer) {
	fake.SetRun("workflow_wf", engine.Run{Id: "manual__1", State: "running", StartDate: strPtr("yesterday"), EndDate: strPtr("")})
	run := runningRun()

	res := s.Sync(context.Background(), run)
	assert.Equal(t, OUTCOME_UNCHANGED, res.Outcome)
	assert.Nil(t, res.Run.EndedAt)
}

func TestSyncAll(t *testing.T) {
	fake := enginetest.NewFake()
	fake.SetRun("workflow_wf", engine.Run{Id: "manual__1", State: "success"})
	s := NewSynchronizer(fake, &recordingStore{}, 0)

	queued := &model.JobRun{Id: "run-2", WorkflowId: "wf", Status: model.RUN_STATUS_QUEUED}
	results := s.SyncAll(context.Background(), []*model.JobRun{runningRun(), queued})
	require.Len(t, results, 2)
	assert.Equal(t, OUTCOME_UPDATED, results[0].Outcome)
	assert.Equal(t, OUTCOME_SKIPPED, results[1].Outcome)
}

type blockingEngine struct {
	*enginetest.Fake
	mu    sync.Mutex
	calls int
}

func (e *blockingEngine) GetRun(ctx context.Context, pipelineId string, runId string) (*engine.Run, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	<-ctx.Done()
	return nil, &engine.UnavailableError{Op: "get_run", Err: ctx.Err()}
}

func TestSyncAllSharesOneDeadline(t *testing.T) {
	slow := &blockingEngine{Fake: enginetest.NewFake()}
	timeout := 50 * time.Millisecond
	s := NewSynchronizer(slow, &recordingStore{}, timeout)

	runs := make([]*model.JobRun, 0, 20)
	for i := 0; i < 20; i++ {
		r := runningRun()
		r.Id = fmt.Sprintf("run-%d", i)
		r.EngineRunId = fmt.Sprintf("manual__%d", i)
		runs = append(runs, r)
	}

	start := time.Now()
	results := s.SyncAll(context.Background(), runs)
	elapsed := time.Since(start)

	require.Len(t, results, 20)
	for _, res := range results {
		assert.Equal(t, OUTCOME_STALE, res.Outcome)
		assert.Equal(t, model.RUN_STATUS_RUNNING, res.Run.Status)
	}
	assert.Equal(t, 1, slow.calls)
	assert.Less(t, elapsed, 10*timeout)
	assert.ErrorIs(t, results[19].Err, context.DeadlineExceeded)
}

func TestMapEngineState(t *testing.T) {
	for state, want := range map[string]model.RunStatus{
		"success": model.RUN_STATUS_SUCCESS,
		"FAILED":  model.RUN_STATUS_FAILED,
		"running": model.RUN_STATUS_RUNNING,
		"queued":  "",
		"skipped": "",
	} {
		got, ok := MapEngineState(state)
		assert.Equal(t, want != "", ok, state)
		assert.Equal(t, want, got, state)
	}
}
