package statussync

import (
	"context"
	"strings"
	"time"

	"github.com/mohitkumar/dagforge/engine"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/model"
	"go.uber.org/zap"
)

const DEFAULT_TIMEOUT = 10 * time.Second

type Outcome string

const OUTCOME_SKIPPED Outcome = "skipped"
const OUTCOME_UNCHANGED Outcome = "unchanged"
const OUTCOME_UPDATED Outcome = "updated"
const OUTCOME_STALE Outcome = "stale"

// Result carries the run as it should be shown to the caller. When the
// outcome is stale, Run is the previously stored state and Err says why.
type Result struct {
	Run     *model.JobRun
	Outcome Outcome
	Err     error
}

type RunStore interface {
	UpdateJobRun(ctx context.Context, run *model.JobRun) error
}

// Synchronizer pulls run state from the engine into stored job runs.
type Synchronizer struct {
	client  engine.Client
	runs    RunStore
	timeout time.Duration
}

func NewSynchronizer(client engine.Client, runs RunStore, timeout time.Duration) *Synchronizer {
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	return &Synchronizer{client: client, runs: runs, timeout: timeout}
}

// Sync refreshes a run that the engine may still change. Terminal runs and
// runs the engine never accepted are returned untouched. Errors never
// propagate; the stored state is returned instead.
func (s *Synchronizer) Sync(ctx context.Context, run *model.JobRun) Result {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.sync(ctx, callCtx, run)
}

// SyncAll refreshes runs one after another. All engine calls share a single
// timeout; runs reached after it expires are returned stale without a call.
func (s *Synchronizer) SyncAll(ctx context.Context, runs []*model.JobRun) []Result {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	results := make([]Result, 0, len(runs))
	for _, run := range runs {
		results = append(results, s.sync(ctx, callCtx, run))
	}
	return results
}

// sync asks the engine under callCtx and saves under ctx, so a run already
// fetched is still stored when the engine deadline runs out.
func (s *Synchronizer) sync(ctx context.Context, callCtx context.Context, run *model.JobRun) Result {
	if !run.Syncable() {
		return Result{Run: run, Outcome: OUTCOME_SKIPPED}
	}
	if err := callCtx.Err(); err != nil {
		return Result{Run: run, Outcome: OUTCOME_STALE, Err: err}
	}

	remote, err := s.client.GetRun(callCtx, model.PipelineIdFor(run.WorkflowId), run.EngineRunId)
	if err != nil {
		logger.Warn("could not sync run from engine", zap.String("run", run.Id), zap.String("engineRun", run.EngineRunId), zap.Error(err))
		return Result{Run: run, Outcome: OUTCOME_STALE, Err: err}
	}

	updated := run.Clone()
	if !apply(updated, remote) {
		return Result{Run: run, Outcome: OUTCOME_UNCHANGED}
	}
	if err := s.runs.UpdateJobRun(ctx, updated); err != nil {
		logger.Error("error saving synced run", zap.String("run", run.Id), zap.Error(err))
		return Result{Run: run, Outcome: OUTCOME_STALE, Err: err}
	}
	logger.Debug("run synced", zap.String("run", run.Id), zap.String("status", string(updated.Status)))
	return Result{Run: updated, Outcome: OUTCOME_UPDATED}
}

func apply(run *model.JobRun, remote *engine.Run) bool {
	changed := false
	if status, ok := MapEngineState(remote.State); ok && status != run.Status {
		run.Status = status
		changed = true
	}
	if t, ok := parseTimestamp(remote.StartDate); ok && (run.StartedAt == nil || !run.StartedAt.Equal(t)) {
		run.StartedAt = &t
		changed = true
	}
	if t, ok := parseTimestamp(remote.EndDate); ok && (run.EndedAt == nil || !run.EndedAt.Equal(t)) {
		run.EndedAt = &t
		changed = true
	}
	return changed
}

// MapEngineState accepts only the engine states that have a local meaning.
func MapEngineState(state string) (model.RunStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "success":
		return model.RUN_STATUS_SUCCESS, true
	case "failed":
		return model.RUN_STATUS_FAILED, true
	case "running":
		return model.RUN_STATUS_RUNNING, true
	}
	return "", false
}

func parseTimestamp(value *string) (time.Time, bool) {
	if value == nil || *value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, *value)
	if err != nil {
		logger.Debug("ignoring engine timestamp", zap.String("value", *value), zap.Error(err))
		return time.Time{}, false
	}
	return t.UTC(), true
}
