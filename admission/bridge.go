package admission

import (
	"context"

	"github.com/mohitkumar/dagforge/engine"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/model"
	"go.uber.org/zap"
)

type UnpauseStatus string

const UNPAUSE_STATUS_UNPAUSED UnpauseStatus = "unpaused"
const UNPAUSE_STATUS_ALREADY_RUNNING UnpauseStatus = "already_running"
const UNPAUSE_STATUS_FAILED UnpauseStatus = "failed"

// Bridge moves pipelines between paused and running on the engine and starts
// runs.
type Bridge struct {
	client engine.Client
	policy RetryPolicy
}

func NewBridge(client engine.Client, policy RetryPolicy) *Bridge {
	if policy.Retryable == nil {
		policy.Retryable = engine.IsNotFound
	}
	return &Bridge{client: client, policy: policy}
}

// TryUnpause is Unpause reporting how the pipeline ended up and, on
// failure, the last engine error.
func (b *Bridge) TryUnpause(ctx context.Context, pipelineId string) (UnpauseStatus, error) {
	status := UNPAUSE_STATUS_FAILED
	err := b.policy.Do(ctx, func() error {
		p, err := b.client.GetPipeline(ctx, pipelineId)
		if err != nil {
			return err
		}
		if !p.IsPaused {
			status = UNPAUSE_STATUS_ALREADY_RUNNING
			return nil
		}
		if err := b.client.SetPaused(ctx, pipelineId, false); err != nil {
			return err
		}
		status = UNPAUSE_STATUS_UNPAUSED
		return nil
	})
	if err != nil {
		return UNPAUSE_STATUS_FAILED, err
	}
	return status, nil
}

// Unpause makes the pipeline eligible to run. Lookups that find nothing are
// retried because the engine may not have scanned a new artifact yet. It
// reports whether the pipeline ended up unpaused.
func (b *Bridge) Unpause(ctx context.Context, pipelineId string) bool {
	status, err := b.TryUnpause(ctx, pipelineId)
	if err != nil {
		logger.Warn("could not unpause pipeline", zap.String("pipeline", pipelineId), zap.Error(err))
		return false
	}
	logger.Info("pipeline unpaused", zap.String("pipeline", pipelineId), zap.String("status", string(status)))
	return true
}

func (b *Bridge) Pause(ctx context.Context, pipelineId string) error {
	if err := b.client.SetPaused(ctx, pipelineId, true); err != nil {
		logger.Error("could not pause pipeline", zap.String("pipeline", pipelineId), zap.Error(err))
		return err
	}
	return nil
}

// IsPaused asks the engine for the pause state without retrying.
func (b *Bridge) IsPaused(ctx context.Context, pipelineId string) (bool, error) {
	p, err := b.client.GetPipeline(ctx, pipelineId)
	if err != nil {
		return false, err
	}
	return p.IsPaused, nil
}

// Trigger starts a run. A paused pipeline is unpaused first; failing to do so
// is logged and the trigger is still attempted.
func (b *Bridge) Trigger(ctx context.Context, pipelineId string, conf map[string]any) (*engine.Run, error) {
	paused, err := b.IsPaused(ctx, pipelineId)
	switch {
	case err != nil:
		logger.Warn("could not read pipeline state before trigger", zap.String("pipeline", pipelineId), zap.Error(err))
	case paused:
		if !b.Unpause(ctx, pipelineId) {
			logger.Warn("triggering paused pipeline", zap.String("pipeline", pipelineId))
		}
	}
	run, err := b.client.TriggerRun(ctx, pipelineId, conf)
	if err != nil {
		logger.Error("error triggering pipeline", zap.String("pipeline", pipelineId), zap.Error(err))
		return nil, err
	}
	logger.Info("pipeline triggered", zap.String("pipeline", pipelineId), zap.String("run", run.Id))
	return run, nil
}

type BulkOutcome struct {
	WorkflowId   string        `json:"workflow_id"`
	WorkflowName string        `json:"workflow_name"`
	PipelineId   string        `json:"pipeline_id"`
	Status       UnpauseStatus `json:"status"`
	Reason       string        `json:"reason,omitempty"`
}

type BulkUnpauseResult struct {
	Results      []BulkOutcome `json:"results"`
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
}

// UnpauseAll unpauses each workflow's pipeline independently. One failure
// does not stop the others.
func (b *Bridge) UnpauseAll(ctx context.Context, workflows []*model.Workflow) *BulkUnpauseResult {
	res := &BulkUnpauseResult{Results: make([]BulkOutcome, 0, len(workflows))}
	for _, wf := range workflows {
		outcome := BulkOutcome{WorkflowId: wf.Id, WorkflowName: wf.Name, PipelineId: wf.PipelineId()}
		status, err := b.TryUnpause(ctx, outcome.PipelineId)
		outcome.Status = status
		if err != nil {
			outcome.Reason = err.Error()
			res.FailedCount++
			logger.Warn("could not unpause pipeline", zap.String("pipeline", outcome.PipelineId), zap.Error(err))
		} else {
			res.SuccessCount++
		}
		res.Results = append(res.Results, outcome)
	}
	logger.Info("bulk unpause finished", zap.Int("success", res.SuccessCount), zap.Int("failed", res.FailedCount))
	return res
}
