package service

import (
	"context"
	"time"

	"github.com/mohitkumar/dagforge/admission"
	"github.com/mohitkumar/dagforge/engine"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"github.com/mohitkumar/dagforge/statussync"
	"go.uber.org/zap"
)

type JobRunList struct {
	Total    int             `json:"total"`
	JobRuns  []*model.JobRun `json:"job_runs"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type TaskLog struct {
	JobRunId string `json:"job_run_id"`
	TaskName string `json:"task_name"`
	Attempt  int    `json:"attempt"`
	Logs     string `json:"logs"`
}

type JobService struct {
	storage persistence.Storage
	engine  engine.Client
	bridge  *admission.Bridge
	sync    *statussync.Synchronizer
	now     func() time.Time
	newId   func() string
}

func NewJobService(storage persistence.Storage, client engine.Client, bridge *admission.Bridge, sync *statussync.Synchronizer) *JobService {
	return &JobService{
		storage: storage,
		engine:  client,
		bridge:  bridge,
		sync:    sync,
		now:     utcNow,
		newId:   newId,
	}
}

// Trigger starts a run of an active workflow and records it as running.
func (s *JobService) Trigger(ctx context.Context, workflowId string) (*model.JobRun, error) {
	wf, err := s.storage.GetWorkflow(ctx, workflowId)
	if err != nil {
		return nil, err
	}
	if !wf.IsActive {
		return nil, &model.ValidationError{Message: "cannot trigger inactive workflow"}
	}
	remote, err := s.bridge.Trigger(ctx, wf.PipelineId(), map[string]any{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	run := &model.JobRun{
		Id:          s.newId(),
		WorkflowId:  wf.Id,
		EngineRunId: remote.Id,
		Status:      model.RUN_STATUS_RUNNING,
		TriggeredBy: model.TRIGGERED_BY_MANUAL,
		StartedAt:   &now,
		CreatedAt:   now,
	}
	if err := s.storage.CreateJobRun(ctx, run); err != nil {
		return nil, err
	}
	logger.Info("job run started", zap.String("workflow", wf.Id), zap.String("run", run.Id), zap.String("engineRun", run.EngineRunId))
	return run, nil
}

// GetJobRun returns the run refreshed from the engine when possible.
func (s *JobService) GetJobRun(ctx context.Context, id string) (*model.JobRun, error) {
	run, err := s.storage.GetJobRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.sync.Sync(ctx, run).Run, nil
}

func (s *JobService) ListJobRuns(ctx context.Context, filter persistence.JobRunFilter) (*JobRunList, error) {
	runs, total, err := s.storage.ListJobRuns(ctx, filter)
	if err != nil {
		return nil, err
	}
	synced := make([]*model.JobRun, 0, len(runs))
	for _, res := range s.sync.SyncAll(ctx, runs) {
		synced = append(synced, res.Run)
	}
	return &JobRunList{
		Total:    total,
		JobRuns:  synced,
		Page:     pageNumber(filter.Offset, filter.Limit),
		PageSize: filter.Limit,
	}, nil
}

func (s *JobService) TaskLogs(ctx context.Context, runId string, taskName string, attempt int) (*TaskLog, error) {
	run, err := s.storage.GetJobRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	if run.EngineRunId == "" {
		return nil, &model.ValidationError{Message: "job run has no engine run"}
	}
	if attempt < 1 {
		attempt = 1
	}
	text, err := s.engine.GetTaskLog(ctx, model.PipelineIdFor(run.WorkflowId), run.EngineRunId, taskName, attempt)
	if err != nil {
		logger.Error("error fetching task log", zap.String("run", run.Id), zap.String("task", taskName), zap.Error(err))
		return nil, err
	}
	return &TaskLog{JobRunId: run.Id, TaskName: taskName, Attempt: attempt, Logs: text}, nil
}
