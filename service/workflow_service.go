package service

import (
	"context"
	"errors"
	"time"

	"github.com/mohitkumar/dagforge/admission"
	"github.com/mohitkumar/dagforge/cache"
	"github.com/mohitkumar/dagforge/compiler"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/manifest"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"go.uber.org/zap"
)

const DEPLOY_NOTE string = "the engine picks up new pipelines on its next scan"

type WorkflowView struct {
	*model.Workflow
	// IsPausedInEngine is nil when the engine could not be asked.
	IsPausedInEngine *bool `json:"is_paused_in_engine"`
}

type WorkflowList struct {
	Total     int               `json:"total"`
	Workflows []*model.Workflow `json:"workflows"`
	Page      int               `json:"page"`
	PageSize  int               `json:"page_size"`
}

type TaskList struct {
	WorkflowId string        `json:"workflow_id"`
	Tasks      []*model.Task `json:"tasks"`
}

type Deployment struct {
	Message      string `json:"message"`
	PipelineId   string `json:"pipeline_id"`
	ArtifactPath string `json:"artifact_path"`
	Unpaused     bool   `json:"unpaused"`
	Note         string `json:"note"`
	Warning      string `json:"warning,omitempty"`
}

type ImportResult struct {
	Workflow *model.Workflow `json:"workflow"`
	Tasks    []*model.Task   `json:"tasks"`
}

type ManifestValidation struct {
	Valid        bool     `json:"valid"`
	Errors       []string `json:"errors,omitempty"`
	WorkflowName string   `json:"workflow_name,omitempty"`
	TaskCount    int      `json:"task_count"`
}

type WorkflowService struct {
	storage  persistence.Storage
	compiler *compiler.Compiler
	bridge   *admission.Bridge
	paused   *cache.PauseStateCache
	now      func() time.Time
	newId    func() string
}

func NewWorkflowService(storage persistence.Storage, compiler *compiler.Compiler, bridge *admission.Bridge, paused *cache.PauseStateCache) *WorkflowService {
	return &WorkflowService{
		storage:  storage,
		compiler: compiler,
		bridge:   bridge,
		paused:   paused,
		now:      utcNow,
		newId:    newId,
	}
}

func (s *WorkflowService) CreateWorkflow(ctx context.Context, spec model.WorkflowSpec) (*model.Workflow, error) {
	wf, err := model.NewWorkflow(s.newId(), spec, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.storage.CreateWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	logger.Info("workflow created", zap.String("workflow", wf.Id), zap.String("name", wf.Name))
	return wf, nil
}

// GetWorkflow returns the workflow together with its pause state on the
// engine. Engine failures leave the pause state unknown.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (*WorkflowView, error) {
	wf, err := s.storage.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &WorkflowView{Workflow: wf}
	pipelineId := wf.PipelineId()
	if paused, found := s.paused.GetPaused(pipelineId); found {
		view.IsPausedInEngine = &paused
		return view, nil
	}
	paused, err := s.bridge.IsPaused(ctx, pipelineId)
	if err != nil {
		logger.Debug("pause state unavailable", zap.String("pipeline", pipelineId), zap.Error(err))
		return view, nil
	}
	s.paused.SavePaused(pipelineId, paused)
	view.IsPausedInEngine = &paused
	return view, nil
}

func (s *WorkflowService) ListWorkflows(ctx context.Context, offset int, limit int) (*WorkflowList, error) {
	workflows, total, err := s.storage.ListWorkflows(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &WorkflowList{
		Total:     total,
		Workflows: workflows,
		Page:      pageNumber(offset, limit),
		PageSize:  limit,
	}, nil
}

func (s *WorkflowService) UpdateWorkflow(ctx context.Context, id string, update model.WorkflowUpdate) (*model.Workflow, error) {
	wf, err := s.storage.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := update.Apply(wf, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.storage.UpdateWorkflow(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteWorkflow removes the artifact first, then the workflow with its tasks
// and runs.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, id string) error {
	wf, err := s.storage.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	removed, err := s.compiler.Remove(wf.Id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteWorkflow(ctx, wf.Id); err != nil {
		return err
	}
	s.paused.Invalidate(wf.PipelineId())
	logger.Info("workflow deleted", zap.String("workflow", wf.Id), zap.Bool("artifactRemoved", removed))
	return nil
}

// DeployWorkflow compiles the workflow into its artifact and asks the engine
// to unpause the pipeline. The deployment succeeds even when the unpause
// does not.
func (s *WorkflowService) DeployWorkflow(ctx context.Context, id string) (*Deployment, error) {
	wf, err := s.storage.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.storage.ListTasks(ctx, wf.Id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, &model.ValidationError{Field: "tasks", Message: "cannot deploy workflow without tasks"}
	}
	path, err := s.compiler.Deploy(wf, tasks)
	if err != nil {
		return nil, err
	}
	pipelineId := wf.PipelineId()
	s.paused.Invalidate(pipelineId)
	d := &Deployment{
		Message:      "workflow deployed",
		PipelineId:   pipelineId,
		ArtifactPath: path,
		Note:         DEPLOY_NOTE,
	}
	d.Unpaused = s.bridge.Unpause(ctx, pipelineId)
	if !d.Unpaused {
		d.Warning = "pipeline could not be unpaused yet; unpause it once the engine has picked it up"
	}
	return d, nil
}

func (s *WorkflowService) PauseWorkflow(ctx context.Context, id string) error {
	wf, err := s.storage.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	pipelineId := wf.PipelineId()
	s.paused.Invalidate(pipelineId)
	if err := s.bridge.Pause(ctx, pipelineId); err != nil {
		return &EngineFailureError{Action: "pause", PipelineId: pipelineId, Err: err}
	}
	s.paused.SavePaused(pipelineId, true)
	return nil
}

func (s *WorkflowService) UnpauseWorkflow(ctx context.Context, id string) error {
	wf, err := s.storage.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	pipelineId := wf.PipelineId()
	s.paused.Invalidate(pipelineId)
	if _, err := s.bridge.TryUnpause(ctx, pipelineId); err != nil {
		logger.Warn("could not unpause pipeline", zap.String("pipeline", pipelineId), zap.Error(err))
		return &EngineFailureError{Action: "unpause", PipelineId: pipelineId, Err: err}
	}
	s.paused.SavePaused(pipelineId, false)
	return nil
}

// UnpauseAllActive unpauses the pipeline of every active workflow.
func (s *WorkflowService) UnpauseAllActive(ctx context.Context) (*admission.BulkUnpauseResult, error) {
	workflows, err := s.storage.ListActiveWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	res := s.bridge.UnpauseAll(ctx, workflows)
	for _, outcome := range res.Results {
		s.paused.Invalidate(outcome.PipelineId)
	}
	return res, nil
}

func (s *WorkflowService) ListTasks(ctx context.Context, id string) (*TaskList, error) {
	if _, err := s.storage.GetWorkflow(ctx, id); err != nil {
		return nil, err
	}
	tasks, err := s.storage.ListTasks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TaskList{WorkflowId: id, Tasks: tasks}, nil
}

// ExportWorkflow renders the workflow as a manifest. The second value is a
// file name suitable for a download.
func (s *WorkflowService) ExportWorkflow(ctx context.Context, id string) ([]byte, string, error) {
	wf, err := s.storage.GetWorkflow(ctx, id)
	if err != nil {
		return nil, "", err
	}
	tasks, err := s.storage.ListTasks(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err := manifest.Export(wf, tasks)
	if err != nil {
		return nil, "", err
	}
	return data, wf.Name + ".yaml", nil
}

// ImportWorkflow creates a workflow and its tasks from a manifest. When a
// task cannot be created the workflow is removed again.
func (s *WorkflowService) ImportWorkflow(ctx context.Context, data []byte) (*ImportResult, error) {
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	wf, err := s.CreateWorkflow(ctx, m.Workflow)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{Workflow: wf, Tasks: make([]*model.Task, 0, len(m.Tasks))}
	now := s.now()
	for i, spec := range m.Tasks {
		spec.WorkflowId = wf.Id
		// keep manifest order when tasks are listed by creation time
		task, err := model.NewTask(s.newId(), spec, now.Add(time.Duration(i)*time.Microsecond))
		if err == nil {
			err = s.storage.CreateTask(ctx, task)
		}
		if err != nil {
			s.discardImport(ctx, wf)
			return nil, err
		}
		res.Tasks = append(res.Tasks, task)
	}
	logger.Info("workflow imported", zap.String("workflow", wf.Id), zap.Int("tasks", len(res.Tasks)))
	return res, nil
}

func (s *WorkflowService) discardImport(ctx context.Context, wf *model.Workflow) {
	if err := s.storage.DeleteWorkflow(ctx, wf.Id); err != nil && !errors.As(err, &persistence.NotFoundError{}) {
		logger.Error("error discarding partial import", zap.String("workflow", wf.Id), zap.Error(err))
	}
}

func (s *WorkflowService) ValidateManifest(data []byte) *ManifestValidation {
	m, err := manifest.Parse(data)
	if err != nil {
		var invalid *manifest.InvalidManifestError
		if errors.As(err, &invalid) {
			return &ManifestValidation{Valid: false, Errors: invalid.Problems}
		}
		return &ManifestValidation{Valid: false, Errors: []string{err.Error()}}
	}
	return &ManifestValidation{Valid: true, WorkflowName: m.Workflow.Name, TaskCount: len(m.Tasks)}
}
