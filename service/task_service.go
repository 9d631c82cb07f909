package service

import (
	"context"
	"time"

	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"go.uber.org/zap"
)

// TaskService manages tasks. Dependencies are only checked when the owning
// workflow is deployed.
type TaskService struct {
	storage persistence.Storage
	now     func() time.Time
	newId   func() string
}

func NewTaskService(storage persistence.Storage) *TaskService {
	return &TaskService{storage: storage, now: utcNow, newId: newId}
}

func (s *TaskService) CreateTask(ctx context.Context, spec model.TaskSpec) (*model.Task, error) {
	if spec.WorkflowId == "" {
		return nil, &model.ValidationError{Field: "workflow_id", Message: "is required"}
	}
	task, err := model.NewTask(s.newId(), spec, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.storage.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	logger.Info("task created", zap.String("workflow", task.WorkflowId), zap.String("task", task.Name))
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.storage.GetTask(ctx, id)
}

func (s *TaskService) UpdateTask(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error) {
	task, err := s.storage.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := update.Apply(task)
	if err != nil {
		return nil, err
	}
	if err := s.storage.UpdateTask(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	return s.storage.DeleteTask(ctx, id)
}
