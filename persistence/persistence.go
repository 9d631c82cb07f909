package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/mohitkumar/dagforge/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type NotFoundError struct {
	Kind string
	Id   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}

type AlreadyExistsError struct {
	Kind string
	Name string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with name '%s' already exists", e.Kind, e.Name)
}

const KIND_WORKFLOW string = "workflow"
const KIND_TASK string = "task"
const KIND_JOB_RUN string = "job run"

type WorkflowDao interface {
	// CreateWorkflow fails with AlreadyExistsError when the name is taken.
	CreateWorkflow(ctx context.Context, wf *model.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*model.Workflow, error)
	ListWorkflows(ctx context.Context, offset int, limit int) ([]*model.Workflow, int, error)
	ListActiveWorkflows(ctx context.Context) ([]*model.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *model.Workflow) error
	// DeleteWorkflow removes the workflow together with its tasks and runs.
	DeleteWorkflow(ctx context.Context, id string) error
	CountWorkflows(ctx context.Context) (total int, active int, err error)
}

type TaskDao interface {
	// CreateTask fails with AlreadyExistsError when the workflow already has
	// a task with the same name.
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// ListTasks returns the tasks of a workflow ordered by creation time.
	ListTasks(ctx context.Context, workflowId string) ([]*model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type JobRunFilter struct {
	WorkflowId string
	Status     model.RunStatus
	Offset     int
	Limit      int
}

type JobRunDao interface {
	// CreateJobRun and UpdateJobRun fail with AlreadyExistsError when another
	// run already holds the engine run id.
	CreateJobRun(ctx context.Context, run *model.JobRun) error
	GetJobRun(ctx context.Context, id string) (*model.JobRun, error)
	// ListJobRuns returns matching runs newest first and the total match count.
	ListJobRuns(ctx context.Context, filter JobRunFilter) ([]*model.JobRun, int, error)
	UpdateJobRun(ctx context.Context, run *model.JobRun) error
	CountJobRuns(ctx context.Context, since time.Time) (byStatus map[model.RunStatus]int, recent int, err error)
}

type Storage interface {
	WorkflowDao
	TaskDao
	JobRunDao
	Ping(ctx context.Context) error
	Close() error
}
