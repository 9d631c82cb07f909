// Package persistencetest holds the behaviour every persistence.Storage
// implementation must share.
package persistencetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"github.com/stretchr/testify/suite"
)

type StorageSuite struct {
	suite.Suite
	// NewStorage returns an empty store for every test.
	NewStorage func(t *testing.T) persistence.Storage

	store persistence.Storage
	ctx   context.Context
	base  time.Time
}

func (s *StorageSuite) SetupTest() {
	s.store = s.NewStorage(s.T())
	s.ctx = context.Background()
	s.base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *StorageSuite) workflow(id string, name string, offset int) *model.Workflow {
	at := s.base.Add(time.Duration(offset) * time.Minute)
	wf, err := model.NewWorkflow(id, model.WorkflowSpec{Name: name, Schedule: "@daily"}, at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateWorkflow(s.ctx, wf))
	return wf
}

func (s *StorageSuite) task(workflowId string, name string, offset int, deps ...string) *model.Task {
	at := s.base.Add(time.Duration(offset) * time.Minute)
	t, err := model.NewTask(fmt.Sprintf("%s-%s", workflowId, name), model.TaskSpec{
		WorkflowId:   workflowId,
		Name:         name,
		Source:       "print('" + name + "')",
		Dependencies: deps,
		Params:       map[string]any{"n": "1"},
	}, at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateTask(s.ctx, t))
	return t
}

func (s *StorageSuite) run(id string, workflowId string, status model.RunStatus, offset int) *model.JobRun {
	r := &model.JobRun{
		Id:          id,
		WorkflowId:  workflowId,
		Status:      status,
		TriggeredBy: model.TRIGGERED_BY_MANUAL,
		CreatedAt:   s.base.Add(time.Duration(offset) * time.Minute),
	}
	s.Require().NoError(s.store.CreateJobRun(s.ctx, r))
	return r
}

func (s *StorageSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func (s *StorageSuite) TestWorkflowLifecycle() {
	wf := s.workflow("wf-1", "etl", 0)

	got, err := s.store.GetWorkflow(s.ctx, "wf-1")
	s.Require().NoError(err)
	s.Equal("etl", got.Name)
	s.Equal("@daily", got.Schedule)
	s.True(got.IsActive)
	s.True(wf.CreatedAt.Equal(got.CreatedAt))

	dup, err := model.NewWorkflow("wf-2", model.WorkflowSpec{Name: "etl"}, s.base)
	s.Require().NoError(err)
	s.ErrorAs(s.store.CreateWorkflow(s.ctx, dup), &persistence.AlreadyExistsError{})

	name := "etl-renamed"
	inactive := false
	updated, err := model.WorkflowUpdate{Name: &name, IsActive: &inactive}.Apply(got, s.base.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateWorkflow(s.ctx, updated))

	got, err = s.store.GetWorkflow(s.ctx, "wf-1")
	s.Require().NoError(err)
	s.Equal("etl-renamed", got.Name)
	s.False(got.IsActive)

	s.Require().NoError(s.store.CreateWorkflow(s.ctx, dup))

	clash := *got
	clash.Name = "etl-renamed"
	clash.Id = dup.Id
	s.ErrorAs(s.store.UpdateWorkflow(s.ctx, &clash), &persistence.AlreadyExistsError{})

	_, err = s.store.GetWorkflow(s.ctx, "missing")
	s.ErrorAs(err, &persistence.NotFoundError{})
	s.ErrorAs(s.store.DeleteWorkflow(s.ctx, "missing"), &persistence.NotFoundError{})
}

func (s *StorageSuite) TestListWorkflows() {
	s.workflow("wf-a", "a", 0)
	b := s.workflow("wf-b", "b", 1)
	s.workflow("wf-c", "c", 2)

	page, total, err := s.store.ListWorkflows(s.ctx, 1, 1)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(page, 1)
	s.Equal("wf-b", page[0].Id)

	inactive := false
	updated, err := model.WorkflowUpdate{IsActive: &inactive}.Apply(b, s.base)
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateWorkflow(s.ctx, updated))

	active, err := s.store.ListActiveWorkflows(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal("wf-a", active[0].Id)
	s.Equal("wf-c", active[1].Id)

	all, total, err := s.store.ListWorkflows(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(all, 3)

	total, activeCount, err := s.store.CountWorkflows(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Equal(2, activeCount)
}

func (s *StorageSuite) TestTasks() {
	s.workflow("wf-1", "one", 0)
	s.workflow("wf-2", "two", 1)
	b := s.task("wf-1", "B", 1, "A")
	s.task("wf-1", "A", 0)
	s.task("wf-2", "A", 0)

	dup, err := model.NewTask("other", model.TaskSpec{WorkflowId: "wf-1", Name: "A", Source: "x"}, s.base)
	s.Require().NoError(err)
	s.ErrorAs(s.store.CreateTask(s.ctx, dup), &persistence.AlreadyExistsError{})

	orphan, err := model.NewTask("orphan", model.TaskSpec{WorkflowId: "nope", Name: "A", Source: "x"}, s.base)
	s.Require().NoError(err)
	s.ErrorAs(s.store.CreateTask(s.ctx, orphan), &persistence.NotFoundError{})

	tasks, err := s.store.ListTasks(s.ctx, "wf-1")
	s.Require().NoError(err)
	s.Require().Len(tasks, 2)
	s.Equal("A", tasks[0].Name)
	s.Equal("B", tasks[1].Name)
	s.Equal([]string{"A"}, tasks[1].Dependencies)
	s.Equal(model.InlineExecution{Source: "print('B')"}, tasks[1].Execution)

	image := "python:3.12"
	updated, err := model.TaskUpdate{Image: &image}.Apply(b)
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateTask(s.ctx, updated))
	got, err := s.store.GetTask(s.ctx, b.Id)
	s.Require().NoError(err)
	s.Equal("python:3.12", got.Image)

	clashName := "A"
	clash, err := model.TaskUpdate{Name: &clashName}.Apply(got)
	s.Require().NoError(err)
	s.ErrorAs(s.store.UpdateTask(s.ctx, clash), &persistence.AlreadyExistsError{})

	s.Require().NoError(s.store.DeleteTask(s.ctx, b.Id))
	_, err = s.store.GetTask(s.ctx, b.Id)
	s.ErrorAs(err, &persistence.NotFoundError{})
	s.ErrorAs(s.store.DeleteTask(s.ctx, b.Id), &persistence.NotFoundError{})

	s.task("wf-1", "B", 3)
}

func (s *StorageSuite) TestJobRuns() {
	s.workflow("wf-1", "one", 0)
	s.workflow("wf-2", "two", 1)
	first := s.run("run-1", "wf-1", model.RUN_STATUS_RUNNING, 0)
	s.run("run-2", "wf-1", model.RUN_STATUS_SUCCESS, 1)
	s.run("run-3", "wf-2", model.RUN_STATUS_FAILED, 2)

	orphan := &model.JobRun{Id: "orphan", WorkflowId: "nope", Status: model.RUN_STATUS_QUEUED, CreatedAt: s.base}
	s.ErrorAs(s.store.CreateJobRun(s.ctx, orphan), &persistence.NotFoundError{})

	runs, total, err := s.store.ListJobRuns(s.ctx, persistence.JobRunFilter{})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Equal([]string{"run-3", "run-2", "run-1"}, runIds(runs))

	runs, total, err = s.store.ListJobRuns(s.ctx, persistence.JobRunFilter{WorkflowId: "wf-1", Limit: 1})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal([]string{"run-2"}, runIds(runs))

	runs, _, err = s.store.ListJobRuns(s.ctx, persistence.JobRunFilter{Status: model.RUN_STATUS_RUNNING})
	s.Require().NoError(err)
	s.Equal([]string{"run-1"}, runIds(runs))

	started := s.base.Add(time.Minute)
	ended := s.base.Add(2 * time.Minute)
	first.EngineRunId = "manual__1"
	first.Status = model.RUN_STATUS_SUCCESS
	first.StartedAt = &started
	first.EndedAt = &ended
	first.Logs = map[string]any{"summary": "ok"}
	s.Require().NoError(s.store.UpdateJobRun(s.ctx, first))

	got, err := s.store.GetJobRun(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Equal("manual__1", got.EngineRunId)
	s.Equal(model.RUN_STATUS_SUCCESS, got.Status)
	s.Require().NotNil(got.StartedAt)
	s.True(started.Equal(*got.StartedAt))
	s.Require().NotNil(got.EndedAt)
	s.True(ended.Equal(*got.EndedAt))
	s.Equal("ok", got.Logs["summary"])

	missing := &model.JobRun{Id: "missing", WorkflowId: "wf-1", Status: model.RUN_STATUS_QUEUED}
	s.ErrorAs(s.store.UpdateJobRun(s.ctx, missing), &persistence.NotFoundError{})

	byStatus, recent, err := s.store.CountJobRuns(s.ctx, s.base.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(2, byStatus[model.RUN_STATUS_SUCCESS])
	s.Equal(1, byStatus[model.RUN_STATUS_FAILED])
	s.Equal(2, recent)
}

func (s *StorageSuite) TestEngineRunIdIsUnique() {
	s.workflow("wf-1", "one", 0)
	s.workflow("wf-2", "two", 1)
	first := &model.JobRun{Id: "run-1", WorkflowId: "wf-1", EngineRunId: "manual__1", Status: model.RUN_STATUS_RUNNING, TriggeredBy: model.TRIGGERED_BY_MANUAL, CreatedAt: s.base}
	s.Require().NoError(s.store.CreateJobRun(s.ctx, first))

	dup := &model.JobRun{Id: "run-2", WorkflowId: "wf-2", EngineRunId: "manual__1", Status: model.RUN_STATUS_RUNNING, TriggeredBy: model.TRIGGERED_BY_MANUAL, CreatedAt: s.base}
	s.ErrorAs(s.store.CreateJobRun(s.ctx, dup), &persistence.AlreadyExistsError{})
	_, err := s.store.GetJobRun(s.ctx, "run-2")
	s.ErrorAs(err, &persistence.NotFoundError{})

	first.Status = model.RUN_STATUS_SUCCESS
	s.Require().NoError(s.store.UpdateJobRun(s.ctx, first))

	second := s.run("run-3", "wf-2", model.RUN_STATUS_QUEUED, 1)
	second.EngineRunId = "manual__1"
	s.ErrorAs(s.store.UpdateJobRun(s.ctx, second), &persistence.AlreadyExistsError{})

	second.EngineRunId = "manual__2"
	s.Require().NoError(s.store.UpdateJobRun(s.ctx, second))

	s.Require().NoError(s.store.DeleteWorkflow(s.ctx, "wf-1"))
	reused := &model.JobRun{Id: "run-5", WorkflowId: "wf-2", EngineRunId: "manual__1", Status: model.RUN_STATUS_RUNNING, TriggeredBy: model.TRIGGERED_BY_MANUAL, CreatedAt: s.base}
	s.NoError(s.store.CreateJobRun(s.ctx, reused))
}

func (s *StorageSuite) TestDeleteWorkflowCascades() {
	s.workflow("wf-1", "one", 0)
	s.workflow("wf-2", "two", 1)
	a := s.task("wf-1", "A", 0)
	kept := s.task("wf-2", "A", 0)
	s.run("run-1", "wf-1", model.RUN_STATUS_SUCCESS, 0)
	s.run("run-2", "wf-2", model.RUN_STATUS_SUCCESS, 0)

	s.Require().NoError(s.store.DeleteWorkflow(s.ctx, "wf-1"))

	_, err := s.store.GetWorkflow(s.ctx, "wf-1")
	s.ErrorAs(err, &persistence.NotFoundError{})
	_, err = s.store.GetTask(s.ctx, a.Id)
	s.ErrorAs(err, &persistence.NotFoundError{})
	_, err = s.store.GetJobRun(s.ctx, "run-1")
	s.ErrorAs(err, &persistence.NotFoundError{})

	tasks, err := s.store.ListTasks(s.ctx, "wf-1")
	s.Require().NoError(err)
	s.Empty(tasks)
	runs, total, err := s.store.ListJobRuns(s.ctx, persistence.JobRunFilter{})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal([]string{"run-2"}, runIds(runs))

	_, err = s.store.GetTask(s.ctx, kept.Id)
	s.NoError(err)

	s.workflow("wf-3", "one", 2)
}

func runIds(runs []*model.JobRun) []string {
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.Id)
	}
	return ids
}
