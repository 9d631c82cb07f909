package service

import (
	"testing"

	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskService(t *testing.T) {
	f := newFixture(t)
	wf := f.workflow(t, "W", true)

	_, err := f.tasks.CreateTask(f.ctx, model.TaskSpec{Name: "orphan", Source: "x"})
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "workflow_id", validation.Field)

	_, err = f.tasks.CreateTask(f.ctx, model.TaskSpec{WorkflowId: "missing", Name: "a", Source: "x"})
	assert.ErrorAs(t, err, &persistence.NotFoundError{})

	_, err = f.tasks.CreateTask(f.ctx, model.TaskSpec{
		WorkflowId: wf.Id,
		Name:       "both",
		Source:     "print(1)",
		ScriptPath: "job.py",
	})
	assert.ErrorAs(t, err, &validation)

	task := f.task(t, wf.Id, "A")
	assert.Equal(t, model.DEFAULT_IMAGE, task.Image)

	_, err = f.tasks.CreateTask(f.ctx, model.TaskSpec{WorkflowId: wf.Id, Name: "A", Source: "x"})
	assert.ErrorAs(t, err, &persistence.AlreadyExistsError{})

	git := model.EXECUTION_MODE_GIT
	repo := "https://example.com/jobs.git"
	path := "jobs/a.py"
	callable := "run"
	updated, err := f.tasks.UpdateTask(f.ctx, task.Id, model.TaskUpdate{
		ExecutionMode: &git,
		GitRepository: &repo,
		ScriptPath:    &path,
		Callable:      &callable,
	})
	require.NoError(t, err)
	assert.Equal(t, model.GitExecution{Repository: repo, Branch: model.DEFAULT_GIT_BRANCH, ScriptPath: path, Callable: callable}, updated.Execution)

	got, err := f.tasks.GetTask(f.ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, updated.Execution, got.Execution)

	require.NoError(t, f.tasks.DeleteTask(f.ctx, task.Id))
	assert.ErrorAs(t, f.tasks.DeleteTask(f.ctx, task.Id), &persistence.NotFoundError{})
}
