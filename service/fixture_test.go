package service

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/dagforge/admission"
	"github.com/mohitkumar/dagforge/cache"
	"github.com/mohitkumar/dagforge/compiler"
	"github.com/mohitkumar/dagforge/engine/enginetest"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"github.com/mohitkumar/dagforge/persistence/memory"
	"github.com/mohitkumar/dagforge/statussync"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const artifactDir = "/dags"

type fixture struct {
	ctx        context.Context
	storage    persistence.Storage
	engine     *enginetest.Fake
	fs         afero.Fs
	compiler   *compiler.Compiler
	workflows  *WorkflowService
	tasks      *TaskService
	jobs       *JobService
	monitoring *MonitoringService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStorage(t, memory.NewMemoryStorage())
}

func newFixtureWithStorage(t *testing.T, storage persistence.Storage) *fixture {
	fake := enginetest.NewFake()
	fs := afero.NewMemMapFs()
	comp, err := compiler.NewCompiler(compiler.FORMAT_PYTHON, fs, artifactDir)
	require.NoError(t, err)
	bridge := admission.NewBridge(fake, admission.NewRetryPolicy(3, 0, nil))
	sync := statussync.NewSynchronizer(fake, storage, time.Second)
	return &fixture{
		ctx:        context.Background(),
		storage:    storage,
		engine:     fake,
		fs:         fs,
		compiler:   comp,
		workflows:  NewWorkflowService(storage, comp, bridge, cache.NewPauseStateCache(time.Minute)),
		tasks:      NewTaskService(storage),
		jobs:       NewJobService(storage, fake, bridge, sync),
		monitoring: NewMonitoringService(storage, fake),
	}
}

func (f *fixture) workflow(t *testing.T, name string, active bool) *model.Workflow {
	wf, err := f.workflows.CreateWorkflow(f.ctx, model.WorkflowSpec{Name: name, IsActive: &active})
	require.NoError(t, err)
	return wf
}

func (f *fixture) task(t *testing.T, workflowId string, name string, deps ...string) *model.Task {
	task, err := f.tasks.CreateTask(f.ctx, model.TaskSpec{
		WorkflowId:   workflowId,
		Name:         name,
		Source:       "print('" + name + "')",
		Dependencies: deps,
	})
	require.NoError(t, err)
	return task
}
