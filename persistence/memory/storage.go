package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
)

var _ persistence.Storage = new(memoryStorage)

// memoryStorage keeps everything in process. It backs tests and the
// "memory" storage implementation.
type memoryStorage struct {
	mu        sync.RWMutex
	workflows map[string]model.Workflow
	tasks     map[string]model.Task
	runs      map[string]model.JobRun
}

func NewMemoryStorage() *memoryStorage {
	return &memoryStorage{
		workflows: make(map[string]model.Workflow),
		tasks:     make(map[string]model.Task),
		runs:      make(map[string]model.JobRun),
	}
}

func (m *memoryStorage) CreateWorkflow(ctx context.Context, wf *model.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.workflows {
		if existing.Name == wf.Name {
			return persistence.AlreadyExistsError{Kind: persistence.KIND_WORKFLOW, Name: wf.Name}
		}
	}
	m.workflows[wf.Id] = *wf
	return nil
}

func (m *memoryStorage) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: id}
	}
	return &wf, nil
}

func (m *memoryStorage) sortedWorkflows() []*model.Workflow {
	out := make([]*model.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		c := wf
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Id < out[j].Id
	})
	return out
}

func (m *memoryStorage) ListWorkflows(ctx context.Context, offset int, limit int) ([]*model.Workflow, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.sortedWorkflows()
	return persistence.Page(all, offset, limit), len(all), nil
}

func (m *memoryStorage) ListActiveWorkflows(ctx context.Context) ([]*model.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Workflow, 0)
	for _, wf := range m.sortedWorkflows() {
		if wf.IsActive {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (m *memoryStorage) UpdateWorkflow(ctx context.Context, wf *model.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[wf.Id]; !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: wf.Id}
	}
	for id, existing := range m.workflows {
		if id != wf.Id && existing.Name == wf.Name {
			return persistence.AlreadyExistsError{Kind: persistence.KIND_WORKFLOW, Name: wf.Name}
		}
	}
	m.workflows[wf.Id] = *wf
	return nil
}

func (m *memoryStorage) DeleteWorkflow(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: id}
	}
	delete(m.workflows, id)
	for tid, t := range m.tasks {
		if t.WorkflowId == id {
			delete(m.tasks, tid)
		}
	}
	for rid, r := range m.runs {
		if r.WorkflowId == id {
			delete(m.runs, rid)
		}
	}
	return nil
}

func (m *memoryStorage) CountWorkflows(ctx context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := 0
	for _, wf := range m.workflows {
		if wf.IsActive {
			active++
		}
	}
	return len(m.workflows), active, nil
}

func (m *memoryStorage) CreateTask(ctx context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[task.WorkflowId]; !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: task.WorkflowId}
	}
	for _, existing := range m.tasks {
		if existing.WorkflowId == task.WorkflowId && existing.Name == task.Name {
			return persistence.AlreadyExistsError{Kind: persistence.KIND_TASK, Name: task.Name}
		}
	}
	m.tasks[task.Id] = *task
	return nil
}

func (m *memoryStorage) GetTask(ctx context.Context, id string) (*model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: persistence.KIND_TASK, Id: id}
	}
	return &t, nil
}

func (m *memoryStorage) ListTasks(ctx context.Context, workflowId string) ([]*model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Task, 0)
	for _, t := range m.tasks {
		if t.WorkflowId == workflowId {
			c := t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memoryStorage) UpdateTask(ctx context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.Id]; !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_TASK, Id: task.Id}
	}
	for id, existing := range m.tasks {
		if id != task.Id && existing.WorkflowId == task.WorkflowId && existing.Name == task.Name {
			return persistence.AlreadyExistsError{Kind: persistence.KIND_TASK, Name: task.Name}
		}
	}
	m.tasks[task.Id] = *task
	return nil
}

func (m *memoryStorage) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_TASK, Id: id}
	}
	delete(m.tasks, id)
	return nil
}

func (m *memoryStorage) CreateJobRun(ctx context.Context, run *model.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[run.WorkflowId]; !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_WORKFLOW, Id: run.WorkflowId}
	}
	if m.engineRunTaken(run) {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_JOB_RUN, Name: run.EngineRunId}
	}
	m.runs[run.Id] = *run.Clone()
	return nil
}

// engineRunTaken reports whether another run already holds run's engine run
// id. Callers hold the lock.
func (m *memoryStorage) engineRunTaken(run *model.JobRun) bool {
	if run.EngineRunId == "" {
		return false
	}
	for id, existing := range m.runs {
		if id != run.Id && existing.EngineRunId == run.EngineRunId {
			return true
		}
	}
	return false
}

func (m *memoryStorage) GetJobRun(ctx context.Context, id string) (*model.JobRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: persistence.KIND_JOB_RUN, Id: id}
	}
	return r.Clone(), nil
}

func (m *memoryStorage) ListJobRuns(ctx context.Context, filter persistence.JobRunFilter) ([]*model.JobRun, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.JobRun, 0)
	for _, r := range m.runs {
		if filter.WorkflowId != "" && r.WorkflowId != filter.WorkflowId {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Id > out[j].Id
	})
	return persistence.Page(out, filter.Offset, filter.Limit), len(out), nil
}

func (m *memoryStorage) UpdateJobRun(ctx context.Context, run *model.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.Id]; !ok {
		return persistence.NotFoundError{Kind: persistence.KIND_JOB_RUN, Id: run.Id}
	}
	if m.engineRunTaken(run) {
		return persistence.AlreadyExistsError{Kind: persistence.KIND_JOB_RUN, Name: run.EngineRunId}
	}
	m.runs[run.Id] = *run.Clone()
	return nil
}

func (m *memoryStorage) CountJobRuns(ctx context.Context, since time.Time) (map[model.RunStatus]int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byStatus := make(map[model.RunStatus]int)
	recent := 0
	for _, r := range m.runs {
		byStatus[r.Status]++
		if !r.CreatedAt.Before(since) {
			recent++
		}
	}
	return byStatus, recent, nil
}

func (m *memoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *memoryStorage) Close() error {
	return nil
}
