// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/mohitkumar/dagforge/engine"
)

type Fake struct {
	mu        sync.Mutex
	pipelines map[string]*engine.Pipeline
	runs      map[string]*engine.Run
	logs      map[string]string
	hidden    map[string]int
	failures  map[string]error
	healthy   bool
	runSeq    int
	calls     []string
}

var _ engine.Client = new(Fake)

func NewFake() *Fake {
	return &Fake{
		pipelines: make(map[string]*engine.Pipeline),
		runs:      make(map[string]*engine.Run),
		logs:      make(map[string]string),
		hidden:    make(map[string]int),
		failures:  make(map[string]error),
		healthy:   true,
	}
}

// AddPipeline registers a pipeline the engine already knows about.
func (f *Fake) AddPipeline(pipelineId string, paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipelines[pipelineId] = &engine.Pipeline{Id: pipelineId, IsPaused: paused, IsActive: true}
}

// DiscoverAfter makes the pipeline answer "not found" to the next n lookups
// before it appears, paused.
func (f *Fake) DiscoverAfter(pipelineId string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden[pipelineId] = n
}

// Fail makes every call of the given operation return err.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

func (f *Fake) SetHealthy(healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = healthy
}

// SetRun overwrites the engine-side state of a run.
func (f *Fake) SetRun(pipelineId string, run engine.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.PipelineId = pipelineId
	f.runs[runKey(pipelineId, run.Id)] = &run
}

func (f *Fake) SetLog(pipelineId, runId, taskId string, attempt int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[logKey(pipelineId, runId, taskId, attempt)] = text
}

func (f *Fake) Pipeline(pipelineId string) (engine.Pipeline, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pipelines[pipelineId]
	if !ok {
		return engine.Pipeline{}, false
	}
	return *p, true
}

// Calls returns the operations seen so far, formatted as "op:pipeline".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) CallCount(op string, pipelineId string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op+":"+pipelineId {
			n++
		}
	}
	return n
}

func (f *Fake) lookup(op string, pipelineId string) (*engine.Pipeline, error) {
	f.calls = append(f.calls, op+":"+pipelineId)
	if err := f.failures[op]; err != nil {
		return nil, err
	}
	if n, ok := f.hidden[pipelineId]; ok {
		if n > 0 {
			f.hidden[pipelineId] = n - 1
			return nil, notFound(op)
		}
		delete(f.hidden, pipelineId)
		f.pipelines[pipelineId] = &engine.Pipeline{Id: pipelineId, IsPaused: true, IsActive: true}
	}
	p, ok := f.pipelines[pipelineId]
	if !ok {
		return nil, notFound(op)
	}
	return p, nil
}

func (f *Fake) GetPipeline(ctx context.Context, pipelineId string) (*engine.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.lookup("get_pipeline", pipelineId)
	if err != nil {
		return nil, err
	}
	c := *p
	return &c, nil
}

func (f *Fake) SetPaused(ctx context.Context, pipelineId string, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.lookup("set_paused", pipelineId)
	if err != nil {
		return err
	}
	p.IsPaused = paused
	return nil
}

func (f *Fake) TriggerRun(ctx context.Context, pipelineId string, conf map[string]any) (*engine.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup("trigger_run", pipelineId); err != nil {
		return nil, err
	}
	f.runSeq++
	run := &engine.Run{Id: fmt.Sprintf("manual__%d", f.runSeq), PipelineId: pipelineId, State: "queued"}
	f.runs[runKey(pipelineId, run.Id)] = run
	c := *run
	return &c, nil
}

func (f *Fake) GetRun(ctx context.Context, pipelineId string, runId string) (*engine.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get_run:"+pipelineId)
	if err := f.failures["get_run"]; err != nil {
		return nil, err
	}
	run, ok := f.runs[runKey(pipelineId, runId)]
	if !ok {
		return nil, notFound("get_run")
	}
	c := *run
	return &c, nil
}

func (f *Fake) GetTaskLog(ctx context.Context, pipelineId string, runId string, taskId string, attempt int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get_task_log:"+pipelineId)
	if err := f.failures["get_task_log"]; err != nil {
		return "", err
	}
	text, ok := f.logs[logKey(pipelineId, runId, taskId, attempt)]
	if !ok {
		return "", notFound("get_task_log")
	}
	return text, nil
}

func (f *Fake) Health(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

func notFound(op string) error {
	return &engine.Error{Op: op, StatusCode: http.StatusNotFound, Message: "not found"}
}

func runKey(pipelineId, runId string) string {
	return pipelineId + "/" + runId
}

func logKey(pipelineId, runId, taskId string, attempt int) string {
	return fmt.Sprintf("%s/%s/%s/%d", pipelineId, runId, taskId, attempt)
}
