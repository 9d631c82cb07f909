package compiler

import (
	"fmt"

	"github.com/mohitkumar/dagforge/graph"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type Format string

const FORMAT_PYTHON Format = "python"
const FORMAT_YAML Format = "yaml"

// CompilationError reports a workflow that could not be turned into an
// artifact.
type CompilationError struct {
	WorkflowId string
	Reason     string
	Err        error
}

func (e *CompilationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compiling workflow %s: %s: %v", e.WorkflowId, e.Reason, e.Err)
	}
	return fmt.Sprintf("compiling workflow %s: %s", e.WorkflowId, e.Reason)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

const reasonWriteArtifact = "writing artifact"

// InputError reports whether the workflow definition itself is at fault, as
// opposed to the artifact store.
func (e *CompilationError) InputError() bool {
	return e.Reason != reasonWriteArtifact
}

type Renderer interface {
	Extension() string
	Render(p *Pipeline) ([]byte, error)
}

func NewRenderer(format Format) (Renderer, error) {
	switch format {
	case FORMAT_PYTHON, "":
		return pythonRenderer{}, nil
	case FORMAT_YAML:
		return yamlRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown artifact format %q", format)
}

type Compiler struct {
	renderer Renderer
	store    *ArtifactStore
}

func NewCompiler(format Format, fs afero.Fs, dir string) (*Compiler, error) {
	renderer, err := NewRenderer(format)
	if err != nil {
		return nil, err
	}
	return &Compiler{
		renderer: renderer,
		store:    NewArtifactStore(fs, dir, renderer.Extension()),
	}, nil
}

// Compile validates dependencies and renders the artifact without touching
// the store. The same inputs always produce the same bytes.
func (c *Compiler) Compile(wf *model.Workflow, tasks []*model.Task) ([]byte, error) {
	if err := graph.ValidateDependencies(tasks); err != nil {
		return nil, err
	}
	p, err := Build(wf, tasks)
	if err != nil {
		return nil, err
	}
	return c.renderer.Render(p)
}

// Deploy compiles the workflow and replaces its artifact. Nothing is written
// when compilation fails.
func (c *Compiler) Deploy(wf *model.Workflow, tasks []*model.Task) (string, error) {
	data, err := c.Compile(wf, tasks)
	if err != nil {
		return "", err
	}
	path, err := c.store.Write(wf.PipelineId(), data)
	if err != nil {
		logger.Error("error writing pipeline artifact", zap.String("workflow", wf.Id), zap.Error(err))
		return "", &CompilationError{WorkflowId: wf.Id, Reason: reasonWriteArtifact, Err: err}
	}
	logger.Info("pipeline artifact written", zap.String("workflow", wf.Id), zap.String("path", path), zap.Int("steps", len(tasks)))
	return path, nil
}

// Remove deletes the workflow's artifact and reports whether one existed.
func (c *Compiler) Remove(workflowId string) (bool, error) {
	removed, err := c.store.Remove(model.PipelineIdFor(workflowId))
	if err != nil {
		logger.Error("error removing pipeline artifact", zap.String("workflow", workflowId), zap.Error(err))
		return false, err
	}
	return removed, nil
}

func (c *Compiler) Exists(workflowId string) (bool, error) {
	return c.store.Exists(model.PipelineIdFor(workflowId))
}

func (c *Compiler) ArtifactPath(workflowId string) string {
	return c.store.Path(model.PipelineIdFor(workflowId))
}
