package model

import (
	"encoding/json"
	"strings"
	"time"
)

type ExecutionMode string

const EXECUTION_MODE_INLINE ExecutionMode = "inline"
const EXECUTION_MODE_GIT ExecutionMode = "git"

const DEFAULT_IMAGE string = "python:3.9-slim"
const DEFAULT_GIT_BRANCH string = "main"
const DEFAULT_RETRY_DELAY_SECONDS int = 300

// Execution describes how a task's code is obtained. It is either an
// InlineExecution or a GitExecution.
type Execution interface {
	Mode() ExecutionMode
}

type InlineExecution struct {
	Source string
}

func (InlineExecution) Mode() ExecutionMode {
	return EXECUTION_MODE_INLINE
}

type GitExecution struct {
	Repository string
	Branch     string
	Revision   string
	ScriptPath string
	Callable   string
}

func (GitExecution) Mode() ExecutionMode {
	return EXECUTION_MODE_GIT
}

// TaskSpec is the flat wire form of a task.
type TaskSpec struct {
	WorkflowId    string         `json:"workflow_id,omitempty" yaml:"-"`
	Name          string         `json:"name" yaml:"name" validate:"required,max=255"`
	ExecutionMode ExecutionMode  `json:"execution_mode,omitempty" yaml:"execution_mode,omitempty"`
	Source        string         `json:"source,omitempty" yaml:"source,omitempty"`
	GitRepository string         `json:"git_repository,omitempty" yaml:"git_repository,omitempty" validate:"max=500"`
	GitBranch     string         `json:"git_branch,omitempty" yaml:"git_branch,omitempty" validate:"max=255"`
	GitRevision   string         `json:"git_revision,omitempty" yaml:"git_revision,omitempty" validate:"max=40"`
	ScriptPath    string         `json:"script_path,omitempty" yaml:"script_path,omitempty" validate:"max=500"`
	Callable      string         `json:"callable,omitempty" yaml:"callable,omitempty" validate:"max=255"`
	Image         string         `json:"image,omitempty" yaml:"image,omitempty" validate:"max=255"`
	Params        map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Dependencies  []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	RetryCount    *int           `json:"retry_count,omitempty" yaml:"retry_count,omitempty" validate:"omitempty,min=0,max=10"`
	RetryDelay    *int           `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty" validate:"omitempty,min=0"`
}

func (s TaskSpec) hasGitFields() bool {
	return s.GitRepository != "" || s.GitBranch != "" || s.GitRevision != "" || s.ScriptPath != "" || s.Callable != ""
}

// NewExecution builds the execution variant from the flat form. Exactly one
// mode's fields may be populated.
func NewExecution(spec TaskSpec) (Execution, error) {
	mode := spec.ExecutionMode
	if mode == "" {
		mode = EXECUTION_MODE_INLINE
	}
	switch mode {
	case EXECUTION_MODE_INLINE:
		if strings.TrimSpace(spec.Source) == "" {
			return nil, &ValidationError{Field: "source", Message: "is required for inline execution"}
		}
		if spec.hasGitFields() {
			return nil, &ValidationError{Field: "execution_mode", Message: "inline execution must not set git fields"}
		}
		return InlineExecution{Source: spec.Source}, nil
	case EXECUTION_MODE_GIT:
		if spec.Source != "" {
			return nil, &ValidationError{Field: "source", Message: "must be empty for git execution"}
		}
		if strings.TrimSpace(spec.GitRepository) == "" {
			return nil, &ValidationError{Field: "git_repository", Message: "is required for git execution"}
		}
		if strings.TrimSpace(spec.ScriptPath) == "" {
			return nil, &ValidationError{Field: "script_path", Message: "is required for git execution"}
		}
		if strings.TrimSpace(spec.Callable) == "" {
			return nil, &ValidationError{Field: "callable", Message: "is required for git execution"}
		}
		branch := spec.GitBranch
		if branch == "" {
			branch = DEFAULT_GIT_BRANCH
		}
		return GitExecution{
			Repository: spec.GitRepository,
			Branch:     branch,
			Revision:   spec.GitRevision,
			ScriptPath: spec.ScriptPath,
			Callable:   spec.Callable,
		}, nil
	}
	return nil, &ValidationError{Field: "execution_mode", Message: "must be one of [inline git]"}
}

type Task struct {
	Id                string
	WorkflowId        string
	Name              string
	Execution         Execution
	Image             string
	Params            map[string]any
	Dependencies      []string
	RetryCount        int
	RetryDelaySeconds int
	CreatedAt         time.Time
}

func NewTask(id string, spec TaskSpec, now time.Time) (*Task, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if err := validateStruct(spec); err != nil {
		return nil, err
	}
	exec, err := NewExecution(spec)
	if err != nil {
		return nil, err
	}
	task := &Task{
		Id:                id,
		WorkflowId:        spec.WorkflowId,
		Name:              spec.Name,
		Execution:         exec,
		Image:             spec.Image,
		Params:            spec.Params,
		Dependencies:      spec.Dependencies,
		RetryDelaySeconds: DEFAULT_RETRY_DELAY_SECONDS,
		CreatedAt:         now,
	}
	if task.Image == "" {
		task.Image = DEFAULT_IMAGE
	}
	if task.Params == nil {
		task.Params = map[string]any{}
	}
	if task.Dependencies == nil {
		task.Dependencies = []string{}
	}
	if spec.RetryCount != nil {
		task.RetryCount = *spec.RetryCount
	}
	if spec.RetryDelay != nil {
		task.RetryDelaySeconds = *spec.RetryDelay
	}
	return task, nil
}

// Spec flattens the task back into its wire form.
func (t *Task) Spec() TaskSpec {
	retryCount := t.RetryCount
	retryDelay := t.RetryDelaySeconds
	spec := TaskSpec{
		WorkflowId:   t.WorkflowId,
		Name:         t.Name,
		Image:        t.Image,
		Params:       t.Params,
		Dependencies: t.Dependencies,
		RetryCount:   &retryCount,
		RetryDelay:   &retryDelay,
	}
	switch exec := t.Execution.(type) {
	case InlineExecution:
		spec.ExecutionMode = EXECUTION_MODE_INLINE
		spec.Source = exec.Source
	case GitExecution:
		spec.ExecutionMode = EXECUTION_MODE_GIT
		spec.GitRepository = exec.Repository
		spec.GitBranch = exec.Branch
		spec.GitRevision = exec.Revision
		spec.ScriptPath = exec.ScriptPath
		spec.Callable = exec.Callable
	}
	return spec
}

type taskDocument struct {
	Id string `json:"id"`
	TaskSpec
	CreatedAt time.Time `json:"created_at"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskDocument{Id: t.Id, TaskSpec: t.Spec(), CreatedAt: t.CreatedAt})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var doc taskDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	task, err := NewTask(doc.Id, doc.TaskSpec, doc.CreatedAt)
	if err != nil {
		return err
	}
	*t = *task
	return nil
}

// TaskUpdate carries a partial change to a task. Nil fields are left as they are.
type TaskUpdate struct {
	Name          *string        `json:"name,omitempty"`
	ExecutionMode *ExecutionMode `json:"execution_mode,omitempty"`
	Source        *string        `json:"source,omitempty"`
	GitRepository *string        `json:"git_repository,omitempty"`
	GitBranch     *string        `json:"git_branch,omitempty"`
	GitRevision   *string        `json:"git_revision,omitempty"`
	ScriptPath    *string        `json:"script_path,omitempty"`
	Callable      *string        `json:"callable,omitempty"`
	Image         *string        `json:"image,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
	Dependencies  *[]string      `json:"dependencies,omitempty"`
	RetryCount    *int           `json:"retry_count,omitempty"`
	RetryDelay    *int           `json:"retry_delay,omitempty"`
}

// Apply returns a copy of t with the update merged in and re-validated.
// Switching execution mode discards the fields of the previous mode.
func (u TaskUpdate) Apply(t *Task) (*Task, error) {
	spec := t.Spec()
	if u.ExecutionMode != nil && *u.ExecutionMode != spec.ExecutionMode {
		spec.ExecutionMode = *u.ExecutionMode
		spec.Source = ""
		spec.GitRepository = ""
		spec.GitBranch = ""
		spec.GitRevision = ""
		spec.ScriptPath = ""
		spec.Callable = ""
	}
	setString(&spec.Name, u.Name)
	setString(&spec.Source, u.Source)
	setString(&spec.GitRepository, u.GitRepository)
	setString(&spec.GitBranch, u.GitBranch)
	setString(&spec.GitRevision, u.GitRevision)
	setString(&spec.ScriptPath, u.ScriptPath)
	setString(&spec.Callable, u.Callable)
	setString(&spec.Image, u.Image)
	if u.Params != nil {
		spec.Params = u.Params
	}
	if u.Dependencies != nil {
		spec.Dependencies = *u.Dependencies
	}
	if u.RetryCount != nil {
		spec.RetryCount = u.RetryCount
	}
	if u.RetryDelay != nil {
		spec.RetryDelay = u.RetryDelay
	}
	spec.WorkflowId = t.WorkflowId
	return NewTask(t.Id, spec, t.CreatedAt)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
