// Package manifest reads and writes the portable YAML form of a workflow and
// its tasks.
package manifest

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mohitkumar/dagforge/graph"
	"github.com/mohitkumar/dagforge/model"
	"gopkg.in/yaml.v3"
)

const VERSION string = "1.0"

type Manifest struct {
	Version  string             `yaml:"version"`
	Workflow model.WorkflowSpec `yaml:"workflow"`
	Tasks    []model.TaskSpec   `yaml:"tasks"`
}

// document keeps sections as pointers so a missing section can be told apart
// from an empty one.
type document struct {
	Version  string              `yaml:"version"`
	Workflow *model.WorkflowSpec `yaml:"workflow"`
	Tasks    *[]model.TaskSpec   `yaml:"tasks"`
}

// InvalidManifestError lists every problem found in a manifest.
type InvalidManifestError struct {
	Problems []string
}

func (e *InvalidManifestError) Error() string {
	return "invalid manifest: " + strings.Join(e.Problems, "; ")
}

func Export(wf *model.Workflow, tasks []*model.Task) ([]byte, error) {
	active := wf.IsActive
	m := Manifest{
		Version: VERSION,
		Workflow: model.WorkflowSpec{
			Name:        wf.Name,
			Description: wf.Description,
			Schedule:    wf.Schedule,
			IsActive:    &active,
		},
		Tasks: make([]model.TaskSpec, 0, len(tasks)),
	}
	for _, t := range tasks {
		spec := t.Spec()
		spec.WorkflowId = ""
		m.Tasks = append(m.Tasks, spec)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse decodes and validates a manifest. Problems are reported together as
// an InvalidManifestError.
func Parse(data []byte) (*Manifest, error) {
	m, problems := decode(data)
	if len(problems) > 0 {
		return nil, &InvalidManifestError{Problems: problems}
	}
	return m, nil
}

// Validate returns every problem found in data. An empty result means the
// manifest can be imported.
func Validate(data []byte) []string {
	_, problems := decode(data)
	return problems
}

func decode(data []byte) (*Manifest, []string) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []string{fmt.Sprintf("invalid yaml: %s", err)}
	}
	problems := make([]string, 0)
	if doc.Version != "" && doc.Version != VERSION {
		problems = append(problems, fmt.Sprintf("unsupported version '%s'", doc.Version))
	}
	m := &Manifest{Version: VERSION}
	if doc.Workflow == nil {
		problems = append(problems, "missing 'workflow' section")
	} else {
		m.Workflow = *doc.Workflow
		if _, err := model.NewWorkflow("", m.Workflow, time.Time{}); err != nil {
			problems = append(problems, fmt.Sprintf("workflow: %s", err))
		}
	}
	if doc.Tasks == nil {
		problems = append(problems, "missing 'tasks' section")
		return m, problems
	}
	m.Tasks = *doc.Tasks
	return m, append(problems, validateTasks(m.Tasks)...)
}

func validateTasks(specs []model.TaskSpec) []string {
	problems := make([]string, 0)
	seen := make(map[string]struct{}, len(specs))
	tasks := make([]*model.Task, 0, len(specs))
	for i, spec := range specs {
		label := fmt.Sprintf("task %d", i+1)
		if name := strings.TrimSpace(spec.Name); name != "" {
			label = fmt.Sprintf("task '%s'", name)
			if _, dup := seen[name]; dup {
				problems = append(problems, label+" is defined more than once")
				continue
			}
			seen[name] = struct{}{}
		}
		t, err := model.NewTask("", spec, time.Time{})
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", label, err))
			continue
		}
		tasks = append(tasks, t)
	}
	for _, t := range tasks {
		if err := graph.ValidateDependencies(append([]*model.Task{t}, siblingsOf(t, specs)...)); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

// siblingsOf returns name-only placeholders for every other task in specs,
// so a dependency on a task that failed validation is not reported twice.
func siblingsOf(t *model.Task, specs []model.TaskSpec) []*model.Task {
	out := make([]*model.Task, 0, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name != "" && name != t.Name {
			out = append(out, &model.Task{Name: name})
		}
	}
	return out
}
