package compiler

import (
	"sort"

	"github.com/mohitkumar/dagforge/model"
)

const DEFAULT_SCHEDULE string = "@once"
const DEFAULT_REVISION string = "latest"

// Pipeline is the engine-neutral form of a compiled workflow. Renderers turn
// it into the artifact text.
type Pipeline struct {
	Id          string
	WorkflowId  string
	Name        string
	Description string
	Schedule    string
	Steps       []Step
}

type Step struct {
	Id                string
	Image             string
	Retries           int
	RetryDelaySeconds int
	Params            map[string]any
	Upstream          []string
	Inline            *InlineStep
	Git               *GitStep
}

type InlineStep struct {
	Source string
}

type GitStep struct {
	Repository string
	Branch     string
	Revision   string
	ScriptPath string
	Callable   string
}

// Build normalises a workflow and its tasks into a Pipeline. Steps are
// ordered by id so the result does not depend on the order tasks were read.
func Build(wf *model.Workflow, tasks []*model.Task) (*Pipeline, error) {
	schedule := wf.Schedule
	if schedule == "" {
		schedule = DEFAULT_SCHEDULE
	}
	p := &Pipeline{
		Id:          wf.PipelineId(),
		WorkflowId:  wf.Id,
		Name:        wf.Name,
		Description: wf.Description,
		Schedule:    schedule,
		Steps:       make([]Step, 0, len(tasks)),
	}
	for _, t := range tasks {
		step, err := buildStep(wf, t)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, *step)
	}
	sort.Slice(p.Steps, func(i, j int) bool {
		return p.Steps[i].Id < p.Steps[j].Id
	})
	return p, nil
}

func buildStep(wf *model.Workflow, t *model.Task) (*Step, error) {
	params, err := resolveParams(paramScope(wf, t), t.Params)
	if err != nil {
		return nil, &CompilationError{WorkflowId: wf.Id, Reason: "task '" + t.Name + "' params", Err: err}
	}
	step := &Step{
		Id:                t.Name,
		Image:             t.Image,
		Retries:           t.RetryCount,
		RetryDelaySeconds: t.RetryDelaySeconds,
		Params:            params,
		Upstream:          sortedUnique(t.Dependencies),
	}
	switch exec := t.Execution.(type) {
	case model.InlineExecution:
		step.Inline = &InlineStep{Source: exec.Source}
	case model.GitExecution:
		revision := exec.Revision
		if revision == "" {
			revision = DEFAULT_REVISION
		}
		step.Git = &GitStep{
			Repository: exec.Repository,
			Branch:     exec.Branch,
			Revision:   revision,
			ScriptPath: exec.ScriptPath,
			Callable:   exec.Callable,
		}
	default:
		return nil, &CompilationError{WorkflowId: wf.Id, Reason: "task '" + t.Name + "' has no execution"}
	}
	return step, nil
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
