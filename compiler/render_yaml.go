package compiler

import (
	"gopkg.in/yaml.v3"
)

type yamlRenderer struct{}

type yamlDocument struct {
	ApiVersion  string     `yaml:"apiVersion"`
	Kind        string     `yaml:"kind"`
	Id          string     `yaml:"id"`
	WorkflowId  string     `yaml:"workflow_id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Schedule    string     `yaml:"schedule"`
	Steps       []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Id                string         `yaml:"id"`
	Image             string         `yaml:"image"`
	Retries           int            `yaml:"retries"`
	RetryDelaySeconds int            `yaml:"retry_delay_seconds"`
	Upstream          []string       `yaml:"upstream,omitempty"`
	Params            map[string]any `yaml:"params,omitempty"`
	Inline            *yamlInline    `yaml:"inline,omitempty"`
	Git               *yamlGit       `yaml:"git,omitempty"`
}

type yamlInline struct {
	Source string `yaml:"source"`
}

type yamlGit struct {
	Repository string `yaml:"repository"`
	Branch     string `yaml:"branch"`
	Revision   string `yaml:"revision"`
	ScriptPath string `yaml:"script_path"`
	Callable   string `yaml:"callable"`
}

func (yamlRenderer) Extension() string {
	return ".yaml"
}

func (yamlRenderer) Render(p *Pipeline) ([]byte, error) {
	doc := yamlDocument{
		ApiVersion:  "dagforge/v1",
		Kind:        "Pipeline",
		Id:          p.Id,
		WorkflowId:  p.WorkflowId,
		Name:        p.Name,
		Description: p.Description,
		Schedule:    p.Schedule,
		Steps:       make([]yamlStep, 0, len(p.Steps)),
	}
	known := make(map[string]struct{}, len(p.Steps))
	for _, s := range p.Steps {
		known[s.Id] = struct{}{}
	}
	for _, s := range p.Steps {
		for _, up := range s.Upstream {
			if _, ok := known[up]; !ok {
				return nil, &CompilationError{WorkflowId: p.WorkflowId, Reason: "step '" + s.Id + "' depends on unknown step '" + up + "'"}
			}
		}
		step := yamlStep{
			Id:                s.Id,
			Image:             s.Image,
			Retries:           s.Retries,
			RetryDelaySeconds: s.RetryDelaySeconds,
			Upstream:          s.Upstream,
			Params:            s.Params,
		}
		switch {
		case s.Inline != nil:
			step.Inline = &yamlInline{Source: s.Inline.Source}
		case s.Git != nil:
			g := yamlGit(*s.Git)
			step.Git = &g
		default:
			return nil, &CompilationError{WorkflowId: p.WorkflowId, Reason: "step '" + s.Id + "' has no executor"}
		}
		doc.Steps = append(doc.Steps, step)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, &CompilationError{WorkflowId: p.WorkflowId, Reason: "encoding yaml", Err: err}
	}
	return data, nil
}
