package model

import (
	"strings"
	"time"
)

const PIPELINE_ID_PREFIX string = "workflow_"

type Workflow struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Schedule    string    `json:"schedule,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PipelineId is the identifier under which the workflow is known to the engine.
func (wf *Workflow) PipelineId() string {
	return PipelineIdFor(wf.Id)
}

func PipelineIdFor(workflowId string) string {
	return PIPELINE_ID_PREFIX + workflowId
}

type WorkflowSpec struct {
	Name        string `json:"name" yaml:"name" validate:"required,max=255"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Schedule    string `json:"schedule,omitempty" yaml:"schedule,omitempty" validate:"max=255"`
	IsActive    *bool  `json:"is_active,omitempty" yaml:"is_active,omitempty"`
}

func NewWorkflow(id string, spec WorkflowSpec, now time.Time) (*Workflow, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if err := validateStruct(spec); err != nil {
		return nil, err
	}
	active := true
	if spec.IsActive != nil {
		active = *spec.IsActive
	}
	return &Workflow{
		Id:          id,
		Name:        spec.Name,
		Description: spec.Description,
		Schedule:    strings.TrimSpace(spec.Schedule),
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type WorkflowUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Schedule    *string `json:"schedule,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Apply returns a copy of wf with the update merged in and re-validated.
func (u WorkflowUpdate) Apply(wf *Workflow, now time.Time) (*Workflow, error) {
	spec := WorkflowSpec{
		Name:        wf.Name,
		Description: wf.Description,
		Schedule:    wf.Schedule,
		IsActive:    &wf.IsActive,
	}
	if u.Name != nil {
		spec.Name = *u.Name
	}
	if u.Description != nil {
		spec.Description = *u.Description
	}
	if u.Schedule != nil {
		spec.Schedule = *u.Schedule
	}
	if u.IsActive != nil {
		spec.IsActive = u.IsActive
	}
	updated, err := NewWorkflow(wf.Id, spec, now)
	if err != nil {
		return nil, err
	}
	updated.CreatedAt = wf.CreatedAt
	return updated, nil
}
