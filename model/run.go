package model

import (
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const RUN_STATUS_QUEUED RunStatus = "queued"
const RUN_STATUS_RUNNING RunStatus = "running"
const RUN_STATUS_SUCCESS RunStatus = "success"
const RUN_STATUS_FAILED RunStatus = "failed"

const TRIGGERED_BY_MANUAL string = "manual"

func (s RunStatus) IsTerminal() bool {
	return s == RUN_STATUS_SUCCESS || s == RUN_STATUS_FAILED
}

func ParseRunStatus(s string) (RunStatus, error) {
	status := RunStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case RUN_STATUS_QUEUED, RUN_STATUS_RUNNING, RUN_STATUS_SUCCESS, RUN_STATUS_FAILED:
		return status, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown run status %q", s)}
}

type JobRun struct {
	Id          string         `json:"id"`
	WorkflowId  string         `json:"workflow_id"`
	EngineRunId string         `json:"engine_run_id,omitempty"`
	Status      RunStatus      `json:"status"`
	TriggeredBy string         `json:"triggered_by"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`
	Logs        map[string]any `json:"logs,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Syncable reports whether the engine may still change this run.
func (r *JobRun) Syncable() bool {
	return r.EngineRunId != "" && !r.Status.IsTerminal()
}

func (r *JobRun) Clone() *JobRun {
	c := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}
