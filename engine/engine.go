package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Client is the subset of the workflow engine API used by dagforge.
type Client interface {
	GetPipeline(ctx context.Context, pipelineId string) (*Pipeline, error)
	SetPaused(ctx context.Context, pipelineId string, paused bool) error
	TriggerRun(ctx context.Context, pipelineId string, conf map[string]any) (*Run, error)
	GetRun(ctx context.Context, pipelineId string, runId string) (*Run, error)
	GetTaskLog(ctx context.Context, pipelineId string, runId string, taskId string, attempt int) (string, error)
	Health(ctx context.Context) bool
}

type Pipeline struct {
	Id       string `json:"dag_id"`
	IsPaused bool   `json:"is_paused"`
	IsActive bool   `json:"is_active"`
}

type Run struct {
	Id         string  `json:"dag_run_id"`
	PipelineId string  `json:"dag_id"`
	State      string  `json:"state"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
}

// Error is returned when the engine answers with a non-success status.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// UnavailableError is returned when the engine could not be reached or its
// answer could not be read.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("engine unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether the engine does not know the requested object.
// A freshly written artifact stays unknown until the engine scans it.
func IsNotFound(err error) bool {
	var engineErr *Error
	return errors.As(err, &engineErr) && engineErr.StatusCode == http.StatusNotFound
}
