package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EngineFailureError is returned when the engine refused or could not
// complete an action the caller asked for explicitly.
type EngineFailureError struct {
	Action     string
	PipelineId string
	Err        error
}

func (e *EngineFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not %s pipeline %s: %v", e.Action, e.PipelineId, e.Err)
	}
	return fmt.Sprintf("could not %s pipeline %s", e.Action, e.PipelineId)
}

func (e *EngineFailureError) Unwrap() error {
	return e.Err
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func newId() string {
	return uuid.NewString()
}

// pageNumber is the 1-based page a listing window starts on.
func pageNumber(offset int, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}
