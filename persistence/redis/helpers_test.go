package redis

import (
	"testing"
	"time"

	"github.com/mohitkumar/dagforge/model"
	"github.com/stretchr/testify/require"
)

func newWorkflow(t *testing.T, id string, name string) *model.Workflow {
	wf, err := model.NewWorkflow(id, model.WorkflowSpec{Name: name}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return wf
}
