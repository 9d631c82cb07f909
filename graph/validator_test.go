package graph

import (
	"testing"

	"github.com/mohitkumar/dagforge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(name string, deps ...string) *model.Task {
	return &model.Task{Name: name, Dependencies: deps}
}

func TestValidateDependencies(t *testing.T) {
	for scenario, tc := range map[string]struct {
		tasks   []*model.Task
		task    string
		missing string
	}{
		"empty list": {},
		"all present": {
			tasks: []*model.Task{task("A"), task("B", "A"), task("C", "A", "B")},
		},
		"single missing": {
			tasks:   []*model.Task{task("A"), task("B", "A", "Z")},
			task:    "B",
			missing: "Z",
		},
		"first violation wins": {
			tasks:   []*model.Task{task("A", "X"), task("B", "Y")},
			task:    "A",
			missing: "X",
		},
		"declared order within a task": {
			tasks:   []*model.Task{task("A", "Q", "P")},
			task:    "A",
			missing: "Q",
		},
		"cycle is not reported": {
			tasks: []*model.Task{task("A", "B"), task("B", "A")},
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			err := ValidateDependencies(tc.tasks)
			if tc.task == "" {
				require.NoError(t, err)
				return
			}
			var depErr *InvalidDependencyError
			require.ErrorAs(t, err, &depErr)
			assert.Equal(t, tc.task, depErr.Task)
			assert.Equal(t, tc.missing, depErr.Missing)
		})
	}
}

func TestInvalidDependencyMessage(t *testing.T) {
	err := &InvalidDependencyError{Task: "B", Missing: "Z"}
	assert.Equal(t, "task 'B' has invalid dependency 'Z'", err.Error())
}

func TestEdges(t *testing.T) {
	edges := Edges([]*model.Task{task("C", "B", "A", "A"), task("B", "A"), task("A")})
	assert.Equal(t, []Edge{
		{Upstream: "A", Downstream: "B"},
		{Upstream: "A", Downstream: "C"},
		{Upstream: "B", Downstream: "C"},
	}, edges)
}
