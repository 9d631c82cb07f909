package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveParams(t *testing.T) {
	scope := map[string]any{
		"workflow": map[string]any{"id": "7", "name": "etl"},
		"task":     map[string]any{"name": "load"},
	}
	params := map[string]any{
		"target":  "{$.workflow.name}-{$.task.name}",
		"literal": "{not a path}",
		"count":   3,
		"nested":  map[string]any{"wf": "{$.workflow.id}"},
		"list":    []any{"{$.task.name}", 1, []any{"x"}},
	}
	out, err := resolveParams(scope, params)
	require.NoError(t, err)
	assert.Equal(t, "etl-load", out["target"])
	assert.Equal(t, "{not a path}", out["literal"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, map[string]any{"wf": "7"}, out["nested"])
	assert.Equal(t, []any{"load", 1, []any{"x"}}, out["list"])

	_, err = resolveParams(scope, map[string]any{"x": "{$.workflow.missing}"})
	require.Error(t, err)
}
