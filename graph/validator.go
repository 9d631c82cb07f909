package graph

import (
	"fmt"
	"sort"

	"github.com/mohitkumar/dagforge/model"
)

// InvalidDependencyError reports a task that depends on a name that is not
// a sibling task.
type InvalidDependencyError struct {
	Task    string
	Missing string
}

func (e *InvalidDependencyError) Error() string {
	return fmt.Sprintf("task '%s' has invalid dependency '%s'", e.Task, e.Missing)
}

// ValidateDependencies checks that every dependency names a task in the list.
// Tasks and their dependencies are checked in order and the first violation
// is returned. Cycles are not detected.
func ValidateDependencies(tasks []*model.Task) error {
	names := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		names[t.Name] = struct{}{}
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := names[dep]; !ok {
				return &InvalidDependencyError{Task: t.Name, Missing: dep}
			}
		}
	}
	return nil
}

type Edge struct {
	Upstream   string
	Downstream string
}

// Edges lists every upstream -> downstream pair once, sorted.
func Edges(tasks []*model.Task) []Edge {
	seen := make(map[Edge]struct{})
	edges := make([]Edge, 0)
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			e := Edge{Upstream: dep, Downstream: t.Name}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Upstream != edges[j].Upstream {
			return edges[i].Upstream < edges[j].Upstream
		}
		return edges[i].Downstream < edges[j].Downstream
	})
	return edges
}
