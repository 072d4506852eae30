package planner

import (
	"fmt"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// validateDependencies enforces spec §4.5 step 5: no self-loop, no
// out-of-range reference, no cycles. Positions are assumed already dense
// [0,N) by the time this runs (densify runs first).
func validateDependencies(items []models.TodoItem) error {
	n := len(items)
	for _, item := range items {
		for _, dep := range item.Dependencies {
			if dep == item.Position {
				return fmt.Errorf("task %d depends on itself", item.Position)
			}
			if dep < 0 || dep >= n {
				return fmt.Errorf("task %d has out-of-range dependency %d", item.Position, dep)
			}
		}
	}
	return detectCycle(items)
}

// detectCycle runs DFS with a three-color visited set to find any cycle in
// the dependency graph (edges point from a task to the tasks it depends on).
func detectCycle(items []models.TodoItem) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	n := len(items)
	color := make([]int, n)
	depsOf := make([][]int, n)
	for _, item := range items {
		depsOf[item.Position] = item.Dependencies
	}

	var visit func(node int, path []int) error
	visit = func(node int, path []int) error {
		color[node] = gray
		for _, dep := range depsOf[node] {
			switch color[dep] {
			case gray:
				return fmt.Errorf("dependency cycle detected: %v", append(path, dep))
			case white:
				if err := visit(dep, append(path, dep)); err != nil {
					return err
				}
			}
		}
		color[node] = black
		return nil
	}

	for i := 0; i < n; i++ {
		if color[i] == white {
			if err := visit(i, []int{i}); err != nil {
				return err
			}
		}
	}
	return nil
}
