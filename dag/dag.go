//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Songlake.
//
// Songlake is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Songlake is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Songlake. If not, see https://www.gnu.org/licenses/.

package dag

import (
	"fmt"
	"sort"

	"github.com/aaronlmathis/songlake/dag/tasks"
	"github.com/aaronlmathis/songlake/logger"
)

// GetDependencies returns the dependencies for a specific task
func (d *DAG) GetDependencies(taskID string) []string {
	if deps, exists := d.dependencies[taskID]; exists {
		return deps
	}
	return []string{}
}

// GetTasksByType returns tasks filtered by type
func (d *DAG) GetTasksByType(taskType tasks.TaskType) map[string]tasks.Task {
	result := make(map[string]tasks.Task)
	for id, task := range d.tasks {
		if task.Metadata().TaskType == taskType {
			result[id] = task
		}
	}
	return result
}

// HasTask checks if a task exists in the DAG
func (d *DAG) HasTask(taskID string) bool {
	_, exists := d.tasks[taskID]
	return exists
}

// GetDownstreamTasks returns all tasks that depend on this task, sorted by id
func (d *DAG) GetDownstreamTasks(taskID string) []string {
	var downstream []string
	for id, deps := range d.dependencies {
		for _, dep := range deps {
			if dep == taskID {
				downstream = append(downstream, id)
				break
			}
		}
	}
	sort.Strings(downstream)
	return downstream
}

// Levels groups tasks by dependency depth. Every task in level n depends only on
// tasks in levels below n, so a level can run concurrently.
func (d *DAG) Levels() ([][]string, error) {
	order, err := d.topologicalSort()
	if err != nil {
		return nil, err
	}

	taskLevel := make(map[string]int, len(order))
	maxLevel := -1
	for _, taskID := range order {
		level := 0
		for _, dep := range d.dependencies[taskID] {
			if taskLevel[dep]+1 > level {
				level = taskLevel[dep] + 1
			}
		}
		taskLevel[taskID] = level
		if level > maxLevel {
			maxLevel = level
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, taskID := range order {
		levels[taskLevel[taskID]] = append(levels[taskLevel[taskID]], taskID)
	}
	for _, level := range levels {
		sort.Strings(level)
	}
	return levels, nil
}

// LogStructure writes the DAG layout at debug level
func (d *DAG) LogStructure(log *logger.Logger) {
	levels, err := d.Levels()
	if err != nil {
		log.Warn("dag has no valid execution order", "dag", d.id, "error", err)
		return
	}
	log.Debug("dag structure", "dag", d.id, "name", d.name, "tasks", len(d.tasks), "levels", len(levels))
	for i, level := range levels {
		for _, id := range level {
			log.Debug("dag task",
				"level", i,
				"task", id,
				"type", d.tasks[id].Metadata().TaskType,
				"depends_on", d.GetDependencies(id),
				"triggers", d.GetDownstreamTasks(id))
		}
	}
}

// ValidateDAGStructure performs comprehensive DAG validation
func (d *DAG) ValidateDAGStructure() []error {
	var errors []error

	// Check for missing dependencies
	for taskID, deps := range d.dependencies {
		for _, dep := range deps {
			if !d.HasTask(dep) {
				errors = append(errors, fmt.Errorf("task %s depends on non-existent task %s", taskID, dep))
			}
		}
	}

	// Check for cycles using topological sort
	if d.hasCycle() {
		errors = append(errors, fmt.Errorf("DAG contains cycles"))
	}

	return errors
}

func (d *DAG) hasCycle() bool {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for taskID := range d.tasks {
		if !visited[taskID] {
			if d.dfsHasCycle(taskID, visited, recStack) {
				return true
			}
		}
	}
	return false
}

func (d *DAG) dfsHasCycle(taskID string, visited, recStack map[string]bool) bool {
	visited[taskID] = true
	recStack[taskID] = true

	for _, dep := range d.dependencies[taskID] {
		if !visited[dep] {
			if d.dfsHasCycle(dep, visited, recStack) {
				return true
			}
		} else if recStack[dep] {
			return true
		}
	}

	recStack[taskID] = false
	return false
}

// topologicalSort performs Kahn's algorithm for topological sorting.
// Ready tasks are taken in id order so the result is stable.
func (d *DAG) topologicalSort() ([]string, error) {
	// Calculate in-degrees
	inDegree := make(map[string]int, len(d.tasks))
	for taskID := range d.tasks {
		inDegree[taskID] = len(d.dependencies[taskID])
	}

	// Initialize queue with tasks that have no dependencies
	queue := make([]string, 0)
	for taskID, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, taskID)
		}
	}
	sort.Strings(queue)

	// Process queue
	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		// Reduce in-degree for dependent tasks
		for _, taskID := range d.GetDownstreamTasks(current) {
			inDegree[taskID]--
			if inDegree[taskID] == 0 {
				queue = append(queue, taskID)
			}
		}
	}

	// Check for cycles
	if len(result) != len(d.tasks) {
		return nil, fmt.Errorf("DAG contains cycles")
	}

	return result, nil
}
