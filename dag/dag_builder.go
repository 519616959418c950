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

// dag_builder.go - Fluent API for DAG construction
package dag

import (
	"fmt"

	"github.com/aaronlmathis/songlake/aggregate"
	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/dag/tasks"
)

// DAGBuilder provides a fluent API for constructing DAGs
type DAGBuilder struct {
	dag      *DAG
	defaults []tasks.TaskOption
	errs     []error
}

// NewDAG creates a new DAG builder
func NewDAG(id, name string) *DAGBuilder {
	return &DAGBuilder{
		dag: &DAG{
			id:           id,
			name:         name,
			tasks:        make(map[string]tasks.Task),
			dependencies: make(map[string][]string),
			metadata: DAGMetadata{
				MaxParallelism: 4, // Sensible default
			},
		},
	}
}

// WithTaskDefaults sets options applied to every task added afterwards,
// before the task's own options.
func (db *DAGBuilder) WithTaskDefaults(opts ...tasks.TaskOption) *DAGBuilder {
	db.defaults = append(db.defaults, opts...)
	return db
}

// AddSourceTask adds a data source task to the DAG
func (db *DAGBuilder) AddSourceTask(id string, source core.DataSource, opts ...tasks.TaskOption) *DAGBuilder {
	return db.add(tasks.NewSourceTask(id, source, db.options(opts)...))
}

// AddTransformTask adds a transformation task to the DAG
func (db *DAGBuilder) AddTransformTask(id string, transformer core.Transformer, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.add(tasks.NewTransformTask(id, transformer, dependencies, db.options(opts)...))
}

// AddFilterTask adds a filter task to the DAG
func (db *DAGBuilder) AddFilterTask(id string, filter core.Filter, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.add(tasks.NewFilterTask(id, filter, dependencies, db.options(opts)...))
}

// AddSinkTask adds a task that writes its input as one output table
func (db *DAGBuilder) AddSinkTask(id string, sink core.TableSink, table core.Table, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	if err := table.Validate(); err != nil {
		db.errs = append(db.errs, fmt.Errorf("task %s: %w", id, err))
	}
	return db.add(tasks.NewSinkTask(id, sink, table, dependencies, db.options(opts)...))
}

// AddAggregateTask adds an aggregation task to the DAG
func (db *DAGBuilder) AddAggregateTask(id string, aggregator aggregate.Aggregator, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.add(tasks.NewAggregateTask(id, aggregator, dependencies, db.options(opts)...))
}

// AddJoinTask adds a join operation task to the DAG
func (db *DAGBuilder) AddJoinTask(id string, joiner tasks.Joiner, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.add(tasks.NewJoinTask(id, joiner, dependencies, db.options(opts)...))
}

// AddCheckTask adds a data-quality check task to the DAG
func (db *DAGBuilder) AddCheckTask(id string, checker tasks.Checker, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.add(tasks.NewCheckTask(id, checker, dependencies, db.options(opts)...))
}

// WithMaxParallelism sets the maximum number of concurrent tasks
func (db *DAGBuilder) WithMaxParallelism(max int) *DAGBuilder {
	db.dag.metadata.MaxParallelism = max
	return db
}

// WithDescription sets the DAG description
func (db *DAGBuilder) WithDescription(description string) *DAGBuilder {
	db.dag.metadata.Description = description
	return db
}

func (db *DAGBuilder) options(opts []tasks.TaskOption) []tasks.TaskOption {
	all := make([]tasks.TaskOption, 0, len(db.defaults)+len(opts))
	all = append(all, db.defaults...)
	return append(all, opts...)
}

func (db *DAGBuilder) add(task tasks.Task) *DAGBuilder {
	id := task.ID()
	if _, exists := db.dag.tasks[id]; exists {
		db.errs = append(db.errs, fmt.Errorf("duplicate task id %s", id))
		return db
	}
	db.dag.tasks[id] = task
	if deps := task.Dependencies(); len(deps) > 0 {
		db.dag.dependencies[id] = deps
	}
	return db
}

// validateDAG checks for cycles and missing or repeated dependencies
func (db *DAGBuilder) validateDAG() error {
	if len(db.errs) > 0 {
		return db.errs[0]
	}

	for taskID, deps := range db.dag.dependencies {
		seen := make(map[string]bool, len(deps))
		for _, dep := range deps {
			if _, exists := db.dag.tasks[dep]; !exists {
				return fmt.Errorf("task %s depends on non-existent task %s", taskID, dep)
			}
			if seen[dep] {
				return fmt.Errorf("task %s lists dependency %s twice", taskID, dep)
			}
			seen[dep] = true
		}
	}

	if db.dag.hasCycle() {
		return fmt.Errorf("DAG contains cycles")
	}

	return nil
}

// Build validates and returns the constructed DAG
func (db *DAGBuilder) Build() (*DAG, error) {
	if err := db.validateDAG(); err != nil {
		return nil, err
	}

	return db.dag, nil
}
