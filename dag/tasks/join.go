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

// join.go - JoinTask implementation
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/songlake/core"
)

// Joiner combines the outputs of several upstream tasks into one record set.
// inputs holds one slice per dependency, in the order the dependencies were declared.
type Joiner interface {
	Join(ctx context.Context, inputs [][]core.Record) ([]core.Record, error)
}

// JoinFunc is a function adapter for the Joiner interface.
type JoinFunc func(ctx context.Context, inputs [][]core.Record) ([]core.Record, error)

// Join implements the Joiner interface for JoinFunc.
func (f JoinFunc) Join(ctx context.Context, inputs [][]core.Record) ([]core.Record, error) {
	return f(ctx, inputs)
}

// JoinTask performs joins between multiple upstream data sets
type JoinTask struct {
	baseTask
	joiner Joiner
}

func (jt *JoinTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	if len(jt.dependencies) < 2 {
		return TaskOutput{}, fmt.Errorf("join task requires at least 2 dependencies, got %d", len(jt.dependencies))
	}

	// Get records from each dependency using source tracking
	inputs := make([][]core.Record, len(jt.dependencies))
	recordsIn := 0
	for i, dep := range jt.dependencies {
		records, ok := input.SourceMap[dep]
		if !ok {
			return TaskOutput{}, fmt.Errorf("missing source data from %s for join operation", dep)
		}
		inputs[i] = records
		recordsIn += len(records)
	}

	joined, err := jt.joiner.Join(ctx, inputs)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("join operation failed: %w", err)
	}

	return TaskOutput{
		Records:  joined,
		Context:  input.Context,
		Metadata: jt.result(start, recordsIn, len(joined)),
	}, nil
}

// NewJoinTask creates a new JoinTask
func NewJoinTask(id string, joiner Joiner, dependencies []string, options ...TaskOption) *JoinTask {
	task := &JoinTask{
		baseTask: newBaseTask(id, TaskTypeJoin, dependencies),
		joiner:   joiner,
	}
	applyOptions(task, options)
	return task
}
