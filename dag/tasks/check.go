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

// check.go - CheckTask implementation
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/songlake/core"
)

// Checker inspects a record set and reports data-quality findings.
type Checker interface {
	Check(ctx context.Context, records []core.Record) (CheckResult, error)
}

// CheckResult is the outcome of a Checker run.
type CheckResult struct {
	Passed bool
	Issues []string
}

// CheckTask runs a Checker over its input and passes the records through unchanged.
// Findings are logged as warnings and recorded in the output context under
// "<task id>_passed"; a failed check never fails the task.
type CheckTask struct {
	baseTask
	checker Checker
}

func (ct *CheckTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	result, err := ct.checker.Check(ctx, input.Records)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("check evaluation failed: %w", err)
	}

	for _, issue := range result.Issues {
		ct.log.Warn("data quality issue", "issue", issue)
	}

	updatedContext := make(map[string]interface{}, len(input.Context)+1)
	for k, v := range input.Context {
		updatedContext[k] = v
	}
	updatedContext[ct.id+"_passed"] = result.Passed

	return TaskOutput{
		Records:  input.Records,
		Context:  updatedContext,
		Metadata: ct.result(start, len(input.Records), len(input.Records)),
	}, nil
}

// NewCheckTask creates a new CheckTask
func NewCheckTask(id string, checker Checker, dependencies []string, options ...TaskOption) *CheckTask {
	task := &CheckTask{
		baseTask: newBaseTask(id, TaskTypeCheck, dependencies),
		checker:  checker,
	}
	applyOptions(task, options)
	return task
}
