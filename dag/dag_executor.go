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

// dag_executor.go - DAG execution engine with topological sort
package dag

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/dag/tasks"
	"github.com/aaronlmathis/songlake/logger"
)

// DAGExecutor executes DAGs level by level, running the tasks of a level on a
// bounded worker pool. The first task error cancels the run.
type DAGExecutor struct {
	maxWorkers int
	log        *logger.Logger
}

// DAGExecutorOption configures a DAGExecutor
type DAGExecutorOption func(*DAGExecutor)

// WithMaxWorkers sets the maximum number of concurrent workers
func WithMaxWorkers(workers int) DAGExecutorOption {
	return func(de *DAGExecutor) {
		if workers > 0 {
			de.maxWorkers = workers
		}
	}
}

// WithLogger sets the executor logger
func WithLogger(log *logger.Logger) DAGExecutorOption {
	return func(de *DAGExecutor) {
		if log != nil {
			de.log = log
		}
	}
}

// NewDAGExecutor creates a new DAG executor with options
func NewDAGExecutor(opts ...DAGExecutorOption) *DAGExecutor {
	de := &DAGExecutor{
		maxWorkers: runtime.NumCPU(),
		log:        logger.Nop(),
	}

	for _, opt := range opts {
		opt(de)
	}

	return de
}

// Execute runs the DAG using topological sort for dependency resolution
func (de *DAGExecutor) Execute(ctx context.Context, dag *DAG) (*DAGResult, error) {
	levels, err := dag.Levels()
	if err != nil {
		return nil, fmt.Errorf("topological sort failed: %w", err)
	}

	execCtx := &executionContext{
		dag:           dag,
		taskOutputs:   make(map[string]tasks.TaskOutput),
		taskResults:   make(map[string]tasks.TaskResultMetadata),
		globalContext: make(map[string]interface{}),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	de.log.Info("dag started", "dag", dag.id, "tasks", len(dag.tasks), "levels", len(levels))

	for levelIdx, level := range levels {
		if err := ctx.Err(); err != nil {
			return execCtx.failed(start, err), err
		}

		if err := de.executeLevel(ctx, cancel, execCtx, level); err != nil {
			de.log.Error("dag failed", "dag", dag.id, "level", levelIdx, "error", err)
			err = fmt.Errorf("DAG execution failed: %w", err)
			return execCtx.failed(start, err), err
		}

		de.log.Info("level completed", "dag", dag.id, "level", levelIdx, "tasks", level)
	}

	de.log.Info("dag completed", "dag", dag.id, "duration", time.Since(start))

	return &DAGResult{
		Success:     true,
		StartTime:   start,
		EndTime:     time.Now(),
		TaskResults: execCtx.taskResults,
		Context:     execCtx.globalContext,
	}, nil
}

// executeLevel executes all tasks in a level concurrently
func (de *DAGExecutor) executeLevel(ctx context.Context, cancel context.CancelFunc, execCtx *executionContext, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}

	// Use worker pool for controlled concurrency
	maxWorkers := de.maxWorkers
	if p := execCtx.dag.metadata.MaxParallelism; p > 0 && p < maxWorkers {
		maxWorkers = p
	}
	if len(taskIDs) < maxWorkers {
		maxWorkers = len(taskIDs)
	}

	taskChan := make(chan string, len(taskIDs))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for taskID := range taskChan {
				if ctx.Err() != nil {
					continue
				}
				if err := de.executeTask(ctx, execCtx, taskID); err != nil {
					once.Do(func() {
						firstErr = fmt.Errorf("task %s failed: %w", taskID, err)
						cancel()
					})
				}
			}
		}()
	}

	for _, taskID := range taskIDs {
		taskChan <- taskID
	}
	close(taskChan)

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// executeTask executes a single task and stores its output
func (de *DAGExecutor) executeTask(ctx context.Context, execCtx *executionContext, taskID string) error {
	task := execCtx.dag.tasks[taskID]
	input := de.prepareTaskInput(execCtx, task)

	started := time.Now()
	output, err := task.Execute(ctx, input)
	if err != nil {
		execCtx.mu.Lock()
		execCtx.taskResults[taskID] = tasks.TaskResultMetadata{
			StartTime: started,
			EndTime:   time.Now(),
			RecordsIn: int64(len(input.Records)),
			Success:   false,
			Error:     err,
		}
		execCtx.mu.Unlock()
		return err
	}

	execCtx.mu.Lock()
	execCtx.taskOutputs[taskID] = output
	execCtx.taskResults[taskID] = output.Metadata
	for k, v := range output.Context {
		execCtx.globalContext[k] = v
	}
	execCtx.mu.Unlock()

	de.log.Debug("task completed",
		"task", taskID,
		"type", task.Metadata().TaskType,
		"records_in", output.Metadata.RecordsIn,
		"records_out", output.Metadata.RecordsOut,
		"duration", output.Metadata.Duration())
	return nil
}

// prepareTaskInput gathers the outputs of a task's dependencies with source tracking
func (de *DAGExecutor) prepareTaskInput(execCtx *executionContext, task tasks.Task) tasks.TaskInput {
	execCtx.mu.RLock()
	defer execCtx.mu.RUnlock()

	var allRecords []core.Record
	sourceMap := make(map[string][]core.Record)
	metadataMap := make(map[string]tasks.TaskResultMetadata)

	for _, depID := range task.Dependencies() {
		if output, exists := execCtx.taskOutputs[depID]; exists {
			allRecords = append(allRecords, output.Records...)
			sourceMap[depID] = output.Records
			metadataMap[depID] = output.Metadata
		}
	}

	globalContext := make(map[string]interface{}, len(execCtx.globalContext))
	for k, v := range execCtx.globalContext {
		globalContext[k] = v
	}

	return tasks.TaskInput{
		Records:   allRecords,
		Context:   globalContext,
		SourceMap: sourceMap,
		Metadata:  metadataMap,
	}
}

// executionContext holds state during DAG execution
type executionContext struct {
	dag           *DAG
	taskOutputs   map[string]tasks.TaskOutput
	taskResults   map[string]tasks.TaskResultMetadata
	globalContext map[string]interface{}
	mu            sync.RWMutex
}

func (ec *executionContext) failed(start time.Time, err error) *DAGResult {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return &DAGResult{
		Success:     false,
		StartTime:   start,
		EndTime:     time.Now(),
		TaskResults: ec.taskResults,
		Context:     ec.globalContext,
		Error:       err,
	}
}

// DAGResult contains the results of DAG execution
type DAGResult struct {
	Success     bool
	StartTime   time.Time
	EndTime     time.Time
	TaskResults map[string]tasks.TaskResultMetadata
	Context     map[string]interface{}
	Error       error
}
