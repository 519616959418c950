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

// base.go - Task interface and base types
package tasks

import (
	"context"
	"time"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/logger"
)

// TaskType represents the type of task
type TaskType string

const (
	TaskTypeSource    TaskType = "source"
	TaskTypeTransform TaskType = "transform"
	TaskTypeSink      TaskType = "sink"
	TaskTypeJoin      TaskType = "join"
	TaskTypeCheck     TaskType = "check"
	TaskTypeFilter    TaskType = "filter"
	TaskTypeAggregate TaskType = "aggregate"
)

// TaskMetadata holds metadata about a task
type TaskMetadata struct {
	Name         string
	Description  string
	TaskType     TaskType
	Parallelism  int // Chunk workers for record-at-a-time tasks; 0 means runtime.NumCPU()
	Tags         []string
	CustomFields map[string]interface{}
}

// TaskInput represents input data for task execution
type TaskInput struct {
	Records   []core.Record
	Context   map[string]interface{}
	SourceMap map[string][]core.Record
	Metadata  map[string]TaskResultMetadata
}

// TaskOutput represents output data from task execution
type TaskOutput struct {
	Records  []core.Record
	Context  map[string]interface{}
	Metadata TaskResultMetadata
}

// TaskResultMetadata holds execution result metadata
type TaskResultMetadata struct {
	StartTime  time.Time
	EndTime    time.Time
	RecordsIn  int64
	RecordsOut int64
	Success    bool
	Error      error
}

// Duration returns how long the task ran.
func (r TaskResultMetadata) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Task defines the interface that all tasks must implement
type Task interface {
	ID() string
	Dependencies() []string
	Execute(ctx context.Context, input TaskInput) (TaskOutput, error)
	Metadata() TaskMetadata
	SetDescription(description string)
	SetTags(tags ...string)
	SetCustomField(key string, value interface{})
	SetParallelism(workers int)
	SetLogger(log *logger.Logger)
}

// baseTask carries the identity, metadata and logger shared by every task type.
type baseTask struct {
	id           string
	dependencies []string
	metadata     TaskMetadata
	log          *logger.Logger
}

func newBaseTask(id string, taskType TaskType, dependencies []string) baseTask {
	if dependencies == nil {
		dependencies = []string{}
	}
	return baseTask{
		id:           id,
		dependencies: dependencies,
		metadata: TaskMetadata{
			Name:     id,
			TaskType: taskType,
		},
		log: logger.Nop(),
	}
}

func (bt *baseTask) ID() string             { return bt.id }
func (bt *baseTask) Dependencies() []string { return bt.dependencies }
func (bt *baseTask) Metadata() TaskMetadata { return bt.metadata }

func (bt *baseTask) SetDescription(description string) {
	bt.metadata.Description = description
}

func (bt *baseTask) SetTags(tags ...string) {
	bt.metadata.Tags = append(bt.metadata.Tags, tags...)
}

func (bt *baseTask) SetCustomField(key string, value interface{}) {
	if bt.metadata.CustomFields == nil {
		bt.metadata.CustomFields = make(map[string]interface{})
	}
	bt.metadata.CustomFields[key] = value
}

func (bt *baseTask) SetParallelism(workers int) { bt.metadata.Parallelism = workers }

func (bt *baseTask) SetLogger(log *logger.Logger) {
	if log != nil {
		bt.log = log.With("task", bt.id)
	}
}

// result builds the success metadata for a finished task.
func (bt *baseTask) result(start time.Time, in, out int) TaskResultMetadata {
	return TaskResultMetadata{
		StartTime:  start,
		EndTime:    time.Now(),
		RecordsIn:  int64(in),
		RecordsOut: int64(out),
		Success:    true,
	}
}

// TaskOption is a functional option for configuring tasks
type TaskOption func(Task)

// WithDescription sets the description for a task
func WithDescription(description string) TaskOption {
	return func(t Task) {
		t.SetDescription(description)
	}
}

// WithTags adds tags to a task
func WithTags(tags ...string) TaskOption {
	return func(t Task) {
		t.SetTags(tags...)
	}
}

// WithCustomField adds a custom field to a task
func WithCustomField(key string, value interface{}) TaskOption {
	return func(t Task) {
		t.SetCustomField(key, value)
	}
}

// WithParallelism sets how many chunks a transform or filter task processes at once
func WithParallelism(workers int) TaskOption {
	return func(t Task) {
		t.SetParallelism(workers)
	}
}

// WithLogger sets the logger a task reports through
func WithLogger(log *logger.Logger) TaskOption {
	return func(t Task) {
		t.SetLogger(log)
	}
}

func applyOptions(t Task, options []TaskOption) {
	for _, opt := range options {
		opt(t)
	}
}
