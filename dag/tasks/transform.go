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

// transform.go - TransformTask and related implementations
package tasks

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/songlake/aggregate"
	"github.com/aaronlmathis/songlake/core"
)

// TransformTask wraps a Transformer in the DAG framework
type TransformTask struct {
	baseTask
	transformer core.Transformer
}

func (tt *TransformTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	transformed, err := processChunks(ctx, input.Records, tt.metadata.Parallelism,
		func(ctx context.Context, record core.Record) (core.Record, bool, error) {
			out, err := tt.transformer.Transform(ctx, record)
			if err != nil {
				return nil, false, fmt.Errorf("transform failed: %w", err)
			}
			return out, true, nil
		})
	if err != nil {
		return TaskOutput{}, err
	}

	return TaskOutput{
		Records:  transformed,
		Context:  input.Context,
		Metadata: tt.result(start, len(input.Records), len(transformed)),
	}, nil
}

// FilterTask wraps a Filter in the DAG framework
type FilterTask struct {
	baseTask
	filter core.Filter
}

func (ft *FilterTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	filtered, err := processChunks(ctx, input.Records, ft.metadata.Parallelism,
		func(ctx context.Context, record core.Record) (core.Record, bool, error) {
			include, err := ft.filter.ShouldInclude(ctx, record)
			if err != nil {
				return nil, false, fmt.Errorf("filter failed: %w", err)
			}
			return record, include, nil
		})
	if err != nil {
		return TaskOutput{}, err
	}

	return TaskOutput{
		Records:  filtered,
		Context:  input.Context,
		Metadata: ft.result(start, len(input.Records), len(filtered)),
	}, nil
}

// AggregateTask wraps aggregation operations in the DAG framework.
// It consumes all of its input before producing output.
type AggregateTask struct {
	baseTask
	aggregator aggregate.Aggregator
}

func (at *AggregateTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	// Reset aggregator for clean state
	at.aggregator.Reset()

	for _, record := range input.Records {
		select {
		case <-ctx.Done():
			return TaskOutput{}, ctx.Err()
		default:
		}

		if err := at.aggregator.Add(ctx, record); err != nil {
			return TaskOutput{}, fmt.Errorf("aggregation failed: %w", err)
		}
	}

	rows, err := at.aggregator.Rows()
	if err != nil {
		return TaskOutput{}, fmt.Errorf("aggregation result failed: %w", err)
	}

	return TaskOutput{
		Records:  rows,
		Context:  input.Context,
		Metadata: at.result(start, len(input.Records), len(rows)),
	}, nil
}

// recordFunc maps one record; keep=false drops it from the output.
type recordFunc func(ctx context.Context, record core.Record) (out core.Record, keep bool, err error)

// processChunks splits records into contiguous chunks, runs fn over them concurrently
// and concatenates the chunk outputs in input order. The first error cancels the rest.
func processChunks(ctx context.Context, records []core.Record, workers int, fn recordFunc) ([]core.Record, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if len(records) == 0 {
		return []core.Record{}, nil
	}

	chunkSize := (len(records) + workers - 1) / workers
	chunks := make([][]core.Record, (len(records)+chunkSize-1)/chunkSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range chunks {
		i := i
		lo := i * chunkSize
		hi := min(lo+chunkSize, len(records))
		g.Go(func() error {
			out := make([]core.Record, 0, hi-lo)
			for _, record := range records[lo:hi] {
				if err := gctx.Err(); err != nil {
					return err
				}
				mapped, keep, err := fn(gctx, record)
				if err != nil {
					return err
				}
				if keep {
					out = append(out, mapped)
				}
			}
			chunks[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]core.Record, 0, len(records))
	for _, chunk := range chunks {
		result = append(result, chunk...)
	}
	return result, nil
}

// NewTransformTask creates a new TransformTask
func NewTransformTask(id string, transformer core.Transformer, dependencies []string, options ...TaskOption) *TransformTask {
	task := &TransformTask{
		baseTask:    newBaseTask(id, TaskTypeTransform, dependencies),
		transformer: transformer,
	}
	applyOptions(task, options)
	return task
}

// NewFilterTask creates a new FilterTask
func NewFilterTask(id string, filter core.Filter, dependencies []string, options ...TaskOption) *FilterTask {
	task := &FilterTask{
		baseTask: newBaseTask(id, TaskTypeFilter, dependencies),
		filter:   filter,
	}
	applyOptions(task, options)
	return task
}

// NewAggregateTask creates a new AggregateTask
func NewAggregateTask(id string, aggregator aggregate.Aggregator, dependencies []string, options ...TaskOption) *AggregateTask {
	task := &AggregateTask{
		baseTask:   newBaseTask(id, TaskTypeAggregate, dependencies),
		aggregator: aggregator,
	}
	applyOptions(task, options)
	return task
}
