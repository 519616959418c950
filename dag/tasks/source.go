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

// source.go - SourceTask implementation
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/songlake/core"
)

// SourceTask wraps a DataSource in the DAG framework
type SourceTask struct {
	baseTask
	source core.DataSource
}

// Execute drains the source and closes it.
func (st *SourceTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()
	defer st.source.Close()

	var records []core.Record
	for {
		select {
		case <-ctx.Done():
			return TaskOutput{}, ctx.Err()
		default:
		}

		record, err := st.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return TaskOutput{}, fmt.Errorf("source read failed: %w", err)
		}

		records = append(records, record)
	}

	st.log.Debug("source drained", "records", len(records))

	return TaskOutput{
		Records:  records,
		Context:  input.Context,
		Metadata: st.result(start, 0, len(records)),
	}, nil
}

// NewSourceTask creates a new SourceTask with the given ID and source
func NewSourceTask(id string, source core.DataSource, options ...TaskOption) *SourceTask {
	task := &SourceTask{
		baseTask: newBaseTask(id, TaskTypeSource, nil),
		source:   source,
	}
	applyOptions(task, options)
	return task
}
