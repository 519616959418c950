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

// sink.go - SinkTask implementation
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/songlake/core"
)

// SinkTask hands the complete output of its dependencies to a TableSink as one table.
type SinkTask struct {
	baseTask
	sink  core.TableSink
	table core.Table
}

func (st *SinkTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return TaskOutput{}, ctx.Err()
	default:
	}

	if err := st.sink.WriteTable(ctx, st.table, input.Records); err != nil {
		return TaskOutput{}, fmt.Errorf("sink write for table %s failed: %w", st.table.Name, err)
	}

	st.log.Info("table written", "table", st.table.Name, "rows", len(input.Records))

	return TaskOutput{
		Records:  []core.Record{}, // Sinks don't produce output records
		Context:  input.Context,
		Metadata: st.result(start, len(input.Records), len(input.Records)),
	}, nil
}

// NewSinkTask creates a new SinkTask
func NewSinkTask(id string, sink core.TableSink, table core.Table, dependencies []string, options ...TaskOption) *SinkTask {
	task := &SinkTask{
		baseTask: newBaseTask(id, TaskTypeSink, dependencies),
		sink:     sink,
		table:    table,
	}
	applyOptions(task, options)
	return task
}
