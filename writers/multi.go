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

package writers

import (
	"context"

	"github.com/aaronlmathis/songlake/core"
)

// MultiSink writes each table to several sinks in order.
// The first failing sink stops the write; sinks already written are not undone.
type MultiSink struct {
	sinks []core.TableSink
}

// NewMultiSink creates a sink fanning out to sinks. nil entries are skipped.
func NewMultiSink(sinks ...core.TableSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// WriteTable implements core.TableSink.
func (m *MultiSink) WriteTable(ctx context.Context, table core.Table, rows []core.Record) error {
	for _, s := range m.sinks {
		if err := s.WriteTable(ctx, table, rows); err != nil {
			return err
		}
	}
	return nil
}
