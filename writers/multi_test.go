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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aaronlmathis/songlake/core"
)

type recordingSink struct {
	name  string
	calls *[]string
	err   error
}

func (r *recordingSink) WriteTable(ctx context.Context, table core.Table, rows []core.Record) error {
	*r.calls = append(*r.calls, r.name+":"+table.Name)
	return r.err
}

func TestMultiSink(t *testing.T) {
	var calls []string
	a := &recordingSink{name: "a", calls: &calls}
	b := &recordingSink{name: "b", calls: &calls}

	m := NewMultiSink(a, nil, b)
	assert.NoError(t, m.WriteTable(context.Background(), artistsTable, nil))
	assert.Equal(t, []string{"a:artists", "b:artists"}, calls)
}

func TestMultiSink_StopsAtFirstError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	a := &recordingSink{name: "a", calls: &calls, err: boom}
	b := &recordingSink{name: "b", calls: &calls}

	err := NewMultiSink(a, b).WriteTable(context.Background(), artistsTable, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a:artists"}, calls)
}
