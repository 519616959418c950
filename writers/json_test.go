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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/songlake/core"
)

// mockWriteCloser is a mock implementation of io.WriteCloser for testing
type mockWriteCloser struct {
	bytes.Buffer
	closed bool
}

func (m *mockWriteCloser) Close() error {
	m.closed = true
	return nil
}

func TestJSONWriter_BasicFunctionality(t *testing.T) {
	buf := &mockWriteCloser{}
	writer := NewJSONWriter(buf)
	ctx := context.Background()

	ts := time.Date(2018, 11, 1, 20, 57, 10, 796000000, time.UTC)
	require.NoError(t, writer.Write(ctx, core.Record{"user_id": "10", "start_time": ts}))
	require.NoError(t, writer.Write(ctx, core.Record{"user_id": nil}))
	require.NoError(t, writer.Flush())

	assert.Equal(t,
		`{"start_time":"2018-11-01T20:57:10.796Z","user_id":"10"}`+"\n"+`{"user_id":null}`+"\n",
		buf.String())

	require.NoError(t, writer.Close())
	assert.True(t, buf.closed)
	assert.NoError(t, writer.Close())
}

func TestJSONWriter_UnsupportedValue(t *testing.T) {
	writer := NewJSONWriter(&bytes.Buffer{})
	err := writer.Write(context.Background(), core.Record{"f": make(chan int)})
	assert.Error(t, err)
}
