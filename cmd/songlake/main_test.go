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

package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/songlake/etl"
	"github.com/aaronlmathis/songlake/readers"
	"github.com/aaronlmathis/songlake/writers"
)

func lines(s ...string) *readers.JSONReader {
	return readers.NewJSONReader(io.NopCloser(strings.NewReader(strings.Join(s, "\n"))))
}

func TestInspectCommand(t *testing.T) {
	root := t.TempDir()
	sink := writers.NewPartitionedWriter(writers.NewLocalStore(root))
	_, err := etl.Run(context.Background(),
		lines(`{"song_id":"S1","title":"Song A","artist_id":"AR1","artist_name":"Artist A","year":2000,"duration":200.5}`),
		lines(`{"page":"NextSong","ts":1541105830796,"song":"Song A","artist":"Artist A","userId":"10","level":"free","sessionId":345}`),
		sink)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, inspectCommand([]string{"-dir", root}, &out))

	report := out.String()
	assert.Contains(t, report, "songplays")
	assert.Contains(t, report, "song_id:string")
	for _, line := range strings.Split(strings.TrimSpace(report), "\n") {
		assert.Contains(t, line, " 1 rows", line)
	}
}

func TestInspectCommand_MissingTables(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, inspectCommand([]string{"-dir", t.TempDir()}, &out))
	assert.Equal(t, 5, strings.Count(out.String(), "missing"))

	assert.Error(t, inspectCommand(nil, &out))
}
