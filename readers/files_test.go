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

package readers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileReader_WalksSortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "B", "b.json"), `{"n":"b"}`+"\n")
	writeFile(t, filepath.Join(root, "A", "A", "a2.json"), `{"n":"a2"}`+"\n")
	writeFile(t, filepath.Join(root, "A", "a1.json"), `{"n":"a1"}`+"\n"+`{"n":"a1b"}`+"\n")
	writeFile(t, filepath.Join(root, "A", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden", "h.json"), `{"n":"hidden"}`+"\n")
	writeFile(t, filepath.Join(root, "_SUCCESS.json"), `{"n":"marker"}`+"\n")

	reader, err := NewFileReader(root, WithFileSuffix(".json"))
	require.NoError(t, err)
	assert.Len(t, reader.Paths(), 3)

	records, err := readAll(t, reader)
	require.NoError(t, err)

	var got []interface{}
	for _, r := range records {
		got = append(got, r["n"])
	}
	assert.Equal(t, []interface{}{"a2", "a1", "a1b", "b"}, got)
	require.NoError(t, reader.Close())
}

func TestFileReader_SingleFileAndErrors(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "log.json")
	writeFile(t, path, `{"n":1}`+"\n"+`oops`+"\n")

	reader, err := NewFileReader(path)
	require.NoError(t, err)
	records, err := readAll(t, reader)
	assert.Len(t, records, 1)
	assert.ErrorContains(t, err, "log.json:2")

	_, err = NewFileReader(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestFileReader_EmptyDirectory(t *testing.T) {
	reader, err := NewFileReader(t.TempDir())
	require.NoError(t, err)
	records, err := readAll(t, reader)
	require.NoError(t, err)
	assert.Empty(t, records)
}
