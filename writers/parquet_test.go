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
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/readers"
)

var userColumns = []core.Column{
	{Name: "user_id", Type: core.TypeString},
	{Name: "session_id", Type: core.TypeInt64},
	{Name: "hour", Type: core.TypeInt32},
}

func newFileWriter(t *testing.T, opts ...WriterOption) (*ParquetWriter, string) {
	t.Helper()
	schema, err := ArrowSchema(userColumns)
	require.NoError(t, err)

	filename := filepath.Join(t.TempDir(), "out.parquet")
	f, err := os.Create(filename)
	require.NoError(t, err)

	w, err := NewParquetWriter(f, schema, opts...)
	require.NoError(t, err)
	return w, filename
}

// TestParquetWriter_BasicFunctionality tests core write operations
func TestParquetWriter_BasicFunctionality(t *testing.T) {
	writer, filename := newFileWriter(t, WithBatchSize(2), WithCompression(compress.Codecs.Uncompressed))
	ctx := context.Background()

	records := []core.Record{
		{"user_id": "10", "session_id": int64(345), "hour": int32(21)},
		{"user_id": "11", "session_id": int64(346)},
		{"user_id": nil, "session_id": 7, "hour": int64(3)},
	}
	for _, record := range records {
		require.NoError(t, writer.Write(ctx, record))
	}

	stats := writer.Stats()
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(1), stats.BatchesWritten)

	require.NoError(t, writer.Close())
	assert.Equal(t, int64(3), writer.Stats().RecordsWritten)
	assert.Equal(t, int64(1), writer.Stats().NullValueCounts["hour"])

	r, err := readers.NewParquetReader(filename)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(3), r.NumRows())

	first, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Record{"user_id": "10", "session_id": int64(345), "hour": int32(21)}, first)
}

// TestParquetWriter_EmptyFileIsValid checks that a writer closed without rows leaves a readable file
func TestParquetWriter_EmptyFileIsValid(t *testing.T) {
	writer, filename := newFileWriter(t)
	require.NoError(t, writer.Close())

	r, err := readers.NewParquetReader(filename)
	require.NoError(t, err)
	defer r.Close()
	assert.Zero(t, r.NumRows())
	assert.Equal(t, userColumns, r.Columns())
}

// TestParquetWriter_ErrorHandling tests strict typing and closed-writer errors
func TestParquetWriter_ErrorHandling(t *testing.T) {
	ctx := context.Background()

	t.Run("string_in_int_column", func(t *testing.T) {
		writer, _ := newFileWriter(t, WithBatchSize(1))
		err := writer.Write(ctx, core.Record{"session_id": "345"})
		var pwErr *ParquetWriterError
		require.ErrorAs(t, err, &pwErr)
		assert.Equal(t, "append_value", pwErr.Op)

		// The writer stays failed.
		assert.Error(t, writer.Write(ctx, core.Record{"user_id": "10"}))
		writer.Close()
	})

	t.Run("int32_overflow", func(t *testing.T) {
		writer, _ := newFileWriter(t, WithBatchSize(1))
		err := writer.Write(ctx, core.Record{"hour": int64(1) << 40})
		assert.ErrorContains(t, err, "out of range")
		writer.Close()
	})

	t.Run("write_after_close", func(t *testing.T) {
		writer, _ := newFileWriter(t)
		require.NoError(t, writer.Close())
		assert.Error(t, writer.Write(ctx, core.Record{"user_id": "10"}))
		assert.NoError(t, writer.Close())
	})
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]compress.Compression{
		"":             compress.Codecs.Snappy,
		"snappy":       compress.Codecs.Snappy,
		"none":         compress.Codecs.Uncompressed,
		"uncompressed": compress.Codecs.Uncompressed,
		"gzip":         compress.Codecs.Gzip,
		"zstd":         compress.Codecs.Zstd,
	} {
		got, err := ParseCompression(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseCompression("lzo")
	assert.Error(t, err)
}

func TestArrowSchema(t *testing.T) {
	schema, err := ArrowSchema([]core.Column{{Name: "start_time", Type: core.TypeTimestamp}})
	require.NoError(t, err)
	assert.Equal(t, "timestamp[us, tz=UTC]", schema.Field(0).Type.String())

	_, err = ArrowSchema([]core.Column{{Name: "x", Type: core.ColumnType(99)}})
	assert.ErrorContains(t, err, "x")
}
