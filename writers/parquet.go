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
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/songlake/core"
)

// Package writers provides the output side of Songlake: record-at-a-time file
// writers, object stores and the partitioned table sink built on top of them.
//
// This file implements a batching, schema-driven Parquet writer.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "write", "flush_batch", "append_value")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriter implements core.DataSink for a single Parquet stream.
// The schema is fixed at construction, so a writer closed without any records
// still produces a valid, empty file.
type ParquetWriter struct {
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	closed       bool
	errorState   bool
	batchSize    int64
	recordBuffer []core.Record
	builders     []array.Builder
	allocator    memory.Allocator
	stats        WriterStats
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize      int64                // Number of records to buffer before writing
	Compression    compress.Compression // Compression algorithm
	RowGroupSize   int64                // Maximum rows per row group
	compressionSet bool
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
		opts.compressionSet = true
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// ParseCompression maps a codec name to a Parquet compression codec.
func ParseCompression(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported parquet compression %q", name)
	}
}

// NewParquetWriter creates a Parquet writer that encodes records with schema into w.
// If w is an io.Closer it is closed by Close.
func NewParquetWriter(w io.Writer, schema *arrow.Schema, options ...WriterOption) (*ParquetWriter, error) {
	if schema == nil {
		return nil, &ParquetWriterError{Op: "schema", Err: fmt.Errorf("schema is required")}
	}

	opts := &ParquetWriterOptions{}
	for _, option := range options {
		option(opts)
	}
	opts.withDefaults()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithMaxRowGroupLength(opts.RowGroupSize),
	)

	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, &ParquetWriterError{
			Op:  "create_writer",
			Err: fmt.Errorf("failed to create parquet file writer: %w", err),
		}
	}

	allocator := memory.NewGoAllocator()
	builders := make([]array.Builder, len(schema.Fields()))
	for i, field := range schema.Fields() {
		builders[i] = array.NewBuilder(allocator, field.Type)
	}

	return &ParquetWriter{
		writer:       fw,
		schema:       schema,
		batchSize:    opts.BatchSize,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		builders:     builders,
		allocator:    allocator,
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// withDefaults applies default values to zero-valued options.
func (opts *ParquetWriterOptions) withDefaults() {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = 64 * 1024
	}
	if !opts.compressionSet {
		opts.Compression = compress.Codecs.Snappy
	}
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// Schema returns the Arrow schema the writer encodes.
func (p *ParquetWriter) Schema() *arrow.Schema {
	return p.schema
}

// Write implements the core.DataSink interface.
// Buffers records and writes in batches.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	p.recordBuffer = append(p.recordBuffer, record)

	if int64(len(p.recordBuffer)) >= p.batchSize {
		if err := p.flushBatch(); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
// Forces any buffered records to be written as a record batch.
func (p *ParquetWriter) Flush() error {
	return p.flushBatch()
}

// Close implements the core.DataSink interface.
// Flushes, writes the footer and releases all resources.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var flushErr error
	if !p.errorState {
		flushErr = p.flushBatch()
	}

	for _, builder := range p.builders {
		builder.Release()
	}
	p.builders = nil

	if err := p.writer.Close(); err != nil && !errors.Is(err, os.ErrClosed) && flushErr == nil {
		return &ParquetWriterError{
			Op:  "close_writer",
			Err: fmt.Errorf("failed to close parquet writer: %w", err),
		}
	}
	return flushErr
}

// flushBatch writes the current buffer as one Arrow record batch.
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}

	startTime := time.Now()

	record, err := p.createArrowRecord(p.recordBuffer)
	if err != nil {
		p.errorState = true
		return err
	}
	defer record.Release()

	if err := p.writer.Write(record); err != nil {
		p.errorState = true
		return &ParquetWriterError{
			Op:  "write_batch",
			Err: fmt.Errorf("failed to write record batch: %w", err),
		}
	}

	p.stats.RecordsWritten += int64(len(p.recordBuffer))
	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(startTime)

	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

// createArrowRecord converts a slice of core.Record to an Arrow Record.
func (p *ParquetWriter) createArrowRecord(records []core.Record) (arrow.Record, error) {
	for _, record := range records {
		for i, field := range p.schema.Fields() {
			value := record.Value(field.Name)
			if value == nil {
				p.builders[i].AppendNull()
				p.stats.NullValueCounts[field.Name]++
				continue
			}

			if err := appendValue(p.builders[i], value); err != nil {
				// Leave the builders empty for the next batch.
				for _, b := range p.builders {
					b.NewArray().Release()
				}
				return nil, &ParquetWriterError{
					Op:  "append_value",
					Err: fmt.Errorf("field %s: %w", field.Name, err),
				}
			}
		}
	}

	arrays := make([]arrow.Array, len(p.builders))
	for i, builder := range p.builders {
		arrays[i] = builder.NewArray()
		defer arrays[i].Release()
	}

	return array.NewRecord(p.schema, arrays, int64(len(records))), nil
}

// appendValue appends a non-nil value to the builder matching its column type.
// Integer widths are converted with range checks; any other mismatch is an error.
func appendValue(builder array.Builder, value interface{}) error {
	switch b := builder.(type) {
	case *array.StringBuilder:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		b.Append(v)

	case *array.Int32Builder:
		v, err := asInt64(value)
		if err != nil {
			return err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("value %d out of range for int32", v)
		}
		b.Append(int32(v))

	case *array.Int64Builder:
		v, err := asInt64(value)
		if err != nil {
			return err
		}
		b.Append(v)

	case *array.Float64Builder:
		switch v := value.(type) {
		case float64:
			b.Append(v)
		case float32:
			b.Append(float64(v))
		default:
			return fmt.Errorf("expected float64, got %T", value)
		}

	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		b.Append(v)

	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", value)
		}
		b.Append(arrow.Timestamp(v.UnixMicro()))

	default:
		return fmt.Errorf("unsupported builder type %T", builder)
	}
	return nil
}

func asInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}
