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
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/logger"
)

const (
	// HiveDefaultPartition is the directory value used for a null or empty partition key.
	HiveDefaultPartition = "__HIVE_DEFAULT_PARTITION__"
	// SuccessMarker is written after every data file of a table.
	SuccessMarker = "_SUCCESS"
)

// PartitionedWriter implements core.TableSink on top of an ObjectStore.
//
// Each table is written below "<table>.parquet/". Whatever was there before is
// deleted first. Rows are grouped by the table's partition columns into
// Hive-style "k=v" directories, and partition columns are left out of the data
// files. Groups are laid out in ascending partition-value order with files
// named part-00000, part-00001, and so on.
type PartitionedWriter struct {
	store          ObjectStore
	format         OutputFormat
	maxRowsPerFile int
	concurrency    int
	parquetOpts    []WriterOption
	log            *logger.Logger
}

// PartitionedOption configures a PartitionedWriter.
type PartitionedOption func(*PartitionedWriter)

// WithFormat sets the data file format.
func WithFormat(format OutputFormat) PartitionedOption {
	return func(w *PartitionedWriter) {
		w.format = format
	}
}

// WithMaxRowsPerFile splits partitions into files of at most n rows. 0 means unlimited.
func WithMaxRowsPerFile(n int) PartitionedOption {
	return func(w *PartitionedWriter) {
		w.maxRowsPerFile = n
	}
}

// WithConcurrency sets how many files are encoded and uploaded at once.
func WithConcurrency(n int) PartitionedOption {
	return func(w *PartitionedWriter) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithParquetOptions passes options to every Parquet file writer.
func WithParquetOptions(opts ...WriterOption) PartitionedOption {
	return func(w *PartitionedWriter) {
		w.parquetOpts = append(w.parquetOpts, opts...)
	}
}

// WithLogger sets the writer logger.
func WithLogger(log *logger.Logger) PartitionedOption {
	return func(w *PartitionedWriter) {
		if log != nil {
			w.log = log
		}
	}
}

// NewPartitionedWriter creates a table sink writing into store.
func NewPartitionedWriter(store ObjectStore, opts ...PartitionedOption) *PartitionedWriter {
	w := &PartitionedWriter{
		store:       store,
		format:      FormatParquet,
		concurrency: 4,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// TableDir is the directory, relative to the store root, that holds a table.
func TableDir(table string) string {
	return table + ".parquet"
}

// partitionGroup is the set of rows sharing one partition tuple.
type partitionGroup struct {
	path   string
	values []interface{}
	rows   []core.Record
}

// dataFile is one file to encode and store.
type dataFile struct {
	key  string
	rows []core.Record
}

// WriteTable implements core.TableSink.
func (w *PartitionedWriter) WriteTable(ctx context.Context, table core.Table, rows []core.Record) error {
	start := time.Now()
	if err := table.Validate(); err != nil {
		return err
	}

	columns := table.DataColumns()
	schema, err := ArrowSchema(columns)
	if err != nil {
		return fmt.Errorf("table %s: %w", table.Name, err)
	}

	dir := TableDir(table.Name)
	if err := w.store.DeletePrefix(ctx, dir); err != nil {
		return fmt.Errorf("table %s: clearing previous output: %w", table.Name, err)
	}

	files := w.plan(dir, table, rows)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, f := range files {
		f := f
		g.Go(func() error {
			data, err := w.encode(gctx, schema, columns, f.rows)
			if err != nil {
				return fmt.Errorf("table %s: encoding %s: %w", table.Name, f.key, err)
			}
			return w.store.Put(gctx, f.key, data)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := w.store.Put(ctx, dir+"/"+SuccessMarker, nil); err != nil {
		return fmt.Errorf("table %s: writing success marker: %w", table.Name, err)
	}

	w.log.Info("table written",
		"table", table.Name,
		"location", w.store.Location()+"/"+dir,
		"format", w.format.String(),
		"rows", len(rows),
		"files", len(files),
		"duration", time.Since(start))
	return nil
}

// plan groups rows by partition tuple and splits each group into files.
func (w *PartitionedWriter) plan(dir string, table core.Table, rows []core.Record) []dataFile {
	var groups []*partitionGroup
	if len(table.PartitionBy) == 0 {
		// Unpartitioned tables always get a file, even when empty.
		groups = []*partitionGroup{{rows: rows}}
	} else {
		// Rows are grouped by rendered directory, so values that render alike
		// ("" and nil, int32 and int64) share one partition.
		index := make(map[string]*partitionGroup)
		for _, row := range rows {
			values := make([]interface{}, len(table.PartitionBy))
			for i, col := range table.PartitionBy {
				values[i] = row.Value(col)
			}
			path := PartitionPath(table.PartitionBy, values)
			g, ok := index[path]
			if !ok {
				g = &partitionGroup{path: path, values: values}
				index[path] = g
				groups = append(groups, g)
			}
			g.rows = append(g.rows, row)
		}
		sort.SliceStable(groups, func(i, j int) bool {
			return compareTuples(groups[i].values, groups[j].values) < 0
		})
	}

	var files []dataFile
	for _, g := range groups {
		base := dir
		if g.path != "" {
			base = dir + "/" + g.path
		}
		for i, chunk := range splitRows(g.rows, w.maxRowsPerFile) {
			files = append(files, dataFile{
				key:  fmt.Sprintf("%s/part-%05d%s", base, i, w.format.extension()),
				rows: chunk,
			})
		}
	}
	return files
}

// encode renders rows, restricted to columns, as one data file.
func (w *PartitionedWriter) encode(ctx context.Context, schema *arrow.Schema, columns []core.Column, rows []core.Record) ([]byte, error) {
	var buf bytes.Buffer

	var sink core.DataSink
	switch w.format {
	case FormatJSON:
		sink = NewJSONWriter(&buf)
	default:
		pw, err := NewParquetWriter(&buf, schema, w.parquetOpts...)
		if err != nil {
			return nil, err
		}
		sink = pw
	}

	for _, row := range rows {
		projected := make(core.Record, len(columns))
		for _, col := range columns {
			projected[col.Name] = row.Value(col.Name)
		}
		if err := sink.Write(ctx, projected); err != nil {
			sink.Close()
			return nil, err
		}
	}
	if err := sink.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func splitRows(rows []core.Record, max int) [][]core.Record {
	if max <= 0 || len(rows) <= max {
		return [][]core.Record{rows}
	}
	var chunks [][]core.Record
	for lo := 0; lo < len(rows); lo += max {
		chunks = append(chunks, rows[lo:min(lo+max, len(rows))])
	}
	return chunks
}

func compareTuples(a, b []interface{}) int {
	for i := range a {
		if c := core.CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// PartitionPath renders partition keys and values as "k1=v1/k2=v2".
func PartitionPath(keys []string, values []interface{}) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = escapePathName(key) + "=" + PartitionValue(values[i])
	}
	return strings.Join(parts, "/")
}

// PartitionValue renders one partition value as a directory name component.
func PartitionValue(v interface{}) string {
	var s string
	switch x := v.(type) {
	case nil:
		return HiveDefaultPartition
	case string:
		s = x
	case int:
		s = strconv.Itoa(x)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		s = x.UTC().Format("2006-01-02 15:04:05.999999")
	default:
		s = fmt.Sprint(x)
	}
	if s == "" {
		return HiveDefaultPartition
	}
	return escapePathName(s)
}

// escapePathName percent-encodes the characters Hive escapes in partition paths.
func escapePathName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}
