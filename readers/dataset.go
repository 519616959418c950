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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aaronlmathis/songlake/core"
)

// HiveDefaultPartition is the directory value used for a null partition key.
const HiveDefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// DatasetReader implements DataSource over a partitioned Parquet table directory
// laid out as <dir>/<k1>=<v1>/.../part-NNNNN.parquet. Partition values are
// decoded from the path and added to each record as strings, or nil for the
// default partition.
type DatasetReader struct {
	dir     string
	files   []string
	index   int
	current *ParquetReader
	parts   core.Record
}

// NewDatasetReader lists the data files of a table directory
func NewDatasetReader(dir string) (*DatasetReader, error) {
	d := &DatasetReader{dir: dir}
	err := filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") || strings.HasPrefix(e.Name(), "_") {
			return nil
		}
		d.files = append(d.files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset reader: listing %s: %w", dir, err)
	}
	sort.Strings(d.files)
	return d, nil
}

// Files returns the data files in read order
func (d *DatasetReader) Files() []string {
	return d.files
}

// NumRows sums the footer row counts of every data file
func (d *DatasetReader) NumRows() (int64, error) {
	var total int64
	for _, path := range d.files {
		r, err := NewParquetReader(path)
		if err != nil {
			return 0, err
		}
		total += r.NumRows()
		if err := r.Close(); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Columns returns the data columns of the first file, or nil for an empty table
func (d *DatasetReader) Columns() ([]core.Column, error) {
	if len(d.files) == 0 {
		return nil, nil
	}
	r, err := NewParquetReader(d.files[0])
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Columns(), nil
}

// Read implements the DataSource interface
func (d *DatasetReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if d.current == nil {
			if d.index >= len(d.files) {
				return nil, io.EOF
			}
			path := d.files[d.index]
			parts, err := partitionValues(d.dir, path)
			if err != nil {
				return nil, err
			}
			r, err := NewParquetReader(path)
			if err != nil {
				return nil, err
			}
			d.current, d.parts = r, parts
		}

		record, err := d.current.Read(ctx)
		if errors.Is(err, io.EOF) {
			if err := d.closeCurrent(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		for k, v := range d.parts {
			record[k] = v
		}
		return record, nil
	}
}

// Close implements the DataSource interface
func (d *DatasetReader) Close() error {
	return d.closeCurrent()
}

func (d *DatasetReader) closeCurrent() error {
	if d.current == nil {
		return nil
	}
	err := d.current.Close()
	d.current = nil
	d.index++
	return err
}

// partitionValues decodes the k=v directories between dir and the file
func partitionValues(dir, path string) (core.Record, error) {
	rel, err := filepath.Rel(dir, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	parts := core.Record{}
	if rel == "." {
		return parts, nil
	}
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			return nil, fmt.Errorf("dataset reader: %s is not a partition directory", segment)
		}
		if value == HiveDefaultPartition {
			parts[key] = nil
			continue
		}
		decoded, err := url.PathUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("dataset reader: partition %s: %w", segment, err)
		}
		parts[key] = decoded
	}
	return parts, nil
}
