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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aaronlmathis/songlake/core"
)

// FileReader implements DataSource over every JSON lines file below a local path.
// Files are read one after another in lexical path order. Names starting with
// "." or "_" are skipped, as are files that do not end in the configured suffix.
type FileReader struct {
	root    string
	suffix  string
	paths   []string
	index   int
	current *JSONReader
}

// FileReaderOption configures a FileReader
type FileReaderOption func(*FileReader)

// WithFileSuffix only reads files whose names end in suffix
func WithFileSuffix(suffix string) FileReaderOption {
	return func(f *FileReader) {
		f.suffix = suffix
	}
}

// NewFileReader lists the input files below root. root may also name a single file.
func NewFileReader(root string, opts ...FileReaderOption) (*FileReader, error) {
	f := &FileReader{root: root}
	for _, opt := range opts {
		opt(f)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("file reader: %w", err)
	}
	if !info.IsDir() {
		f.paths = []string{root}
		return f, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(name, f.suffix) {
			return nil
		}
		f.paths = append(f.paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file reader: listing %s: %w", root, err)
	}
	sort.Strings(f.paths)
	return f, nil
}

// Paths returns the files this reader covers, in read order
func (f *FileReader) Paths() []string {
	return f.paths
}

// Read implements the DataSource interface
func (f *FileReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if f.current == nil {
			if f.index >= len(f.paths) {
				return nil, io.EOF
			}
			path := f.paths[f.index]
			file, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("file reader: %w", err)
			}
			f.current = NewJSONReader(file, WithJSONSource(path))
		}

		record, err := f.current.Read(ctx)
		if errors.Is(err, io.EOF) {
			if err := f.closeCurrent(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return record, nil
	}
}

// Close implements the DataSource interface
func (f *FileReader) Close() error {
	return f.closeCurrent()
}

func (f *FileReader) closeCurrent() error {
	if f.current == nil {
		return nil
	}
	err := f.current.Close()
	f.current = nil
	f.index++
	return err
}
