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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aaronlmathis/songlake/core"
)

// JSONReaderError provides structured error information for JSON lines reader operations
type JSONReaderError struct {
	Op     string // Operation that failed (e.g., "scan", "decode")
	Source string // Name of the stream being read, if known
	Line   int    // 1-based line number, 0 when not line specific
	Err    error  // Underlying error
}

func (e *JSONReaderError) Error() string {
	switch {
	case e.Source != "" && e.Line > 0:
		return fmt.Sprintf("json reader %s %s:%d: %v", e.Op, e.Source, e.Line, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("json reader %s line %d: %v", e.Op, e.Line, e.Err)
	default:
		return fmt.Sprintf("json reader %s: %v", e.Op, e.Err)
	}
}

func (e *JSONReaderError) Unwrap() error {
	return e.Err
}

// maxLineSize bounds a single JSON line.
const maxLineSize = 16 * 1024 * 1024

// JSONReader implements DataSource for JSON lines streams.
// Numbers decode as json.Number so large integers such as millisecond
// timestamps stay exact. Blank lines are skipped; any other line that is not a
// JSON object is an error.
type JSONReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	source  string
	line    int
}

// JSONReaderOption configures a JSONReader
type JSONReaderOption func(*JSONReader)

// WithJSONSource names the stream in error messages
func WithJSONSource(name string) JSONReaderOption {
	return func(j *JSONReader) {
		j.source = name
	}
}

// NewJSONReader creates a new JSON reader for line-delimited JSON
func NewJSONReader(r io.ReadCloser, opts ...JSONReaderOption) *JSONReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	j := &JSONReader{
		scanner: scanner,
		closer:  r,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Read implements the DataSource interface
func (j *JSONReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !j.scanner.Scan() {
			if err := j.scanner.Err(); err != nil {
				return nil, &JSONReaderError{Op: "scan", Source: j.source, Line: j.line + 1, Err: err}
			}
			return nil, io.EOF
		}
		j.line++

		line := bytes.TrimSpace(j.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		record, err := decodeObject(line)
		if err != nil {
			return nil, &JSONReaderError{Op: "decode", Source: j.source, Line: j.line, Err: err}
		}
		return record, nil
	}
}

// Close implements the DataSource interface
func (j *JSONReader) Close() error {
	if j.closer != nil {
		err := j.closer.Close()
		j.closer = nil
		return err
	}
	return nil
}

func decodeObject(line []byte) (core.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var record core.Record
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("line is not a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return record, nil
}
