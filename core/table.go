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

package core

import "fmt"

// ColumnType is the logical type of an output column.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeTimestamp
)

func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column describes one output column. All columns are nullable.
type Column struct {
	Name string
	Type ColumnType
}

// Table describes an output table: its name, ordered columns and partition keys.
type Table struct {
	Name        string
	Columns     []Column
	PartitionBy []string
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// DataColumns returns the columns that are not partition keys, in declaration order.
// Partition values live in the directory layout, not in the data files.
func (t Table) DataColumns() []Column {
	part := make(map[string]bool, len(t.PartitionBy))
	for _, p := range t.PartitionBy {
		part[p] = true
	}
	cols := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !part[c.Name] {
			cols = append(cols, c)
		}
	}
	return cols
}

// Validate checks that every partition key names a declared column.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Name] {
			return fmt.Errorf("table %s declares column %s twice", t.Name, c.Name)
		}
		seen[c.Name] = true
	}
	for _, p := range t.PartitionBy {
		if !seen[p] {
			return fmt.Errorf("table %s partition key %s is not a column", t.Name, p)
		}
	}
	return nil
}
