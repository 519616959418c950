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

package aggregate

import (
	"context"

	"github.com/aaronlmathis/songlake/core"
)

// Distinct removes duplicate records, comparing the configured fields as a tuple.
//
// Only the listed fields are kept in the output. The first occurrence of each tuple
// wins and output follows first-seen order, so results are reproducible for a given
// input order.
type Distinct struct {
	fields []string
	seen   map[string]struct{}
	rows   []core.Record
}

// NewDistinct creates a Distinct aggregator over the given fields.
func NewDistinct(fields ...string) *Distinct {
	return &Distinct{
		fields: fields,
		seen:   make(map[string]struct{}),
	}
}

// Add implements Aggregator.
func (d *Distinct) Add(ctx context.Context, record core.Record) error {
	key := core.TupleKey(record, d.fields)
	if _, dup := d.seen[key]; dup {
		return nil
	}
	d.seen[key] = struct{}{}

	row := make(core.Record, len(d.fields))
	for _, field := range d.fields {
		if value, exists := record[field]; exists {
			row[field] = value
		}
	}
	d.rows = append(d.rows, row)
	return nil
}

// Rows implements Aggregator.
func (d *Distinct) Rows() ([]core.Record, error) {
	return d.rows, nil
}

// Reset implements Aggregator.
func (d *Distinct) Reset() {
	d.seen = make(map[string]struct{})
	d.rows = nil
}
