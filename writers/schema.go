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
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/aaronlmathis/songlake/core"
)

// ArrowSchema maps columns to a nullable Arrow schema. Timestamps are stored
// with microsecond precision in UTC.
func ArrowSchema(columns []core.Column) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		dt, err := arrowType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func arrowType(t core.ColumnType) (arrow.DataType, error) {
	switch t {
	case core.TypeString:
		return arrow.BinaryTypes.String, nil
	case core.TypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case core.TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case core.TypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case core.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", t)
	}
}
