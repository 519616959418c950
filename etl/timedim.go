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

package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/schema"
)

// TimeParts is the calendar decomposition of one event timestamp.
type TimeParts struct {
	StartTime time.Time
	Hour      int32
	Day       int32
	Week      int32 // ISO-8601 week of year
	Month     int32
	Year      int32
	Weekday   int32 // 1=Sunday ... 7=Saturday
}

// Decompose interprets ts as epoch milliseconds in loc.
func Decompose(ts int64, loc *time.Location) TimeParts {
	t := time.UnixMilli(ts).In(loc)
	_, week := t.ISOWeek()
	return TimeParts{
		StartTime: t,
		Hour:      int32(t.Hour()),
		Day:       int32(t.Day()),
		Week:      int32(week),
		Month:     int32(t.Month()),
		Year:      int32(t.Year()),
		Weekday:   int32(t.Weekday()) + 1,
	}
}

// Record renders the parts as a time row.
func (p TimeParts) Record() core.Record {
	return core.Record{
		schema.StartTime: p.StartTime,
		schema.Hour:      p.Hour,
		schema.Day:       p.Day,
		schema.Week:      p.Week,
		schema.Month:     p.Month,
		schema.Year:      p.Year,
		schema.Weekday:   p.Weekday,
	}
}

// TimeDecomposer maps a normalized event to a time row.
func TimeDecomposer(loc *time.Location) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		ts, err := eventTS(record)
		if err != nil {
			return nil, err
		}
		return Decompose(ts, loc).Record(), nil
	})
}

// timeColumns is the full time tuple used for deduplication.
var timeColumns = []string{
	schema.StartTime, schema.Hour, schema.Day, schema.Week, schema.Month, schema.Year, schema.Weekday,
}

func eventTS(record core.Record) (int64, error) {
	switch v := record.Value(schema.EventTS).(type) {
	case int64:
		return v, nil
	case nil:
		return 0, fmt.Errorf("event has no %s", schema.EventTS)
	default:
		return 0, fmt.Errorf("event %s has type %T, expected int64", schema.EventTS, v)
	}
}
