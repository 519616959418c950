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

// validators.go - Data quality checks for pipeline outputs
package validators

import (
	"context"
	"fmt"
	"sort"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/dag/tasks"
)

// DataQualityValidator implements tasks.Checker.
// It reports record-count shortfalls, null required fields, high null rates and
// repeated values of fields expected to be unique. Findings are reported, never fixed.
type DataQualityValidator struct {
	MinRecords     int      // Minimum number of records expected
	MaxNullRate    float64  // Maximum allowed null rate per field (0 disables the check)
	RequiredFields []string // Fields expected to be non-null in every record
	UniqueFields   []string // Fields whose values are expected to appear at most once
	MaxExamples    int      // Number of offending values quoted per issue
}

// DataQualityOption is a functional option for configuring DataQualityValidator
type DataQualityOption func(*DataQualityValidator)

// NewDataQualityValidator creates a data quality validator with the given options
func NewDataQualityValidator(opts ...DataQualityOption) *DataQualityValidator {
	dqv := &DataQualityValidator{MaxExamples: 5}
	for _, opt := range opts {
		opt(dqv)
	}
	return dqv
}

// WithMinRecords sets the minimum record count
func WithMinRecords(min int) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MinRecords = min
	}
}

// WithMaxNullRate sets the maximum null value rate
func WithMaxNullRate(rate float64) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MaxNullRate = rate
	}
}

// WithRequiredFields sets fields that must be non-null
func WithRequiredFields(fields ...string) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.RequiredFields = append(dqv.RequiredFields, fields...)
	}
}

// WithUniqueFields sets fields whose values must not repeat
func WithUniqueFields(fields ...string) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.UniqueFields = append(dqv.UniqueFields, fields...)
	}
}

// Check implements tasks.Checker
func (dqv *DataQualityValidator) Check(ctx context.Context, records []core.Record) (tasks.CheckResult, error) {
	var issues []string

	if len(records) < dqv.MinRecords {
		issues = append(issues, fmt.Sprintf("insufficient records: got %d, expected at least %d", len(records), dqv.MinRecords))
	}

	if err := ctx.Err(); err != nil {
		return tasks.CheckResult{}, err
	}

	issues = append(issues, dqv.checkRequired(records)...)
	issues = append(issues, dqv.checkNullRates(records)...)
	issues = append(issues, dqv.checkUnique(records)...)

	return tasks.CheckResult{Passed: len(issues) == 0, Issues: issues}, nil
}

// checkRequired counts records with a null required field
func (dqv *DataQualityValidator) checkRequired(records []core.Record) []string {
	var issues []string
	for _, field := range dqv.RequiredFields {
		missing := 0
		for _, record := range records {
			if record.Value(field) == nil {
				missing++
			}
		}
		if missing > 0 {
			issues = append(issues, fmt.Sprintf("field %s is null in %d of %d records", field, missing, len(records)))
		}
	}
	return issues
}

// checkNullRates checks null value rates across all fields seen in the records
func (dqv *DataQualityValidator) checkNullRates(records []core.Record) []string {
	if dqv.MaxNullRate <= 0 || len(records) == 0 {
		return nil
	}

	fieldNames := make(map[string]bool)
	for _, record := range records {
		for field := range record {
			fieldNames[field] = true
		}
	}
	fields := make([]string, 0, len(fieldNames))
	for field := range fieldNames {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var issues []string
	for _, field := range fields {
		nullCount := 0
		for _, record := range records {
			if record.Value(field) == nil {
				nullCount++
			}
		}

		nullRate := float64(nullCount) / float64(len(records))
		if nullRate > dqv.MaxNullRate {
			issues = append(issues, fmt.Sprintf("field %s has null rate %.2f, exceeds maximum %.2f",
				field, nullRate, dqv.MaxNullRate))
		}
	}
	return issues
}

// checkUnique reports values that appear in more than one record
func (dqv *DataQualityValidator) checkUnique(records []core.Record) []string {
	var issues []string
	for _, field := range dqv.UniqueFields {
		counts := make(map[string]int)
		values := make(map[string]interface{})
		var order []string
		for _, record := range records {
			value := record.Value(field)
			if value == nil {
				continue
			}
			key := core.TupleKey(record, []string{field})
			if counts[key] == 0 {
				order = append(order, key)
				values[key] = value
			}
			counts[key]++
		}

		var dups []interface{}
		for _, key := range order {
			if counts[key] > 1 {
				dups = append(dups, values[key])
			}
		}
		if len(dups) == 0 {
			continue
		}

		examples := dups
		if dqv.MaxExamples > 0 && len(examples) > dqv.MaxExamples {
			examples = examples[:dqv.MaxExamples]
		}
		issues = append(issues, fmt.Sprintf("field %s has %d duplicated values, e.g. %v", field, len(dups), examples))
	}
	return issues
}
