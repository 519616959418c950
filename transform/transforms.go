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

package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aaronlmathis/songlake/core"
)

// Package transform provides reusable, composable record transformation functions.
//
// This package includes field selection, renaming, required-field checks and null-preserving
// type coercion. All functions return core.Transformer implementations for use in pipeline tasks.

// Chain composes transformers into one, applying them in order.
func Chain(transformers ...core.Transformer) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		current := record
		for _, t := range transformers {
			next, err := t.Transform(ctx, current)
			if err != nil {
				return nil, err
			}
			current = next
		}
		return current, nil
	})
}

// Select creates a transformer that selects only the specified fields from each record.
// Fields not listed are omitted from the output record; listed fields that are absent stay absent.
func Select(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(fields))
		for _, field := range fields {
			if value, exists := record[field]; exists {
				result[field] = value
			}
		}
		return result, nil
	})
}

// Rename creates a transformer that renames fields according to the provided mapping.
// Keys are original field names, values are new field names.
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for key, value := range record {
			if newKey, exists := mapping[key]; exists {
				result[newKey] = value
			} else {
				result[key] = value
			}
		}
		return result, nil
	})
}

// Require creates a transformer that fails when any of the fields is absent or nil.
func Require(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		for _, field := range fields {
			if record[field] == nil {
				return nil, fmt.Errorf("required field %s is missing", field)
			}
		}
		return record, nil
	})
}

// ValueKind is a normalized value type that coercion transformers convert to.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt32
	KindInt64
	KindFloat64
)

// ConvertType creates a transformer that coerces the given fields to kind.
// nil and absent fields are left untouched; a value that cannot be converted is an error.
func ConvertType(kind ValueKind, fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.Clone()
		for _, field := range fields {
			value, exists := record[field]
			if !exists || value == nil {
				continue
			}
			converted, err := convertValue(value, kind)
			if err != nil {
				return nil, fmt.Errorf("failed to convert field %s: %w", field, err)
			}
			result[field] = converted
		}
		return result, nil
	})
}

// ToString creates a transformer that converts fields to string.
func ToString(fields ...string) core.Transformer {
	return ConvertType(KindString, fields...)
}

// ToInt32 creates a transformer that converts fields to int32.
func ToInt32(fields ...string) core.Transformer {
	return ConvertType(KindInt32, fields...)
}

// ToInt64 creates a transformer that converts fields to int64.
func ToInt64(fields ...string) core.Transformer {
	return ConvertType(KindInt64, fields...)
}

// ToFloat creates a transformer that converts fields to float64.
func ToFloat(fields ...string) core.Transformer {
	return ConvertType(KindFloat64, fields...)
}

// convertValue converts a non-nil value to the requested kind.
func convertValue(value interface{}, kind ValueKind) (interface{}, error) {
	switch kind {
	case KindString:
		return convertToString(value)
	case KindInt32:
		v, err := convertToInt64(value)
		if err != nil {
			return nil, err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("value %d out of range for int32", v)
		}
		return int32(v), nil
	case KindInt64:
		return convertToInt64(value)
	case KindFloat64:
		return convertToFloat(value)
	default:
		return nil, fmt.Errorf("unsupported target kind: %d", kind)
	}
}

// convertToString attempts to convert a value to string.
func convertToString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}

// convertToInt64 attempts to convert a value to int64. Fractional values are rejected.
func convertToInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return floatToInt64(f)
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to int64", v)
		}
		return floatToInt64(f)
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return floatToInt64(v)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("value %v is not integral", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v out of range for int64", f)
	}
	return int64(f), nil
}

// convertToFloat attempts to convert a value to float64.
func convertToFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}
