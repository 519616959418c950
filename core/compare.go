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

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// CompareValues orders two normalized record values.
// nil sorts before everything else. Values of different kinds are ordered by kind
// so the result is always a total order.
func CompareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb)
		}
	case int32:
		if vb, ok := b.(int32); ok {
			return cmpOrdered(va, vb)
		}
	case int64:
		if vb, ok := b.(int64); ok {
			return cmpOrdered(va, vb)
		}
	case int:
		if vb, ok := b.(int); ok {
			return cmpOrdered(va, vb)
		}
	case float64:
		if vb, ok := b.(float64); ok {
			return cmpOrdered(va, vb)
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0
			case !va:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	}

	return strings.Compare(kindOf(a), kindOf(b))
}

func cmpOrdered[T int | int32 | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func kindOf(v interface{}) string {
	return fmt.Sprintf("%T", v)
}

// TupleKey encodes the given fields of a record into a string usable as a map key.
// Two records yield the same key exactly when the fields are equal value by value.
// Absent and nil fields encode identically.
func TupleKey(record Record, fields []string) string {
	var sb strings.Builder
	var buf [8]byte
	for _, field := range fields {
		switch v := record[field].(type) {
		case nil:
			sb.WriteByte('n')
		case string:
			sb.WriteByte('s')
			binary.BigEndian.PutUint64(buf[:], uint64(len(v)))
			sb.Write(buf[:])
			sb.WriteString(v)
		case int32:
			sb.WriteByte('i')
			binary.BigEndian.PutUint64(buf[:], uint64(int64(v)))
			sb.Write(buf[:])
		case int64:
			sb.WriteByte('l')
			binary.BigEndian.PutUint64(buf[:], uint64(v))
			sb.Write(buf[:])
		case int:
			sb.WriteByte('l')
			binary.BigEndian.PutUint64(buf[:], uint64(int64(v)))
			sb.Write(buf[:])
		case float64:
			sb.WriteByte('f')
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
			sb.Write(buf[:])
		case bool:
			if v {
				sb.WriteByte('T')
			} else {
				sb.WriteByte('F')
			}
		case time.Time:
			sb.WriteByte('t')
			binary.BigEndian.PutUint64(buf[:], uint64(v.UnixNano()))
			sb.Write(buf[:])
		default:
			s := fmt.Sprintf("%T:%v", v, v)
			sb.WriteByte('x')
			binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
			sb.Write(buf[:])
			sb.WriteString(s)
		}
	}
	return sb.String()
}
