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

package config

import (
	"fmt"
	"strings"
)

// URI is a parsed input or output location: an S3 bucket and key prefix, or a local path.
type URI struct {
	Bucket string
	Prefix string
	Path   string
}

// IsS3 reports whether the location is in S3.
func (u URI) IsS3() bool {
	return u.Bucket != ""
}

func (u URI) String() string {
	if u.IsS3() {
		if u.Prefix == "" {
			return "s3://" + u.Bucket
		}
		return "s3://" + u.Bucket + "/" + u.Prefix
	}
	return u.Path
}

// ParseURI accepts s3://bucket/prefix (s3a:// and s3n:// are aliases),
// file:///path, or a plain local path.
func ParseURI(raw string) (URI, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return URI{}, fmt.Errorf("location is required")
	}

	for _, scheme := range []string{"s3://", "s3a://", "s3n://"} {
		if rest, ok := strings.CutPrefix(raw, scheme); ok {
			bucket, prefix, _ := strings.Cut(rest, "/")
			if bucket == "" {
				return URI{}, fmt.Errorf("%q has no bucket", raw)
			}
			return URI{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
		}
	}

	if rest, ok := strings.CutPrefix(raw, "file://"); ok {
		raw = rest
	}
	if strings.Contains(raw, "://") {
		return URI{}, fmt.Errorf("unsupported scheme in %q", raw)
	}
	return URI{Path: raw}, nil
}
