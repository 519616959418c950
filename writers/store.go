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
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// OutputFormat represents a supported data file format.
type OutputFormat int

const (
	FormatParquet OutputFormat = iota
	FormatJSON
)

// ParseFormat maps a format name to an OutputFormat.
func ParseFormat(name string) (OutputFormat, error) {
	switch strings.ToLower(name) {
	case "", "parquet":
		return FormatParquet, nil
	case "json", "jsonl":
		return FormatJSON, nil
	default:
		return FormatParquet, fmt.Errorf("unsupported output format %q", name)
	}
}

func (f OutputFormat) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "parquet"
}

// extension is the data file suffix for the format.
func (f OutputFormat) extension() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".parquet"
}

// ObjectStore is a flat key/value blob store. Keys use "/" separators.
type ObjectStore interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) error
	// DeletePrefix removes every object whose key lies under prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// Location describes the store root for logging.
	Location() string
}

// LocalStore keeps objects as files below a root directory.
type LocalStore struct {
	Root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Root: dir}
}

func (l *LocalStore) path(key string) string {
	return filepath.Join(l.Root, filepath.FromSlash(key))
}

// Put implements ObjectStore.
func (l *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := l.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// DeletePrefix implements ObjectStore. The prefix names a directory.
func (l *LocalStore) DeletePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Trim(prefix, "/") == "" {
		return fmt.Errorf("refusing to delete the store root")
	}
	if err := os.RemoveAll(l.path(prefix)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", prefix, err)
	}
	return nil
}

// Location implements ObjectStore.
func (l *LocalStore) Location() string {
	return l.Root
}

// S3StoreAPI is the subset of the S3 client the store needs.
type S3StoreAPI interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store keeps objects in a bucket below a key prefix.
type S3Store struct {
	client S3StoreAPI
	bucket string
	prefix string
}

// NewS3Store creates a store writing to s3://bucket/prefix.
func NewS3Store(client S3StoreAPI, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put implements ObjectStore.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, s.key(key), err)
	}
	return nil
}

// DeletePrefix implements ObjectStore. The prefix is treated as a directory, so
// deleting "songs.parquet" leaves "songs.parquet.bak/..." alone.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	if strings.Trim(prefix, "/") == "" {
		return fmt.Errorf("refusing to delete the store root")
	}
	dir := s.key(strings.Trim(prefix, "/")) + "/"

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(dir),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, dir, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects under s3://%s/%s: %w", s.bucket, dir, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("failed to delete s3://%s/%s: %s", s.bucket, aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return nil
}

// Location implements ObjectStore.
func (s *S3Store) Location() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}
