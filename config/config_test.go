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
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
aws:
  region: us-west-2
  access_key_id: AKIDEXAMPLE
  secret_access_key: ${SONGLAKE_TEST_SECRET}
  endpoint: http://localhost:9000
  path_style: true
input:
  catalog: s3a://udacity-dend/song_data
  events: ./data/log_data
  suffix: .jsonl
output:
  uri: s3://lake/out/
  format: json
  compression: zstd
  max_rows_per_file: 1000
  postgres_dsn: postgres://localhost/songlake?sslmode=disable
  postgres_max_open_conns: 8
  postgres_max_idle_conns: 3
  postgres_conn_max_lifetime: 90s
timezone: Europe/Berlin
join_policy: ALL
workers: 3
log_mode: production
`

func TestParse_FullConfig(t *testing.T) {
	t.Setenv("SONGLAKE_TEST_SECRET", "s3cr3t")

	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", cfg.AWS.Region)
	assert.Equal(t, "s3cr3t", cfg.AWS.SecretAccessKey)
	assert.True(t, cfg.AWS.PathStyle)
	assert.Equal(t, ".jsonl", cfg.Input.Suffix)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 1000, cfg.Output.MaxRowsPerFile)
	assert.Equal(t, 4, cfg.Output.Concurrency)
	assert.Equal(t, "ALL", cfg.JoinPolicy)
	assert.Equal(t, 8, cfg.Output.PostgresMaxOpenConns)
	assert.Equal(t, 3, cfg.Output.PostgresMaxIdleConns)
	assert.Equal(t, 90*time.Second, cfg.Output.PostgresConnMaxLifetime)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "production", cfg.LogMode)
	assert.True(t, cfg.UsesS3())
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("input: {catalog: song_data, events: log_data}\noutput: {uri: out}\n"))
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "first", cfg.JoinPolicy)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, ".json", cfg.Input.Suffix)
	assert.Equal(t, "parquet", cfg.Output.Format)
	assert.False(t, cfg.UsesS3())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestParse_JoinPolicyIgnoresCase(t *testing.T) {
	for _, policy := range []string{"First", "all", "REJECT"} {
		_, err := Parse([]byte("input: {catalog: a, events: b}\noutput: {uri: c}\njoin_policy: " + policy + "\n"))
		assert.NoError(t, err, policy)
	}
}

func TestParse_RejectsNegativePool(t *testing.T) {
	_, err := Parse([]byte("input: {catalog: a, events: b}\noutput: {uri: c, postgres_max_open_conns: -1}\n"))
	assert.ErrorContains(t, err, "postgres pool")
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("input: {catalog: a, events: b}\noutput: {uri: c}\njoin_polcy: all\n"))
	assert.ErrorContains(t, err, "join_polcy")
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
input: {catalog: "", events: "ftp://x/y"}
output: {uri: out, format: csv, max_rows_per_file: -1}
timezone: Mars/Olympus
join_policy: any
aws: {access_key_id: AKID}
`))
	require.Error(t, err)
	for _, want := range []string{
		"input.catalog", "input.events", "output.format", "output.max_rows_per_file",
		"timezone", "join_policy", "aws",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songlake.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: {catalog: a, events: b}\noutput: {uri: c}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.Input.Catalog)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		in      string
		want    URI
		wantErr bool
	}{
		{in: "s3://bucket", want: URI{Bucket: "bucket"}},
		{in: "s3a://udacity-dend/song_data/", want: URI{Bucket: "udacity-dend", Prefix: "song_data"}},
		{in: "s3://b/a/b/c", want: URI{Bucket: "b", Prefix: "a/b/c"}},
		{in: "file:///tmp/out", want: URI{Path: "/tmp/out"}},
		{in: "data/log_data", want: URI{Path: "data/log_data"}},
		{in: "s3:///nobucket", wantErr: true},
		{in: "gs://b/p", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseURI(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "s3://b/p", URI{Bucket: "b", Prefix: "p"}.String())
	assert.Equal(t, "s3://b", URI{Bucket: "b"}.String())
	assert.Equal(t, "out", URI{Path: "out"}.String())
}

func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_REGION", "")
}

func TestAWSConfig_StaticCredentials(t *testing.T) {
	isolateAWSEnv(t)
	ctx := context.Background()

	a := AWSConfig{Region: "eu-central-1", AccessKeyID: "AKID", SecretAccessKey: "SECRET", SessionToken: "TOKEN"}
	cfg, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.Equal(t, "SECRET", creds.SecretAccessKey)
	assert.Equal(t, "TOKEN", creds.SessionToken)
}

func TestAWSConfig_NewS3Client(t *testing.T) {
	isolateAWSEnv(t)

	a := AWSConfig{Region: "us-east-1", AccessKeyID: "AKID", SecretAccessKey: "SECRET", Endpoint: "http://localhost:9000", PathStyle: true}
	client, err := a.NewS3Client(context.Background())
	require.NoError(t, err)

	opts := client.Options()
	assert.Equal(t, "http://localhost:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}
