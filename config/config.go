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

// Package config loads the Songlake run configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve without a system zoneinfo database

	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/songlake/etl"
	"github.com/aaronlmathis/songlake/writers"
)

// Config is the complete run configuration.
type Config struct {
	AWS        AWSConfig    `yaml:"aws"`
	Input      InputConfig  `yaml:"input"`
	Output     OutputConfig `yaml:"output"`
	Timezone   string       `yaml:"timezone"`
	JoinPolicy string       `yaml:"join_policy"`
	Workers    int          `yaml:"workers"`
	LogMode    string       `yaml:"log_mode"`
}

// AWSConfig holds S3 access settings. Empty keys fall back to the default credential chain.
type AWSConfig struct {
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
}

// InputConfig locates the two input record streams.
type InputConfig struct {
	Catalog string `yaml:"catalog"`
	Events  string `yaml:"events"`
	Suffix  string `yaml:"suffix"`
}

// OutputConfig locates and shapes the output tables.
type OutputConfig struct {
	URI            string `yaml:"uri"`
	Format         string `yaml:"format"`
	Compression    string `yaml:"compression"`
	MaxRowsPerFile int    `yaml:"max_rows_per_file"`
	Concurrency    int    `yaml:"concurrency"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	PostgresSchema string `yaml:"postgres_schema"`

	// Pool settings for the Postgres mirror. Zero keeps the sink defaults.
	PostgresMaxOpenConns    int           `yaml:"postgres_max_open_conns"`
	PostgresMaxIdleConns    int           `yaml:"postgres_max_idle_conns"`
	PostgresConnMaxLifetime time.Duration `yaml:"postgres_conn_max_lifetime"`
}

// Load reads, expands and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config data. ${VAR} references are expanded from the
// environment first and unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.JoinPolicy == "" {
		c.JoinPolicy = "first"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.LogMode == "" {
		c.LogMode = "development"
	}
	if c.Input.Suffix == "" {
		c.Input.Suffix = ".json"
	}
	if c.Output.Format == "" {
		c.Output.Format = "parquet"
	}
	if c.Output.Concurrency <= 0 {
		c.Output.Concurrency = 4
	}
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var problems []string
	for name, uri := range map[string]string{
		"input.catalog": c.Input.Catalog,
		"input.events":  c.Input.Events,
		"output.uri":    c.Output.URI,
	} {
		if _, err := ParseURI(uri); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("timezone: %v", err))
	}
	if _, err := etl.ParseJoinPolicy(c.JoinPolicy); err != nil {
		problems = append(problems, fmt.Sprintf("join_policy: %v", err))
	}
	if _, err := writers.ParseFormat(c.Output.Format); err != nil {
		problems = append(problems, fmt.Sprintf("output.format: %v", err))
	}
	if _, err := writers.ParseCompression(c.Output.Compression); err != nil {
		problems = append(problems, fmt.Sprintf("output.compression: %v", err))
	}
	if c.Output.MaxRowsPerFile < 0 {
		problems = append(problems, "output.max_rows_per_file: must not be negative")
	}
	if c.Output.PostgresMaxOpenConns < 0 || c.Output.PostgresMaxIdleConns < 0 || c.Output.PostgresConnMaxLifetime < 0 {
		problems = append(problems, "output.postgres pool settings: must not be negative")
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		problems = append(problems, "aws: access_key_id and secret_access_key must be set together")
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// UsesS3 reports whether any input or output lives in S3.
func (c *Config) UsesS3() bool {
	for _, raw := range []string{c.Input.Catalog, c.Input.Events, c.Output.URI} {
		if u, err := ParseURI(raw); err == nil && u.IsS3() {
			return true
		}
	}
	return false
}
