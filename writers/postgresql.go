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
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/logger"
)

// This file implements a PostgreSQL mirror for output tables. Each table is
// replaced as a whole: created if missing, truncated and bulk loaded with COPY,
// all inside one transaction.

// PostgresSinkError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresSinkError struct {
	Op    string // The operation being performed (e.g., "copy", "connect")
	Table string // The table being written, empty for connection errors
	Err   error  // The underlying error
}

// Error returns the error string for PostgresSinkError.
func (e *PostgresSinkError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("postgres sink %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("postgres sink %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error for PostgresSinkError.
func (e *PostgresSinkError) Unwrap() error {
	return e.Err
}

// PostgresSinkOptions configures the PostgreSQL sink.
type PostgresSinkOptions struct {
	Schema          string        // Target schema, empty for the search_path default
	MaxOpenConns    int           // Max open connections
	MaxIdleConns    int           // Max idle connections
	ConnMaxLifetime time.Duration // Max connection lifetime
	Logger          *logger.Logger
}

// PostgresSinkOption represents a configuration function for PostgresSinkOptions.
type PostgresSinkOption func(*PostgresSinkOptions)

// WithPostgresSchema writes tables into the named schema.
func WithPostgresSchema(schema string) PostgresSinkOption {
	return func(opts *PostgresSinkOptions) {
		opts.Schema = schema
	}
}

// WithPostgresConnectionPool configures connection pool settings.
func WithPostgresConnectionPool(maxOpen, maxIdle int, maxLifetime time.Duration) PostgresSinkOption {
	return func(opts *PostgresSinkOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
		opts.ConnMaxLifetime = maxLifetime
	}
}

// WithPostgresLogger sets the sink logger.
func WithPostgresLogger(log *logger.Logger) PostgresSinkOption {
	return func(opts *PostgresSinkOptions) {
		opts.Logger = log
	}
}

func (opts *PostgresSinkOptions) withDefaults() {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 2
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
}

// PostgresSink implements core.TableSink for PostgreSQL.
type PostgresSink struct {
	db      *sql.DB
	options PostgresSinkOptions
}

// NewPostgresSink opens a connection pool for dsn and verifies it with a ping.
func NewPostgresSink(ctx context.Context, dsn string, opts ...PostgresSinkOption) (*PostgresSink, error) {
	if dsn == "" {
		return nil, &PostgresSinkError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &PostgresSinkError{Op: "connect", Err: fmt.Errorf("failed to open database: %w", err)}
	}

	sink := newPostgresSink(db, opts...)
	db.SetMaxOpenConns(sink.options.MaxOpenConns)
	db.SetMaxIdleConns(sink.options.MaxIdleConns)
	db.SetConnMaxLifetime(sink.options.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &PostgresSinkError{Op: "connect", Err: fmt.Errorf("failed to ping database: %w", err)}
	}
	return sink, nil
}

func newPostgresSink(db *sql.DB, opts ...PostgresSinkOption) *PostgresSink {
	options := PostgresSinkOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	options.withDefaults()
	return &PostgresSink{db: db, options: options}
}

// WriteTable implements core.TableSink. Partition columns are stored as regular
// columns and indexed.
func (p *PostgresSink) WriteTable(ctx context.Context, table core.Table, rows []core.Record) error {
	start := time.Now()
	if err := table.Validate(); err != nil {
		return &PostgresSinkError{Op: "validate", Table: table.Name, Err: err}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return &PostgresSinkError{Op: "begin", Table: table.Name, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	ddl := []string{CreateTableSQL(p.options.Schema, table)}
	if idx := CreateIndexSQL(p.options.Schema, table); idx != "" {
		ddl = append(ddl, idx)
	}
	ddl = append(ddl, TruncateSQL(p.options.Schema, table))
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &PostgresSinkError{Op: "prepare_table", Table: table.Name, Err: err}
		}
	}

	if err := p.copyRows(ctx, tx, table, rows); err != nil {
		return &PostgresSinkError{Op: "copy", Table: table.Name, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &PostgresSinkError{Op: "commit", Table: table.Name, Err: err}
	}
	committed = true

	p.options.Logger.Info("table mirrored to postgres",
		"table", table.Name,
		"rows", len(rows),
		"duration", time.Since(start))
	return nil
}

func (p *PostgresSink) copyRows(ctx context.Context, tx *sql.Tx, table core.Table, rows []core.Record) error {
	names := table.ColumnNames()
	var query string
	if p.options.Schema != "" {
		query = pq.CopyInSchema(p.options.Schema, table.Name, names...)
	} else {
		query = pq.CopyIn(table.Name, names...)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		values, err := CopyValues(table.Columns, row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return err
		}
	}
	// An argument-less Exec flushes the COPY buffer.
	_, err = stmt.ExecContext(ctx)
	return err
}

// Close closes the connection pool.
func (p *PostgresSink) Close() error {
	return p.db.Close()
}

// qualifiedName quotes table, prefixed by schema when set.
func qualifiedName(schema, table string) string {
	if schema == "" {
		return pq.QuoteIdentifier(table)
	}
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

// SQLType maps a column type to its PostgreSQL type.
func SQLType(t core.ColumnType) string {
	switch t {
	case core.TypeInt32:
		return "INTEGER"
	case core.TypeInt64:
		return "BIGINT"
	case core.TypeFloat64:
		return "DOUBLE PRECISION"
	case core.TypeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// CreateTableSQL returns the CREATE TABLE IF NOT EXISTS statement for table.
func CreateTableSQL(schema string, table core.Table) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = pq.QuoteIdentifier(c.Name) + " " + SQLType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		qualifiedName(schema, table.Name), strings.Join(cols, ", "))
}

// CreateIndexSQL returns a btree index over the partition keys, or "" when the
// table is unpartitioned.
func CreateIndexSQL(schema string, table core.Table) string {
	if len(table.PartitionBy) == 0 {
		return ""
	}
	cols := make([]string, len(table.PartitionBy))
	for i, c := range table.PartitionBy {
		cols[i] = pq.QuoteIdentifier(c)
	}
	name := table.Name + "_" + strings.Join(table.PartitionBy, "_") + "_idx"
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		pq.QuoteIdentifier(name), qualifiedName(schema, table.Name), strings.Join(cols, ", "))
}

// TruncateSQL returns the TRUNCATE statement for table.
func TruncateSQL(schema string, table core.Table) string {
	return "TRUNCATE TABLE " + qualifiedName(schema, table.Name)
}

// CopyValues orders a row's values by column for COPY. Absent values are NULL.
func CopyValues(columns []core.Column, row core.Record) ([]interface{}, error) {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		v := row.Value(c.Name)
		switch x := v.(type) {
		case nil, string, int64, float64, time.Time:
			values[i] = x
		case int32:
			values[i] = int64(x)
		case int:
			values[i] = int64(x)
		default:
			return nil, fmt.Errorf("column %s: unsupported value type %T", c.Name, v)
		}
	}
	return values, nil
}
