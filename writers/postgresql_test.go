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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/songlake/core"
)

func TestCreateTableSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "songs" ("song_id" TEXT, "title" TEXT, "artist_id" TEXT, "year" BIGINT, "duration" DOUBLE PRECISION)`,
		CreateTableSQL("", songsTable))

	timeTable := core.Table{
		Name:    "time",
		Columns: []core.Column{{Name: "start_time", Type: core.TypeTimestamp}, {Name: "hour", Type: core.TypeInt32}},
	}
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "lake"."time" ("start_time" TIMESTAMPTZ, "hour" INTEGER)`,
		CreateTableSQL("lake", timeTable))
}

func TestCreateIndexSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE INDEX IF NOT EXISTS "songs_year_artist_id_idx" ON "songs" ("year", "artist_id")`,
		CreateIndexSQL("", songsTable))
	assert.Empty(t, CreateIndexSQL("", artistsTable))
}

func TestTruncateSQL(t *testing.T) {
	assert.Equal(t, `TRUNCATE TABLE "lake"."users"`, TruncateSQL("lake", core.Table{Name: "users"}))
}

func TestCopyValues(t *testing.T) {
	ts := time.UnixMilli(1541105830796)
	cols := []core.Column{
		{Name: "start_time", Type: core.TypeTimestamp},
		{Name: "hour", Type: core.TypeInt32},
		{Name: "location", Type: core.TypeString},
	}

	values, err := CopyValues(cols, core.Record{"start_time": ts, "hour": int32(21)})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{ts, int64(21), nil}, values)

	_, err = CopyValues(cols, core.Record{"hour": true})
	assert.ErrorContains(t, err, "hour")
}

func TestNewPostgresSink_RequiresDSN(t *testing.T) {
	_, err := NewPostgresSink(context.Background(), "")
	var pgErr *PostgresSinkError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "validate", pgErr.Op)
	assert.Equal(t, "postgres sink validate: dsn is required", err.Error())
}

func TestPostgresSinkError(t *testing.T) {
	cause := errors.New("boom")
	err := &PostgresSinkError{Op: "copy", Table: "songs", Err: cause}
	assert.Equal(t, "postgres sink copy songs: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestPostgresSinkOptions_Pool(t *testing.T) {
	sink := newPostgresSink(nil, WithPostgresConnectionPool(8, 3, 90*time.Second), WithPostgresSchema("lake"))
	assert.Equal(t, 8, sink.options.MaxOpenConns)
	assert.Equal(t, 3, sink.options.MaxIdleConns)
	assert.Equal(t, 90*time.Second, sink.options.ConnMaxLifetime)
	assert.Equal(t, "lake", sink.options.Schema)

	defaults := newPostgresSink(nil, WithPostgresConnectionPool(0, 0, 0))
	assert.Equal(t, 4, defaults.options.MaxOpenConns)
	assert.Equal(t, 2, defaults.options.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, defaults.options.ConnMaxLifetime)
}
