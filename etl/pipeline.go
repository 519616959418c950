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

// Package etl assembles the Songlake pipeline: it turns a song catalog and a
// user activity log into the songs, artists, users, time and songplays tables.
package etl

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/aaronlmathis/songlake/aggregate"
	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/dag"
	"github.com/aaronlmathis/songlake/dag/tasks"
	"github.com/aaronlmathis/songlake/logger"
	"github.com/aaronlmathis/songlake/schema"
	"github.com/aaronlmathis/songlake/validators"
)

// Task ids of the pipeline DAG.
const (
	TaskCatalog        = "catalog"
	TaskEvents         = "events"
	TaskSongs          = "songs"
	TaskArtists        = "artists"
	TaskNextSong       = "next_song"
	TaskPlays          = "plays"
	TaskUserRows       = "user_rows"
	TaskTimeRows       = "time_rows"
	TaskSongPlays      = "songplays"
	TaskUsers          = "users"
	TaskTime           = "time"
	TaskCheckUsers     = "check_users"
	TaskCheckSongPlays = "check_songplays"
)

// WriteTaskID is the id of the task writing table.
func WriteTaskID(table string) string {
	return "write_" + table
}

// Options configures a pipeline run.
type Options struct {
	Location   *time.Location
	JoinPolicy JoinPolicy
	Workers    int
	Logger     *logger.Logger
}

// Option is a functional option for Options.
type Option func(*Options)

// WithLocation sets the time zone used to decompose event timestamps.
func WithLocation(loc *time.Location) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

// WithJoinPolicy sets how ambiguous catalog matches are resolved.
func WithJoinPolicy(policy JoinPolicy) Option {
	return func(o *Options) {
		o.JoinPolicy = policy
	}
}

// WithWorkers bounds task and record-level parallelism.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

func newOptions(opts []Option) Options {
	o := Options{JoinPolicy: JoinFirst}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// BuildDAG wires the pipeline from two sources to sink.
func BuildDAG(catalog, events core.DataSource, sink core.TableSink, opts ...Option) (*dag.DAG, error) {
	o := newOptions(opts)

	b := dag.NewDAG("songlake", "Songlake ETL").
		WithDescription("song catalog and activity log to songs, artists, users, time and songplays").
		WithMaxParallelism(o.Workers).
		WithTaskDefaults(tasks.WithParallelism(o.Workers), tasks.WithLogger(o.Logger))

	b.AddSourceTask(TaskCatalog, catalog, tasks.WithDescription("read the song catalog")).
		AddSourceTask(TaskEvents, events, tasks.WithDescription("read the activity log")).
		AddTransformTask(TaskSongs, SongProjector(), []string{TaskCatalog}).
		AddTransformTask(TaskArtists, ArtistProjector(), []string{TaskCatalog}).
		AddFilterTask(TaskNextSong, SongPlayFilter(), []string{TaskEvents}).
		AddTransformTask(TaskPlays, EventNormalizer(), []string{TaskNextSong}).
		AddTransformTask(TaskUserRows, UserProjector(), []string{TaskPlays}).
		AddTransformTask(TaskTimeRows, TimeDecomposer(o.Location), []string{TaskPlays}).
		AddJoinTask(TaskSongPlays, NewSongPlayAssembler(o.JoinPolicy, o.Location),
			[]string{TaskPlays, TaskSongs, TaskArtists},
			tasks.WithCustomField("join_policy", o.JoinPolicy.String())).
		AddAggregateTask(TaskUsers, aggregate.NewDistinct(userColumns...), []string{TaskUserRows}).
		AddAggregateTask(TaskTime, aggregate.NewDistinct(timeColumns...), []string{TaskTimeRows}).
		AddCheckTask(TaskCheckUsers,
			validators.NewDataQualityValidator(validators.WithUniqueFields(schema.UserID)),
			[]string{TaskUsers},
			tasks.WithDescription("report user_ids listed with more than one level")).
		AddCheckTask(TaskCheckSongPlays,
			validators.NewDataQualityValidator(
				validators.WithUniqueFields(schema.SongPlayID),
				validators.WithRequiredFields(schema.SongPlayID, schema.StartTime),
			),
			[]string{TaskSongPlays})

	tableInputs := map[string]string{
		schema.Songs.Name:     TaskSongs,
		schema.Artists.Name:   TaskArtists,
		schema.Users.Name:     TaskCheckUsers,
		schema.Time.Name:      TaskTime,
		schema.SongPlays.Name: TaskCheckSongPlays,
	}
	for _, table := range schema.All() {
		b.AddSinkTask(WriteTaskID(table.Name), sink, table, []string{tableInputs[table.Name]},
			tasks.WithTags("output"))
	}

	return b.Build()
}

// Result summarizes a pipeline run.
type Result struct {
	// Rows is the number of rows written per table.
	Rows map[string]int64
	// UniqueUserIDs is false when a user_id appears in more than one users row.
	UniqueUserIDs bool
	Duration      time.Duration
}

// Run executes the pipeline. Tables are written as soon as they are complete,
// so a failed run may leave some tables replaced and others untouched.
func Run(ctx context.Context, catalog, events core.DataSource, sink core.TableSink, opts ...Option) (*Result, error) {
	o := newOptions(opts)

	d, err := BuildDAG(catalog, events, sink, opts...)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}
	d.LogStructure(o.Logger)

	executor := dag.NewDAGExecutor(dag.WithMaxWorkers(o.Workers), dag.WithLogger(o.Logger))
	res, err := executor.Execute(ctx, d)
	if err != nil {
		return nil, err
	}

	out := &Result{
		Rows:          make(map[string]int64, len(schema.All())),
		UniqueUserIDs: res.Context[TaskCheckUsers+"_passed"] == true,
		Duration:      res.EndTime.Sub(res.StartTime),
	}
	for _, table := range schema.All() {
		out.Rows[table.Name] = res.TaskResults[WriteTaskID(table.Name)].RecordsIn
	}

	o.Logger.Info("pipeline finished",
		"songs", out.Rows[schema.Songs.Name],
		"artists", out.Rows[schema.Artists.Name],
		"users", out.Rows[schema.Users.Name],
		"time", out.Rows[schema.Time.Name],
		"songplays", out.Rows[schema.SongPlays.Name],
		"duration", out.Duration)
	return out, nil
}
