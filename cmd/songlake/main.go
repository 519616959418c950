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

// Command songlake runs the Songlake ETL and inspects its output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aaronlmathis/songlake/config"
	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/etl"
	"github.com/aaronlmathis/songlake/logger"
	"github.com/aaronlmathis/songlake/readers"
	"github.com/aaronlmathis/songlake/schema"
	"github.com/aaronlmathis/songlake/writers"
)

const usage = `usage:
  songlake run -config <file>
  songlake inspect -dir <output directory>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, os.Args[2:])
	case "inspect":
		err = inspectCommand(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "songlake: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "songlake.yaml", "path to the YAML configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	policy, err := etl.ParseJoinPolicy(cfg.JoinPolicy)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var s3Client interface {
		readers.S3API
		writers.S3StoreAPI
	}
	if cfg.UsesS3() {
		client, err := cfg.AWS.NewS3Client(ctx)
		if err != nil {
			return err
		}
		s3Client = client
	}

	catalog, err := openInput(ctx, cfg.Input.Catalog, cfg.Input.Suffix, s3Client)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer catalog.Close()
	events, err := openInput(ctx, cfg.Input.Events, cfg.Input.Suffix, s3Client)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer events.Close()

	sink, closeSink, err := openOutput(ctx, cfg, s3Client, log)
	if err != nil {
		return err
	}
	defer closeSink()

	log.Info("starting run",
		"catalog", cfg.Input.Catalog,
		"events", cfg.Input.Events,
		"output", cfg.Output.URI,
		"timezone", loc.String(),
		"join_policy", policy.String(),
		"workers", cfg.Workers)

	res, err := etl.Run(ctx, catalog, events, sink,
		etl.WithLocation(loc),
		etl.WithJoinPolicy(policy),
		etl.WithWorkers(cfg.Workers),
		etl.WithLogger(log))
	if err != nil {
		log.Error("run failed", "error", err)
		return err
	}
	if !res.UniqueUserIDs {
		log.Warn("users table lists some user_id more than once")
	}
	return nil
}

func openInput(ctx context.Context, raw, suffix string, client readers.S3API) (core.DataSource, error) {
	uri, err := config.ParseURI(raw)
	if err != nil {
		return nil, err
	}
	if !uri.IsS3() {
		return readers.NewFileReader(uri.Path, readers.WithFileSuffix(suffix))
	}
	return readers.NewS3Reader(ctx, client,
		readers.WithS3Bucket(uri.Bucket),
		readers.WithS3Prefix(uri.Prefix),
		readers.WithS3Suffix(suffix),
		readers.WithS3Recursive(true))
}

func openOutput(ctx context.Context, cfg *config.Config, client writers.S3StoreAPI, log *logger.Logger) (core.TableSink, func(), error) {
	uri, err := config.ParseURI(cfg.Output.URI)
	if err != nil {
		return nil, nil, err
	}
	format, err := writers.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, nil, err
	}
	compression, err := writers.ParseCompression(cfg.Output.Compression)
	if err != nil {
		return nil, nil, err
	}

	var store writers.ObjectStore
	if uri.IsS3() {
		store = writers.NewS3Store(client, uri.Bucket, uri.Prefix)
	} else {
		store = writers.NewLocalStore(uri.Path)
	}
	lake := writers.NewPartitionedWriter(store,
		writers.WithFormat(format),
		writers.WithParquetOptions(writers.WithCompression(compression)),
		writers.WithMaxRowsPerFile(cfg.Output.MaxRowsPerFile),
		writers.WithConcurrency(cfg.Output.Concurrency),
		writers.WithLogger(log))

	if cfg.Output.PostgresDSN == "" {
		return lake, func() {}, nil
	}
	pg, err := writers.NewPostgresSink(ctx, cfg.Output.PostgresDSN,
		writers.WithPostgresSchema(cfg.Output.PostgresSchema),
		writers.WithPostgresConnectionPool(cfg.Output.PostgresMaxOpenConns,
			cfg.Output.PostgresMaxIdleConns, cfg.Output.PostgresConnMaxLifetime),
		writers.WithPostgresLogger(log))
	if err != nil {
		return nil, nil, err
	}
	closeSink := func() {
		if err := pg.Close(); err != nil {
			log.Warn("closing postgres sink", "error", err)
		}
	}
	return writers.NewMultiSink(lake, pg), closeSink, nil
}

func inspectCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dir := fs.String("dir", "", "local output directory of a previous run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return errors.New("inspect: -dir is required")
	}

	for _, table := range schema.All() {
		tableDir := filepath.Join(*dir, writers.TableDir(table.Name))
		if _, err := os.Stat(filepath.Join(tableDir, writers.SuccessMarker)); err != nil {
			fmt.Fprintf(out, "%-10s missing\n", table.Name)
			continue
		}
		ds, err := readers.NewDatasetReader(tableDir)
		if err != nil {
			return err
		}
		rows, err := ds.NumRows()
		if err != nil {
			return err
		}
		columns, err := ds.Columns()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-10s %8d rows %4d files", table.Name, rows, len(ds.Files()))
		for _, col := range columns {
			fmt.Fprintf(out, "  %s:%s", col.Name, col.Type)
		}
		fmt.Fprintln(out)
	}
	return nil
}
