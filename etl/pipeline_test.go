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

package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/readers"
	"github.com/aaronlmathis/songlake/writers"
)

// memorySink keeps every written table in memory.
type memorySink struct {
	mu     sync.Mutex
	tables map[string][]core.Record
	fail   string
}

func newMemorySink() *memorySink {
	return &memorySink{tables: make(map[string][]core.Record)}
}

func (m *memorySink) WriteTable(ctx context.Context, table core.Table, rows []core.Record) error {
	if table.Name == m.fail {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table.Name] = rows
	return nil
}

var (
	exampleCatalog = []string{
		`{"num_songs":1,"artist_id":"AR1","artist_latitude":null,"artist_longitude":null,"artist_location":"","artist_name":"Artist A","song_id":"S1","title":"Song A","duration":200.5,"year":2000}`,
		`{"num_songs":1,"artist_id":"AR2","artist_latitude":35.14968,"artist_longitude":-90.04892,"artist_location":"Memphis, TN","artist_name":"Artist B","song_id":"S2","title":"Song B","duration":180.0,"year":0}`,
	}
	exampleEvents = []string{
		`{"artist":"Artist A","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":0,"lastName":"Koch","length":200.5,"level":"free","location":"Chicago","method":"PUT","page":"NextSong","registration":1541048010796,"sessionId":345,"song":"Song A","status":200,"ts":1541105830796,"userAgent":"Mozilla/5.0","userId":"10"}`,
		`{"artist":null,"auth":"Logged In","firstName":"Walter","gender":"M","itemInSession":1,"lastName":"Frye","level":"free","page":"Home","sessionId":38,"song":null,"ts":1541105900000,"userId":"39"}`,
		``,
		`{"artist":"Nobody","auth":"Logged In","firstName":"Lily","gender":"F","itemInSession":1,"lastName":"Koch","level":"paid","page":"NextSong","sessionId":345,"song":"Unknown","ts":1541106106796,"userId":"10"}`,
	}
)

func TestRun_EndToEnd(t *testing.T) {
	sink := newMemorySink()
	res, err := Run(context.Background(), jsonSource(exampleCatalog...), jsonSource(exampleEvents...), sink,
		WithLocation(cet), WithWorkers(2))
	require.NoError(t, err)

	// One songs and one artists row per catalog record.
	require.Len(t, sink.tables["songs"], 2)
	assert.Equal(t, core.Record{"song_id": "S1", "title": "Song A", "artist_id": "AR1", "year": int64(2000), "duration": 200.5},
		sink.tables["songs"][0])
	require.Len(t, sink.tables["artists"], 2)
	assert.Equal(t, core.Record{"artist_id": "AR1", "name": "Artist A", "location": "", "latitude": nil, "longitude": nil},
		sink.tables["artists"][0])

	// user 10 appears once per level; the Home visitor never appears.
	users := sink.tables["users"]
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Equal(t, "10", u["user_id"])
	}
	assert.Equal(t, "free", users[0]["level"])
	assert.Equal(t, "paid", users[1]["level"])
	assert.False(t, res.UniqueUserIDs)

	timeRows := sink.tables["time"]
	require.Len(t, timeRows, 2)
	assert.Equal(t, int32(21), timeRows[0]["hour"])
	assert.Equal(t, int32(44), timeRows[0]["week"])
	assert.Equal(t, int32(5), timeRows[0]["weekday"])

	plays := sink.tables["songplays"]
	require.Len(t, plays, 1)
	fact := plays[0]
	assert.Equal(t, int64(1), fact["songplay_id"])
	assert.Equal(t, "S1", fact["song_id"])
	assert.Equal(t, "AR1", fact["artist_id"])
	assert.Equal(t, "10", fact["user_id"])
	assert.Equal(t, "free", fact["level"])
	assert.Equal(t, int64(345), fact["session_id"])
	assert.Equal(t, "Chicago", fact["location"])
	assert.Equal(t, "Mozilla/5.0", fact["user_agent"])
	assert.Equal(t, int32(2018), fact["year"])
	assert.Equal(t, int32(11), fact["month"])

	assert.Equal(t, map[string]int64{"songs": 2, "artists": 2, "users": 2, "time": 2, "songplays": 1}, res.Rows)
}

func TestRun_DuplicateTimestampsCollapse(t *testing.T) {
	events := []string{
		`{"page":"NextSong","ts":1541105830796,"userId":"10","firstName":"Lily","lastName":"Koch","gender":"F","level":"free","sessionId":1}`,
		`{"page":"NextSong","ts":1541105830796,"userId":"10","firstName":"Lily","lastName":"Koch","gender":"F","level":"free","sessionId":1}`,
	}
	sink := newMemorySink()
	res, err := Run(context.Background(), jsonSource(), jsonSource(events...), sink)
	require.NoError(t, err)

	assert.Len(t, sink.tables["users"], 1)
	assert.Len(t, sink.tables["time"], 1)
	assert.Empty(t, sink.tables["songplays"])
	assert.True(t, res.UniqueUserIDs)
}

// generated builds a catalog of n songs and a log that plays each of them
// several times across sessions, with some misses and non-play pages.
func generated(n int) (catalog, events []string) {
	for i := 0; i < n; i++ {
		catalog = append(catalog, fmt.Sprintf(
			`{"song_id":"S%03d","title":"Song %d","artist_id":"AR%03d","artist_name":"Artist %d","year":%d,"duration":%d.5}`,
			i, i, i%7, i%7, 1990+i%5, 100+i))
	}
	base := int64(1541105830796)
	for i := 0; i < 5*n; i++ {
		page := "NextSong"
		if i%9 == 0 {
			page = "Home"
		}
		song := i % (n + 3) // indexes past n miss the catalog
		events = append(events, fmt.Sprintf(
			`{"page":"%s","ts":%d,"song":"Song %d","artist":"Artist %d","userId":"%d","firstName":"U","lastName":"L","gender":"F","level":"free","sessionId":%d}`,
			page, base+int64(i/3)*60000, song, song%7, i%11, i%4))
	}
	return catalog, events
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	catalog, events := generated(40)

	results := make([]*memorySink, 0, 3)
	for _, workers := range []int{1, 3, 8} {
		sink := newMemorySink()
		_, err := Run(context.Background(), jsonSource(catalog...), jsonSource(events...), sink,
			WithWorkers(workers), WithLocation(cet))
		require.NoError(t, err)
		results = append(results, sink)
	}

	nextSong := 0
	for i := 0; i < len(events); i++ {
		if i%9 != 0 {
			nextSong++
		}
	}
	plays := results[0].tables["songplays"]
	assert.NotEmpty(t, plays)
	assert.LessOrEqual(t, len(plays), nextSong)

	ids := map[int64]bool{}
	for _, p := range plays {
		ids[p["songplay_id"].(int64)] = true
	}
	assert.Len(t, ids, len(plays))

	for _, other := range results[1:] {
		assert.Equal(t, results[0].tables, other.tables)
	}
}

func TestRun_IdempotentOnDisk(t *testing.T) {
	catalog, events := generated(12)
	root := t.TempDir()
	sink := writers.NewPartitionedWriter(writers.NewLocalStore(root), writers.WithMaxRowsPerFile(5))

	snapshot := func() map[string][]core.Record {
		out := map[string][]core.Record{}
		for _, table := range []string{"songs", "artists", "users", "time", "songplays"} {
			r, err := readers.NewDatasetReader(filepath.Join(root, writers.TableDir(table)))
			require.NoError(t, err)
			var rows []core.Record
			for {
				rec, err := r.Read(context.Background())
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				if ts, ok := rec["start_time"].(time.Time); ok {
					rec["start_time"] = ts.UTC()
				}
				rows = append(rows, rec)
			}
			require.NoError(t, r.Close())
			sort.SliceStable(rows, func(i, j int) bool {
				return core.TupleKey(rows[i], sortedKeys(rows[i])) < core.TupleKey(rows[j], sortedKeys(rows[j]))
			})
			out[table] = rows
		}
		return out
	}

	_, err := Run(context.Background(), jsonSource(catalog...), jsonSource(events...), sink)
	require.NoError(t, err)
	first := snapshot()

	_, err = Run(context.Background(), jsonSource(catalog...), jsonSource(events...), sink)
	require.NoError(t, err)
	second := snapshot()

	assert.Equal(t, first, second)
	assert.Len(t, first["songs"], 12)
	assert.NotEmpty(t, first["songplays"])
}

func TestRun_NullPartitionKeysRoundTrip(t *testing.T) {
	catalog := []string{
		`{"song_id":"S1","title":"Song A","artist_id":"AR1","artist_name":"Artist A","year":2000,"duration":1.5}`,
		`{"song_id":"S2","title":"Song B","artist_name":"Artist B","year":2000,"duration":2.5}`,
		`{"song_id":"S3","title":"Song C","artist_id":"","artist_name":"Artist C","year":2000}`,
		`{"song_id":"S4","title":"Song D","artist_id":"AR4","artist_name":"Artist D","year":null}`,
	}
	root := t.TempDir()
	sink := writers.NewPartitionedWriter(writers.NewLocalStore(root))
	res, err := Run(context.Background(), jsonSource(catalog...), jsonSource(exampleEvents...), sink)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Rows["songs"])

	songsDir := filepath.Join(root, writers.TableDir("songs"))
	assert.DirExists(t, filepath.Join(songsDir, "year=2000", "artist_id="+writers.HiveDefaultPartition))
	assert.DirExists(t, filepath.Join(songsDir, "year="+writers.HiveDefaultPartition, "artist_id=AR4"))

	r, err := readers.NewDatasetReader(songsDir)
	require.NoError(t, err)
	defer r.Close()
	got := map[interface{}]core.Record{}
	for {
		rec, err := r.Read(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got[rec["song_id"]] = rec
	}
	require.Len(t, got, 4)
	assert.Nil(t, got["S2"]["artist_id"])
	assert.Nil(t, got["S3"]["artist_id"])
	assert.Nil(t, got["S4"]["year"])
	assert.Nil(t, got["S3"]["duration"])
	assert.Equal(t, "2000", got["S1"]["year"])
}

func sortedKeys(r core.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestRun_Failures(t *testing.T) {
	t.Run("missing_ts", func(t *testing.T) {
		events := []string{`{"page":"NextSong","userId":"10","song":"Song A","artist":"Artist A"}`}
		_, err := Run(context.Background(), jsonSource(exampleCatalog...), jsonSource(events...), newMemorySink())
		assert.ErrorContains(t, err, "ts")
	})

	t.Run("missing_ts_outside_song_plays_is_ignored", func(t *testing.T) {
		events := []string{`{"page":"Home","userId":"10"}`}
		_, err := Run(context.Background(), jsonSource(exampleCatalog...), jsonSource(events...), newMemorySink())
		assert.NoError(t, err)
	})

	t.Run("malformed_line", func(t *testing.T) {
		_, err := Run(context.Background(), jsonSource(`{"song_id":`), jsonSource(exampleEvents...), newMemorySink())
		var jsonErr *readers.JSONReaderError
		assert.ErrorAs(t, err, &jsonErr)
	})

	t.Run("sink_failure", func(t *testing.T) {
		sink := newMemorySink()
		sink.fail = "time"
		_, err := Run(context.Background(), jsonSource(exampleCatalog...), jsonSource(exampleEvents...), sink)
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestBuildDAG_Levels(t *testing.T) {
	d, err := BuildDAG(jsonSource(), jsonSource(), newMemorySink())
	require.NoError(t, err)

	levels, err := d.Levels()
	require.NoError(t, err)
	assert.Equal(t, []string{TaskCatalog, TaskEvents}, levels[0])
	assert.Contains(t, levels[3], TaskSongPlays)
	assert.Equal(t, 5, len(d.GetTasksByType("sink")))
	assert.Equal(t, []string{TaskUsers}, d.GetDependencies(TaskCheckUsers))
}
