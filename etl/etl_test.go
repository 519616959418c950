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
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/readers"
)

var cet = time.FixedZone("CET", 3600)

func TestSongProjector(t *testing.T) {
	in := core.Record{
		"song_id": "S1", "title": "Song A", "artist_id": "AR1", "artist_name": "Artist A",
		"year": json.Number("2000"), "duration": json.Number("200.5"), "num_songs": json.Number("1"),
	}
	out, err := SongProjector().Transform(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, core.Record{
		"song_id": "S1", "title": "Song A", "artist_id": "AR1", "year": int64(2000), "duration": 200.5,
	}, out)

	_, err = SongProjector().Transform(context.Background(), core.Record{"duration": "abc"})
	assert.ErrorContains(t, err, "duration")
}

func TestArtistProjector(t *testing.T) {
	in := core.Record{
		"song_id": "S1", "artist_id": "AR1", "artist_name": "Artist A",
		"artist_location": "", "artist_latitude": nil, "artist_longitude": json.Number("-122.4"),
	}
	out, err := ArtistProjector().Transform(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, core.Record{
		"artist_id": "AR1", "name": "Artist A", "location": "", "latitude": nil, "longitude": -122.4,
	}, out)
}

func TestSongPlayFilter(t *testing.T) {
	f := SongPlayFilter()
	for page, want := range map[string]bool{"NextSong": true, "Home": false, "nextsong": false} {
		got, err := f.ShouldInclude(context.Background(), core.Record{"page": page})
		require.NoError(t, err)
		assert.Equal(t, want, got, page)
	}
}

func TestEventNormalizer(t *testing.T) {
	in := core.Record{
		"page": "NextSong", "ts": json.Number("1541105830796"), "userId": json.Number("10"),
		"sessionId": json.Number("345"), "level": "free", "itemInSession": json.Number("3"),
	}
	out, err := EventNormalizer().Transform(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, core.Record{
		"ts": int64(1541105830796), "userId": "10", "sessionId": int64(345), "level": "free",
	}, out)

	_, err = EventNormalizer().Transform(context.Background(), core.Record{"page": "NextSong", "userId": "10"})
	assert.ErrorContains(t, err, "ts")

	_, err = EventNormalizer().Transform(context.Background(), core.Record{"ts": "yesterday"})
	assert.ErrorContains(t, err, "ts")
}

func TestUserProjector(t *testing.T) {
	in := core.Record{
		"userId": "10", "firstName": "Lily", "lastName": "Koch", "gender": "F", "level": "free",
		"ts": int64(1), "song": "x",
	}
	out, err := UserProjector().Transform(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, core.Record{
		"user_id": "10", "first_name": "Lily", "last_name": "Koch", "gender": "F", "level": "free",
	}, out)
}

func TestDecompose(t *testing.T) {
	p := Decompose(1541105830796, cet)
	assert.Equal(t, "2018-11-01T21:57:10.796+01:00", p.StartTime.Format("2006-01-02T15:04:05.000Z07:00"))
	assert.Equal(t, TimeParts{
		StartTime: p.StartTime, Hour: 21, Day: 1, Week: 44, Month: 11, Year: 2018, Weekday: 5,
	}, p)
	assert.Equal(t, int32(20), Decompose(1541105830796, time.UTC).Hour)

	t.Run("sunday_is_one", func(t *testing.T) {
		sunday := time.Date(2018, 11, 4, 12, 0, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, int32(1), Decompose(sunday, time.UTC).Weekday)
		saturday := time.Date(2018, 11, 3, 12, 0, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, int32(7), Decompose(saturday, time.UTC).Weekday)
	})

	t.Run("iso_week_crosses_year", func(t *testing.T) {
		p := Decompose(time.Date(2018, 12, 31, 12, 0, 0, 0, time.UTC).UnixMilli(), time.UTC)
		assert.Equal(t, int32(2018), p.Year)
		assert.Equal(t, int32(1), p.Week)
	})

	t.Run("zone_moves_day", func(t *testing.T) {
		ts := time.Date(2018, 11, 30, 23, 30, 0, 0, time.UTC).UnixMilli()
		assert.Equal(t, int32(11), Decompose(ts, time.UTC).Month)
		assert.Equal(t, int32(12), Decompose(ts, cet).Month)
		assert.Equal(t, int32(1), Decompose(ts, cet).Day)
	})
}

func TestTimeDecomposer(t *testing.T) {
	out, err := TimeDecomposer(cet).Transform(context.Background(), core.Record{"ts": int64(1541105830796)})
	require.NoError(t, err)
	assert.Equal(t, int32(21), out["hour"])
	assert.Equal(t, int32(5), out["weekday"])
	assert.Len(t, out, 7)

	_, err = TimeDecomposer(cet).Transform(context.Background(), core.Record{})
	assert.ErrorContains(t, err, "ts")

	_, err = TimeDecomposer(cet).Transform(context.Background(), core.Record{"ts": json.Number("1")})
	assert.ErrorContains(t, err, "expected int64")
}

func TestParseJoinPolicy(t *testing.T) {
	for name, want := range map[string]JoinPolicy{"": JoinFirst, "first": JoinFirst, "ALL": JoinAll, "reject": JoinReject} {
		got, err := ParseJoinPolicy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseJoinPolicy("any")
	assert.Error(t, err)
	assert.Equal(t, "reject", JoinReject.String())
}

func jsonSource(lines ...string) core.DataSource {
	return readers.NewJSONReader(io.NopCloser(strings.NewReader(strings.Join(lines, "\n"))))
}
