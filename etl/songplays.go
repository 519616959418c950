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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/schema"
)

// JoinPolicy decides what a song play matches when a title or artist name
// appears more than once in the catalog.
type JoinPolicy int

const (
	// JoinFirst matches the smallest song_id for the title and the smallest
	// artist_id for the name.
	JoinFirst JoinPolicy = iota
	// JoinAll emits one fact per matching (song, artist) catalog row pair.
	JoinAll
	// JoinReject drops plays whose title or name maps to more than one id.
	JoinReject
)

// ParseJoinPolicy maps a configuration name to a JoinPolicy.
func ParseJoinPolicy(name string) (JoinPolicy, error) {
	switch strings.ToLower(name) {
	case "", "first":
		return JoinFirst, nil
	case "all":
		return JoinAll, nil
	case "reject":
		return JoinReject, nil
	default:
		return JoinFirst, fmt.Errorf("unknown join policy %q", name)
	}
}

func (p JoinPolicy) String() string {
	switch p {
	case JoinAll:
		return "all"
	case JoinReject:
		return "reject"
	default:
		return "first"
	}
}

// catalogIndex maps a lookup key to the ids of every catalog row carrying it,
// sorted ascending.
type catalogIndex map[string][]interface{}

func buildIndex(rows []core.Record, keyField, idField string) catalogIndex {
	idx := make(catalogIndex)
	for _, row := range rows {
		key, ok := row.Value(keyField).(string)
		if !ok {
			continue
		}
		idx[key] = append(idx[key], row.Value(idField))
	}
	for _, ids := range idx {
		sort.SliceStable(ids, func(i, j int) bool {
			return core.CompareValues(ids[i], ids[j]) < 0
		})
	}
	return idx
}

// match returns the ids a key resolves to under policy.
func (idx catalogIndex) match(key interface{}, policy JoinPolicy) []interface{} {
	s, ok := key.(string)
	if !ok {
		return nil
	}
	ids := idx[s]
	if len(ids) == 0 {
		return nil
	}
	switch policy {
	case JoinAll:
		return ids
	case JoinReject:
		if core.CompareValues(ids[0], ids[len(ids)-1]) != 0 {
			return nil
		}
	}
	return ids[:1]
}

// SongPlayAssembler joins normalized song play events with the songs and
// artists tables. It expects its inputs in the order plays, songs, artists.
// A play matches when its song equals a songs title and its artist equals an
// artists name; plays without both matches are dropped.
type SongPlayAssembler struct {
	policy JoinPolicy
	loc    *time.Location
}

// NewSongPlayAssembler creates an assembler. Start times and the year/month
// partition columns are computed in loc.
func NewSongPlayAssembler(policy JoinPolicy, loc *time.Location) *SongPlayAssembler {
	if loc == nil {
		loc = time.UTC
	}
	return &SongPlayAssembler{policy: policy, loc: loc}
}

// Join implements tasks.Joiner.
func (a *SongPlayAssembler) Join(ctx context.Context, inputs [][]core.Record) ([]core.Record, error) {
	if len(inputs) != 3 {
		return nil, fmt.Errorf("songplay assembly needs plays, songs and artists, got %d inputs", len(inputs))
	}
	plays, songs, artists := inputs[0], inputs[1], inputs[2]

	byTitle := buildIndex(songs, schema.Title, schema.SongID)
	byName := buildIndex(artists, schema.Name, schema.ArtistID)

	var facts []core.Record
	for i, play := range plays {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		songIDs := byTitle.match(play.Value(schema.EventSong), a.policy)
		if len(songIDs) == 0 {
			continue
		}
		artistIDs := byName.match(play.Value(schema.EventArtist), a.policy)
		if len(artistIDs) == 0 {
			continue
		}

		ts, err := eventTS(play)
		if err != nil {
			return nil, err
		}
		start := time.UnixMilli(ts).In(a.loc)

		for _, songID := range songIDs {
			for _, artistID := range artistIDs {
				facts = append(facts, core.Record{
					schema.StartTime: start,
					schema.UserID:    play.Value(schema.EventUserID),
					schema.Level:     play.Value(schema.EventLevel),
					schema.SongID:    songID,
					schema.ArtistID:  artistID,
					schema.SessionID: play.Value(schema.EventSessionID),
					schema.Location:  play.Value(schema.EventLocation),
					schema.UserAgent: play.Value(schema.EventUserAgent),
					schema.Year:      int32(start.Year()),
					schema.Month:     int32(start.Month()),
				})
			}
		}
	}

	AssignSongPlayIDs(facts)
	return facts, nil
}

// songPlayOrder is the sort key that songplay ids follow.
var songPlayOrder = []string{
	schema.StartTime, schema.SessionID, schema.UserID, schema.SongID,
	schema.ArtistID, schema.Level, schema.Location, schema.UserAgent,
}

// AssignSongPlayIDs sorts facts into a canonical order and numbers them from 1.
// The same fact set always receives the same ids, whatever order it arrived in.
func AssignSongPlayIDs(facts []core.Record) {
	sort.SliceStable(facts, func(i, j int) bool {
		for _, field := range songPlayOrder {
			if c := core.CompareValues(facts[i].Value(field), facts[j].Value(field)); c != 0 {
				return c < 0
			}
		}
		return false
	})
	for i, fact := range facts {
		fact[schema.SongPlayID] = int64(i + 1)
	}
}
