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
	"github.com/aaronlmathis/songlake/core"
	"github.com/aaronlmathis/songlake/filter"
	"github.com/aaronlmathis/songlake/schema"
	"github.com/aaronlmathis/songlake/transform"
)

// SongPlayFilter keeps song play events. The page match is exact and case sensitive.
func SongPlayFilter() core.Filter {
	return filter.Equals(schema.EventPage, schema.NextSongPage)
}

// EventNormalizer types the fields of a song play event. ts is required and
// becomes int64 epoch milliseconds; sessionId becomes int64 and the text
// fields become strings. page is dropped.
func EventNormalizer() core.Transformer {
	return transform.Chain(
		transform.Select(
			schema.EventUserID, schema.EventFirstName, schema.EventLastName, schema.EventGender,
			schema.EventLevel, schema.EventTS, schema.EventSong, schema.EventArtist,
			schema.EventSessionID, schema.EventLocation, schema.EventUserAgent,
		),
		transform.Require(schema.EventTS),
		transform.ToInt64(schema.EventTS, schema.EventSessionID),
		transform.ToString(
			schema.EventUserID, schema.EventFirstName, schema.EventLastName, schema.EventGender,
			schema.EventLevel, schema.EventSong, schema.EventArtist, schema.EventLocation,
			schema.EventUserAgent,
		),
	)
}

// UserProjector maps a normalized event to a users row.
func UserProjector() core.Transformer {
	return transform.Chain(
		transform.Select(schema.EventUserID, schema.EventFirstName, schema.EventLastName,
			schema.EventGender, schema.EventLevel),
		transform.Rename(map[string]string{
			schema.EventUserID:    schema.UserID,
			schema.EventFirstName: schema.FirstName,
			schema.EventLastName:  schema.LastName,
		}),
	)
}

// userColumns is the full users tuple used for deduplication.
var userColumns = []string{schema.UserID, schema.FirstName, schema.LastName, schema.Gender, schema.Level}
