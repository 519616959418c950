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

// Package schema declares the Songlake input field names and output tables.
package schema

import "github.com/aaronlmathis/songlake/core"

// Catalog record fields.
const (
	SongID          = "song_id"
	Title           = "title"
	ArtistID        = "artist_id"
	ArtistName      = "artist_name"
	ArtistLocation  = "artist_location"
	ArtistLatitude  = "artist_latitude"
	ArtistLongitude = "artist_longitude"
	Year            = "year"
	Duration        = "duration"
)

// Event record fields.
const (
	EventUserID    = "userId"
	EventFirstName = "firstName"
	EventLastName  = "lastName"
	EventGender    = "gender"
	EventLevel     = "level"
	EventPage      = "page"
	EventTS        = "ts"
	EventSong      = "song"
	EventArtist    = "artist"
	EventSessionID = "sessionId"
	EventLocation  = "location"
	EventUserAgent = "userAgent"
)

// NextSongPage is the page value of a song play event.
const NextSongPage = "NextSong"

// Output column names not shared with the catalog.
const (
	Name       = "name"
	Location   = "location"
	Latitude   = "latitude"
	Longitude  = "longitude"
	UserID     = "user_id"
	FirstName  = "first_name"
	LastName   = "last_name"
	Gender     = "gender"
	Level      = "level"
	StartTime  = "start_time"
	Hour       = "hour"
	Day        = "day"
	Week       = "week"
	Month      = "month"
	Weekday    = "weekday"
	SongPlayID = "songplay_id"
	SessionID  = "session_id"
	UserAgent  = "user_agent"
)

// Songs is the song dimension, one row per catalog record.
var Songs = core.Table{
	Name: "songs",
	Columns: []core.Column{
		{Name: SongID, Type: core.TypeString},
		{Name: Title, Type: core.TypeString},
		{Name: ArtistID, Type: core.TypeString},
		{Name: Year, Type: core.TypeInt64},
		{Name: Duration, Type: core.TypeFloat64},
	},
	PartitionBy: []string{Year, ArtistID},
}

// Artists is the artist dimension, one row per catalog record.
var Artists = core.Table{
	Name: "artists",
	Columns: []core.Column{
		{Name: ArtistID, Type: core.TypeString},
		{Name: Name, Type: core.TypeString},
		{Name: Location, Type: core.TypeString},
		{Name: Latitude, Type: core.TypeFloat64},
		{Name: Longitude, Type: core.TypeFloat64},
	},
}

// Users is the user dimension, distinct on all columns.
var Users = core.Table{
	Name: "users",
	Columns: []core.Column{
		{Name: UserID, Type: core.TypeString},
		{Name: FirstName, Type: core.TypeString},
		{Name: LastName, Type: core.TypeString},
		{Name: Gender, Type: core.TypeString},
		{Name: Level, Type: core.TypeString},
	},
}

// Time is the time dimension, distinct on all columns.
var Time = core.Table{
	Name: "time",
	Columns: []core.Column{
		{Name: StartTime, Type: core.TypeTimestamp},
		{Name: Hour, Type: core.TypeInt32},
		{Name: Day, Type: core.TypeInt32},
		{Name: Week, Type: core.TypeInt32},
		{Name: Month, Type: core.TypeInt32},
		{Name: Year, Type: core.TypeInt32},
		{Name: Weekday, Type: core.TypeInt32},
	},
	PartitionBy: []string{Year, Month},
}

// SongPlays is the fact table. year and month repeat the start_time calendar
// fields so the table can be partitioned like Time.
var SongPlays = core.Table{
	Name: "songplays",
	Columns: []core.Column{
		{Name: SongPlayID, Type: core.TypeInt64},
		{Name: StartTime, Type: core.TypeTimestamp},
		{Name: UserID, Type: core.TypeString},
		{Name: Level, Type: core.TypeString},
		{Name: SongID, Type: core.TypeString},
		{Name: ArtistID, Type: core.TypeString},
		{Name: SessionID, Type: core.TypeInt64},
		{Name: Location, Type: core.TypeString},
		{Name: UserAgent, Type: core.TypeString},
		{Name: Year, Type: core.TypeInt32},
		{Name: Month, Type: core.TypeInt32},
	},
	PartitionBy: []string{Year, Month},
}

// All lists the output tables in write order.
func All() []core.Table {
	return []core.Table{Songs, Artists, Users, Time, SongPlays}
}
