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
	"github.com/aaronlmathis/songlake/schema"
	"github.com/aaronlmathis/songlake/transform"
)

// SongProjector maps a catalog record to a songs row.
func SongProjector() core.Transformer {
	return transform.Chain(
		transform.Select(schema.SongID, schema.Title, schema.ArtistID, schema.Year, schema.Duration),
		transform.ToString(schema.SongID, schema.Title, schema.ArtistID),
		transform.ToInt64(schema.Year),
		transform.ToFloat(schema.Duration),
	)
}

// ArtistProjector maps a catalog record to an artists row.
func ArtistProjector() core.Transformer {
	return transform.Chain(
		transform.Select(schema.ArtistID, schema.ArtistName, schema.ArtistLocation,
			schema.ArtistLatitude, schema.ArtistLongitude),
		transform.Rename(map[string]string{
			schema.ArtistName:      schema.Name,
			schema.ArtistLocation:  schema.Location,
			schema.ArtistLatitude:  schema.Latitude,
			schema.ArtistLongitude: schema.Longitude,
		}),
		transform.ToString(schema.ArtistID, schema.Name, schema.Location),
		transform.ToFloat(schema.Latitude, schema.Longitude),
	)
}
