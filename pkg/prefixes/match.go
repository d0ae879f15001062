// Zaparoo Nero
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Nero.
//
// Zaparoo Nero is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Nero is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Nero.  If not, see <http://www.gnu.org/licenses/>.

package prefixes

import (
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
)

// MinMatchSimilarity is the Jaro-Winkler score a fuzzy name match needs.
const MinMatchSimilarity float32 = 0.85

// FindShortcut looks a shortcut up by hash, then by case-insensitive name,
// then by the closest Jaro-Winkler name match. Ties keep list order.
func FindShortcut(scs []Shortcut, query string) (Shortcut, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Shortcut{}, false
	}

	for _, sc := range scs {
		if sc.Hash == query {
			return sc, true
		}
	}

	fold := cases.Fold()
	folded := fold.String(query)
	for _, sc := range scs {
		if fold.String(sc.Name) == folded {
			return sc, true
		}
	}

	var best Shortcut
	var bestScore float32
	for _, sc := range scs {
		score := edlib.JaroWinklerSimilarity(folded, fold.String(sc.Name))
		if score > 0.7 {
			log.Debug().
				Str("query", query).
				Str("candidate", sc.Name).
				Float32("similarity", score).
				Msg("fuzzy shortcut candidate")
		}
		if score >= MinMatchSimilarity && score > bestScore {
			best, bestScore = sc, score
		}
	}
	return best, bestScore > 0
}
