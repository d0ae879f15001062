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
	"crypto/md5" //nolint:gosec // identifiers only, not security
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HashLength is the length of a shortcut hash in hex characters.
const HashLength = md5.Size * 2

// hashSource is swapped in tests to force collisions.
var hashSource = newHash

// GenerateUniqueHash returns a 32 character hex identifier not present in
// existing. Collisions are re-rolled.
func GenerateUniqueHash(existing map[string]struct{}) string {
	for {
		h := hashSource()
		if _, taken := existing[h]; !taken {
			return h
		}
		log.Debug().Str("hash", h).Msg("shortcut hash collision, regenerating")
	}
}

func newHash() string {
	id := uuid.New()
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(time.Now().UnixNano())) //nolint:gosec // wraps harmlessly

	sum := md5.New() //nolint:gosec // identifiers only
	_, _ = sum.Write(id[:])
	_, _ = sum.Write(ts[:])
	return hex.EncodeToString(sum.Sum(nil))
}
