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
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGenerateUniqueHash_Format(t *testing.T) {
	t.Parallel()

	h := GenerateUniqueHash(nil)
	assert.Len(t, h, HashLength)
	_, err := hex.DecodeString(h)
	require.NoError(t, err)
}

func TestGenerateUniqueHash_NeverReturnsExisting(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "n")
		existing := make(map[string]struct{}, n)
		for range n {
			existing[GenerateUniqueHash(existing)] = struct{}{}
		}
		if len(existing) != n {
			t.Fatalf("expected %d unique hashes, got %d", n, len(existing))
		}
		h := GenerateUniqueHash(existing)
		if _, dup := existing[h]; dup {
			t.Fatalf("hash %s already taken", h)
		}
	})
}

//nolint:paralleltest // swaps the package hash source
func TestGenerateUniqueHash_RerollsCollision(t *testing.T) {
	orig := hashSource
	t.Cleanup(func() { hashSource = orig })

	seq := []string{"aaaa", "aaaa", "bbbb", "cccc"}
	calls := 0
	hashSource = func() string {
		h := seq[calls]
		calls++
		return h
	}

	got := GenerateUniqueHash(map[string]struct{}{"aaaa": {}, "bbbb": {}})
	assert.Equal(t, "cccc", got)
	assert.Equal(t, 4, calls)
}
