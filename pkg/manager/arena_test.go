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

package manager

import (
	"cmp"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestArena_StableHandles(t *testing.T) {
	t.Parallel()

	var a arena[string]
	h1 := a.insert("one")
	h2 := a.insert("two")
	h3 := a.insert("three")

	v, ok := a.remove(h2)
	require.True(t, ok)
	assert.Equal(t, "two", v)

	got, ok := a.get(h1)
	assert.True(t, ok)
	assert.Equal(t, "one", got)
	got, ok = a.get(h3)
	assert.True(t, ok)
	assert.Equal(t, "three", got)

	// the freed cell is reused, the old handle stays dead
	h4 := a.insert("four")
	assert.Equal(t, h2.index, h4.index)
	assert.NotEqual(t, h2, h4)
	_, ok = a.get(h2)
	assert.False(t, ok)

	assert.Equal(t, []string{"one", "three", "four"}, a.values())
	last, ok := a.last()
	require.True(t, ok)
	assert.Equal(t, "four", last)
}

func TestArena_RemoveTwice(t *testing.T) {
	t.Parallel()

	var a arena[int]
	h := a.insert(1)
	_, ok := a.remove(h)
	require.True(t, ok)
	_, ok = a.remove(h)
	assert.False(t, ok)
	_, ok = a.get(Handle{index: 99})
	assert.False(t, ok)
	_, ok = a.last()
	assert.False(t, ok)
	assert.Zero(t, a.len())
}

func TestArena_Property(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		var a arena[int]
		model := make(map[Handle]int)
		var dead []Handle
		next := 0

		t.Repeat(map[string]func(*rapid.T){
			"insert": func(t *rapid.T) {
				h := a.insert(next)
				if _, dup := model[h]; dup {
					t.Fatalf("handle %v reused while live", h)
				}
				model[h] = next
				next++
			},
			"remove": func(t *rapid.T) {
				if len(model) == 0 {
					t.Skip("empty")
				}
				handles := make([]Handle, 0, len(model))
				for h := range model {
					handles = append(handles, h)
				}
				slices.SortFunc(handles, func(x, y Handle) int { return cmp.Compare(x.ID(), y.ID()) })
				h := rapid.SampledFrom(handles).Draw(t, "handle")
				v, ok := a.remove(h)
				if !ok || v != model[h] {
					t.Fatalf("remove %v = %d, %v; want %d", h, v, ok, model[h])
				}
				delete(model, h)
				dead = append(dead, h)
			},
			"": func(t *rapid.T) {
				if a.len() != len(model) {
					t.Fatalf("len %d, want %d", a.len(), len(model))
				}
				for h, want := range model {
					if v, ok := a.get(h); !ok || v != want {
						t.Fatalf("get %v = %d, %v; want %d", h, v, ok, want)
					}
				}
				for _, h := range dead {
					if _, ok := a.get(h); ok {
						t.Fatalf("dead handle %v resolved", h)
					}
				}
			},
		})
	})
}
