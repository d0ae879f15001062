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
	"fmt"
	"slices"
)

// Handle identifies a run slot. It stays valid while other slots come and
// go, and a handle to a removed slot never resolves to a newer one.
type Handle struct {
	index uint32
	gen   uint32
}

// ID packs the handle into one number for display and notifications.
func (h Handle) ID() uint64 {
	return uint64(h.gen)<<32 | uint64(h.index)
}

func (h Handle) String() string {
	return fmt.Sprintf("%d.%d", h.index, h.gen)
}

type cell[T any] struct {
	val  T
	gen  uint32
	live bool
}

// arena stores values under stable handles. Freed cells are reused with
// a bumped generation. Not safe for concurrent use.
type arena[T any] struct {
	cells []cell[T]
	free  []uint32
	// order is insertion order of live handles.
	order []Handle
}

func (a *arena[T]) insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.cells = append(a.cells, cell[T]{})
		idx = uint32(len(a.cells) - 1) //nolint:gosec // bounded by live runs
	}

	c := &a.cells[idx]
	c.gen++
	c.val = v
	c.live = true

	h := Handle{index: idx, gen: c.gen}
	a.order = append(a.order, h)
	return h
}

func (a *arena[T]) get(h Handle) (T, bool) {
	if int(h.index) >= len(a.cells) {
		var zero T
		return zero, false
	}
	c := a.cells[h.index]
	if !c.live || c.gen != h.gen {
		var zero T
		return zero, false
	}
	return c.val, true
}

func (a *arena[T]) remove(h Handle) (T, bool) {
	v, ok := a.get(h)
	if !ok {
		return v, false
	}
	var zero T
	a.cells[h.index].val = zero
	a.cells[h.index].live = false
	a.free = append(a.free, h.index)
	a.order = slices.DeleteFunc(a.order, func(o Handle) bool { return o == h })
	return v, true
}

func (a *arena[T]) len() int {
	return len(a.order)
}

// values returns live values in insertion order.
func (a *arena[T]) values() []T {
	out := make([]T, 0, len(a.order))
	for _, h := range a.order {
		out = append(out, a.cells[h.index].val)
	}
	return out
}

// last returns the most recently inserted live value.
func (a *arena[T]) last() (T, bool) {
	if len(a.order) == 0 {
		var zero T
		return zero, false
	}
	return a.get(a.order[len(a.order)-1])
}
