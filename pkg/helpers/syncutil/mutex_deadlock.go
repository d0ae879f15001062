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

//go:build deadlock

// Package syncutil holds the mutex types used by the manager and the prefix
// store. Building with -tags=deadlock swaps them for go-deadlock versions
// that report lock cycles and long waits.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockEnabled reports whether the deadlock detector is compiled in.
const DeadlockEnabled = true

// No lock in the manager is held across a subprocess call, so anything
// waiting this long is a real bug.
func init() {
	deadlock.Opts.DeadlockTimeout = 15 * time.Second
}

// Mutex reports potential deadlocks through go-deadlock.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex reports potential deadlocks through go-deadlock.
type RWMutex struct {
	deadlock.RWMutex
}
