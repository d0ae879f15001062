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

// Package notifications is the one-way side channel from the manager to
// whatever displays its state: the tray, desktop notifications and the
// CLI. Sends never block the sender.
package notifications

import (
	"github.com/rs/zerolog/log"
)

const (
	MethodPrefixCreated      = "prefixes.created"
	MethodPrefixCreateFailed = "prefixes.create_failed"
	MethodPrefixDeleted      = "prefixes.deleted"
	MethodPrefixesChanged    = "prefixes.changed"
	MethodTricksInstalled    = "tricks.installed"
	MethodTricksFailed       = "tricks.failed"
	MethodStatusChanged      = "status.changed"
	MethodRunPhase           = "runs.phase"
	MethodUIHide             = "ui.hide"
	MethodUIShow             = "ui.show"
)

// Notification is a fire-and-forget message. Params holds one of the
// payload types below, or nil.
type Notification struct {
	Params any
	Method string
}

// JobResult is the payload of prefix creation and tricks installation
// results.
type JobResult struct {
	Prefix string
	Runner string
	// Hint explains a failure to the user.
	Hint     string
	Verbs    []string
	ExitCode int
}

// Icon is the tray icon state.
type Icon int

const (
	IconIdle Icon = iota
	IconPlaying
	IconBusy
)

// Status is the aggregate run state shown by the tray.
type Status struct {
	Text    string
	Prefix  string
	Icon    Icon
	Running int
	// SettingsEnabled is false while runs are live, prefix settings and
	// tricks must not change under a running app.
	SettingsEnabled bool
}

// RunPhase reports a progress phase of one run.
type RunPhase struct {
	Prefix string
	Name   string
	Text   string
	Phase  string
	Handle uint64
	// HideIndicator is set when a starting or stopping indicator should
	// be dismissed.
	HideIndicator bool
}

// send does a non-blocking send so a slow or missing consumer never
// stalls the manager.
func send(ns chan<- Notification, n Notification) {
	if ns == nil {
		return
	}
	select {
	case ns <- n:
	default:
		log.Warn().Str("method", n.Method).Msg("notification channel full, dropping notification")
	}
}

func PrefixCreated(ns chan<- Notification, payload JobResult) {
	send(ns, Notification{Method: MethodPrefixCreated, Params: payload})
}

func PrefixCreateFailed(ns chan<- Notification, payload JobResult) {
	send(ns, Notification{Method: MethodPrefixCreateFailed, Params: payload})
}

func PrefixDeleted(ns chan<- Notification, prefix string) {
	send(ns, Notification{Method: MethodPrefixDeleted, Params: prefix})
}

func PrefixesChanged(ns chan<- Notification) {
	send(ns, Notification{Method: MethodPrefixesChanged})
}

func TricksInstalled(ns chan<- Notification, payload JobResult) {
	send(ns, Notification{Method: MethodTricksInstalled, Params: payload})
}

func TricksFailed(ns chan<- Notification, payload JobResult) {
	send(ns, Notification{Method: MethodTricksFailed, Params: payload})
}

func StatusChanged(ns chan<- Notification, payload Status) {
	send(ns, Notification{Method: MethodStatusChanged, Params: payload})
}

func RunPhaseChanged(ns chan<- Notification, payload RunPhase) {
	send(ns, Notification{Method: MethodRunPhase, Params: payload})
}

// UIHide asks the window layer to hide while a shortcut runs.
func UIHide(ns chan<- Notification) {
	send(ns, Notification{Method: MethodUIHide})
}

func UIShow(ns chan<- Notification) {
	send(ns, Notification{Method: MethodUIShow})
}
