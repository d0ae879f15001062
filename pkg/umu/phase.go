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

package umu

import "strings"

// Phase is an advisory progress signal scraped from launcher output.
// Nothing makes control decisions on it.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseRunnerStarting
	PhaseRunnerUpdated
	PhaseProtonStarted
	PhaseProtonStopping
	PhaseProtonStopped
	PhaseUpgrading
	PhaseRuntimeDownloading
	PhaseInstallingVerbs
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseRunnerStarting:
		return "runner_starting"
	case PhaseRunnerUpdated:
		return "runner_updated"
	case PhaseProtonStarted:
		return "proton_started"
	case PhaseProtonStopping:
		return "proton_stopping"
	case PhaseProtonStopped:
		return "proton_stopped"
	case PhaseUpgrading:
		return "upgrading"
	case PhaseRuntimeDownloading:
		return "runtime_downloading"
	case PhaseInstallingVerbs:
		return "installing_verbs"
	default:
		return "unknown"
	}
}

// Text is the progress line shown to the user for a phase.
func (p Phase) Text() string {
	switch p {
	case PhaseRunnerStarting:
		return "umu launching..."
	case PhaseRunnerUpdated:
		return "umu runtime updated, starting Proton..."
	case PhaseProtonStopping:
		return "Stopping Proton process..."
	case PhaseUpgrading:
		return "Creating prefix with runner..."
	case PhaseRuntimeDownloading:
		return "Downloading Steam runtime..."
	case PhaseInstallingVerbs:
		return "Installing winetricks verbs..."
	case PhaseNone, PhaseProtonStarted, PhaseProtonStopped:
		return ""
	default:
		return ""
	}
}

// HideIndicator reports whether a transient starting or stopping
// indicator should go away on this phase.
func (p Phase) HideIndicator() bool {
	return p == PhaseProtonStarted || p == PhaseProtonStopped
}

var markers = []struct {
	text  string
	phase Phase
}{
	{text: "Proton: Upgrading", phase: PhaseUpgrading},
	{text: "Downloading latest steamrt sniper", phase: PhaseRuntimeDownloading},
	{text: "Proton: Running winetricks verbs in prefix:", phase: PhaseInstallingVerbs},
	{text: "fsync: up and running", phase: PhaseProtonStarted},
	{text: "esync: up and running", phase: PhaseProtonStarted},
}

// ScanLine returns the phase a line of launcher output announces, or
// PhaseNone.
func ScanLine(line string) Phase {
	for _, m := range markers {
		if strings.Contains(line, m.text) {
			return m.phase
		}
	}

	lower := strings.ToLower(line)
	if strings.Contains(lower, "steamrt") || strings.Contains(lower, "steamlinuxruntime") {
		if strings.Contains(lower, "up to date") ||
			strings.Contains(lower, "up-to-date") ||
			strings.Contains(lower, "updated") {
			return PhaseRunnerUpdated
		}
	}
	return PhaseNone
}
