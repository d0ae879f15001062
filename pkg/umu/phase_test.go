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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want Phase
	}{
		{line: "Proton: Upgrading prefix from None to GE-Proton9-20 (/home/u/Prefixes/Test/)", want: PhaseUpgrading},
		{line: "umu: Downloading latest steamrt sniper, please wait...", want: PhaseRuntimeDownloading},
		{line: "Proton: Running winetricks verbs in prefix: vcrun2019", want: PhaseInstallingVerbs},
		{line: "fsync: up and running.", want: PhaseProtonStarted},
		{line: "esync: up and running.", want: PhaseProtonStarted},
		{line: "INFO: steamrt3 is up to date", want: PhaseRunnerUpdated},
		{line: "SteamLinuxRuntime_sniper updated", want: PhaseRunnerUpdated},
		{line: "steamrt3: downloading", want: PhaseNone},
		{line: "0024:fixme:ntdll:NtQuerySystemInformation info_class", want: PhaseNone},
		{line: "", want: PhaseNone},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ScanLine(tt.line), tt.line)
		})
	}
}

func TestPhase_HideIndicator(t *testing.T) {
	t.Parallel()

	for p := PhaseNone; p <= PhaseInstallingVerbs; p++ {
		want := p == PhaseProtonStarted || p == PhaseProtonStopped
		assert.Equal(t, want, p.HideIndicator(), p.String())
	}
}

func TestPhase_Text(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "umu launching...", PhaseRunnerStarting.Text())
	assert.Equal(t, "Stopping Proton process...", PhaseProtonStopping.Text())
	assert.Empty(t, PhaseProtonStarted.Text())
	assert.Equal(t, "unknown", Phase(99).String())
}
