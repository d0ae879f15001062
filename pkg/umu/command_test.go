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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cleanupFramework = `/usr/bin/umu-run reg delete "HKLM\Software\Wow6432Node\Microsoft\.NETFramework" /f`
	cleanupSetup     = `/usr/bin/umu-run reg delete "HKLM\Software\Wow6432Node\Microsoft\NET Framework Setup" /f`
)

func TestBuildLaunchArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tricks    []string
		installed []string
		want      Command
	}{
		{
			name: "no_tricks",
			want: Command{Name: "/usr/bin/umu-run", Args: []string{"reg", "/?"}},
		},
		{
			name:   "dotnet_requested",
			tricks: []string{"dotnet48", "vcrun2019"},
			want: Command{Name: Shell, Args: []string{"-c", cleanupFramework + " && " + cleanupSetup +
				" && /usr/bin/umu-run winetricks dotnet48 vcrun2019"}},
		},
		{
			name:   "no_dotnet",
			tricks: []string{"vcrun2019"},
			want:   Command{Name: Shell, Args: []string{"-c", "/usr/bin/umu-run winetricks vcrun2019"}},
		},
		{
			name:      "dotnet_already_installed",
			tricks:    []string{"dotnet48"},
			installed: []string{"vcrun2019", "dotnet40"},
			want:      Command{Name: Shell, Args: []string{"-c", "/usr/bin/umu-run winetricks dotnet48"}},
		},
		{
			name:      "other_installed_verbs",
			tricks:    []string{"dotnet6"},
			installed: []string{"vcrun2019"},
			want: Command{Name: Shell, Args: []string{"-c", cleanupFramework + " && " + cleanupSetup +
				" && /usr/bin/umu-run winetricks dotnet6"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildLaunchArgs("/usr/bin/umu-run", tt.tricks, tt.installed))
		})
	}
}

func TestBuildLaunchArgs_CleanupBeforeWinetricks(t *testing.T) {
	t.Parallel()

	cmd := BuildLaunchArgs("umu-run", []string{"dotnet48", "vcrun2019"}, nil)
	require.Len(t, cmd.Args, 2)
	script := cmd.Args[1]

	steps := strings.Split(script, " && ")
	require.Len(t, steps, 3)
	assert.Contains(t, steps[0], "reg delete")
	assert.Contains(t, steps[1], "reg delete")
	assert.True(t, strings.HasPrefix(steps[2], "umu-run winetricks "))
}

func TestBuildLaunchArgs_QuotesLauncher(t *testing.T) {
	t.Parallel()

	cmd := BuildLaunchArgs("/opt/my tools/umu-run", []string{"font's"}, nil)
	assert.Equal(t, `'/opt/my tools/umu-run' winetricks 'font'\''s'`, cmd.Args[1])
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "umu-run reg '/?'", Command{Name: "umu-run", Args: []string{"reg", "/?"}}.String())
	assert.Equal(t, "umu-run wineserver -k", BuildKillArgs("umu-run").String())
	assert.Equal(t, "umu-run ''", Command{Name: "umu-run", Args: []string{""}}.String())
}
