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
)

const (
	// Shell runs multi step winetricks sequences.
	Shell          = "/bin/sh"
	winetricksVerb = "winetricks"
)

// dotnetCleanup works around winetricks refusing to install .NET into a
// fresh Proton prefix that already carries stale framework keys.
var dotnetCleanup = []string{
	`reg delete "HKLM\Software\Wow6432Node\Microsoft\.NETFramework" /f`,
	`reg delete "HKLM\Software\Wow6432Node\Microsoft\NET Framework Setup" /f`,
}

// Command is a program and its arguments.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, shellQuote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

// BuildLaunchArgs returns the command that creates or updates a prefix.
// Without tricks the launcher runs "reg /?", which makes Proton populate
// the prefix and exits without opening a window. With tricks it returns a
// shell script that runs winetricks through the launcher, preceded by the
// .NET registry cleanup when a dotnet verb is requested and none is
// installed yet.
func BuildLaunchArgs(launcher string, tricks, installed []string) Command {
	if len(tricks) == 0 {
		return Command{Name: launcher, Args: []string{"reg", "/?"}}
	}

	l := shellQuote(launcher)
	var steps []string
	if wantsDotnet(tricks) && !wantsDotnet(installed) {
		for _, c := range dotnetCleanup {
			steps = append(steps, l+" "+c)
		}
	}

	install := make([]string, 0, len(tricks)+2)
	install = append(install, l, winetricksVerb)
	for _, v := range tricks {
		install = append(install, shellQuote(v))
	}
	steps = append(steps, strings.Join(install, " "))

	return Command{Name: Shell, Args: []string{"-c", strings.Join(steps, " && ")}}
}

// BuildKillArgs asks the launcher to stop every process in the prefix.
func BuildKillArgs(launcher string) Command {
	return Command{Name: launcher, Args: []string{"wineserver", "-k"}}
}

// BuildWaitArgs blocks until every process in the prefix has exited.
func BuildWaitArgs(launcher string) Command {
	return Command{Name: launcher, Args: []string{"wineserver", "-w"}}
}

func wantsDotnet(verbs []string) bool {
	for _, v := range verbs {
		if strings.Contains(v, "dotnet") {
			return true
		}
	}
	return false
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, unsafeShellRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("_-./=:,+@%", r)
}
