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

// Package umu shapes and runs umu-run invocations: the environment a
// prefix needs, the argv or shell script for creating a prefix and
// installing winetricks verbs, and a streaming runner that scrapes the
// launcher output for progress phases.
package umu

import (
	"maps"
	"slices"
	"strings"
)

const (
	EnvWinePrefix = "WINEPREFIX"
	EnvGameID     = "GAMEID"
	EnvProtonPath = "PROTONPATH"
	// EnvUseXalia turns off the accessibility helper newer Proton builds
	// start by default, it hangs some installers.
	EnvUseXalia = "PROTON_USE_XALIA"

	// GameID is the placeholder id umu uses when no protonfixes apply.
	GameID = "0"
)

// Env holds environment overrides applied on top of an inherited
// environment.
type Env map[string]string

// Environ merges e over base, which is in os.Environ form. Overridden
// variables are dropped from base and the overrides appended in key order
// so the result is deterministic.
func (e Env) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(e))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := e[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range slices.Sorted(maps.Keys(e)) {
		out = append(out, k+"="+e[k])
	}
	return out
}

// Clone returns a copy that can be modified independently.
func (e Env) Clone() Env {
	return maps.Clone(e)
}

// BuildCreateEnv returns the variables umu-run needs to create or update
// the prefix at prefixPath with the Proton build at runnerPath.
func BuildCreateEnv(prefixPath, runnerPath string) Env {
	return Env{
		EnvWinePrefix: prefixPath,
		EnvGameID:     GameID,
		EnvProtonPath: runnerPath,
		EnvUseXalia:   "0",
	}
}

// BuildRunEnv is BuildCreateEnv plus per-shortcut overrides. Overrides may
// change GAMEID or PROTON_USE_XALIA but never the prefix or runner.
func BuildRunEnv(prefixPath, runnerPath string, extra map[string]string) Env {
	env := make(Env, len(extra)+4)
	for k, v := range extra {
		if k == "" || strings.ContainsRune(k, '=') {
			continue
		}
		env[k] = v
	}
	if _, ok := env[EnvGameID]; !ok {
		env[EnvGameID] = GameID
	}
	if _, ok := env[EnvUseXalia]; !ok {
		env[EnvUseXalia] = "0"
	}
	env[EnvWinePrefix] = prefixPath
	env[EnvProtonPath] = runnerPath
	return env
}
