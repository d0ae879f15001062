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

package runners

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/andygrunwald/vdf"
	"github.com/rs/zerolog/log"
)

// FlatpakSteamID is the Flatpak app ID for Steam.
const FlatpakSteamID = "com.valvesoftware.Steam"

// FindSteamDir locates the Steam root under home, returning "" when Steam
// is not installed.
func FindSteamDir(home string) string {
	paths := []string{
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, ".var", "app", FlatpakSteamID, ".steam", "steam"),
		filepath.Join(home, ".var", "app", FlatpakSteamID, "data", "Steam"),
		filepath.Join(home, "snap", "steam", "common", ".steam", "steam"),
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			log.Debug().Msgf("found Steam installation: %s", path)
			return path
		}
	}

	log.Debug().Msg("Steam installation not found")
	return ""
}

// LibraryPaths returns every Steam library root listed in
// libraryfolders.vdf, always starting with steamDir itself.
func LibraryPaths(steamDir string) []string {
	paths := []string{steamDir}

	//nolint:gosec // Steam config file
	f, err := os.Open(filepath.Join(steamDir, "steamapps", "libraryfolders.vdf"))
	if err != nil {
		log.Debug().Err(err).Msg("failed to open libraryfolders.vdf")
		return paths
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing libraryfolders.vdf")
		}
	}()

	m, err := vdf.NewParser(f).Parse()
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse libraryfolders.vdf")
		return paths
	}
	m = normalizeVDFKeys(m)

	lfs, ok := m["libraryfolders"].(map[string]any)
	if !ok {
		log.Warn().Msg("libraryfolders is not a map")
		return paths
	}
	for id, v := range lfs {
		lib, ok := v.(map[string]any)
		if !ok {
			continue
		}
		path, ok := lib["path"].(string)
		if !ok || path == "" {
			log.Debug().Msgf("library %s has no path", id)
			continue
		}
		if filepath.Clean(path) == filepath.Clean(steamDir) {
			continue
		}
		paths = append(paths, path)
	}
	slices.Sort(paths[1:])
	return paths
}

// normalizeVDFKeys lowercases every key. VDF keys are case-insensitive.
func normalizeVDFKeys(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = normalizeVDFKeys(nested)
		}
		result[strings.ToLower(k)] = v
	}
	return result
}
