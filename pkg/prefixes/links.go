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

package prefixes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// WineUser is the account umu creates inside every prefix.
const WineUser = "steamuser"

var ErrLinksUnsupported = errors.New("filesystem does not support symlinks")

// UserDirs maps a folder of the Wine user profile to a host directory.
type UserDirs map[string]string

// DefaultUserDirs returns the host XDG user directories.
func DefaultUserDirs() UserDirs {
	return UserDirs{
		"Desktop":   xdg.UserDirs.Desktop,
		"Documents": xdg.UserDirs.Documents,
		"Downloads": xdg.UserDirs.Download,
		"Music":     xdg.UserDirs.Music,
		"Pictures":  xdg.UserDirs.Pictures,
		"Videos":    xdg.UserDirs.Videos,
	}
}

// CreateUserLinks replaces the Wine user profile folders of a prefix with
// symlinks to the host folders. Folders Wine already filled with files
// are left alone.
func (s *Store) CreateUserLinks(prefix string, dirs UserDirs) error {
	linker, ok := s.fs.(afero.Linker)
	if !ok {
		return ErrLinksUnsupported
	}
	lstater, _ := s.fs.(afero.Lstater)

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := filepath.Join(s.Path(prefix), DriveC, "users", WineUser)
	if err := s.fs.MkdirAll(profile, 0o750); err != nil {
		return fmt.Errorf("failed to create wine user profile: %w", err)
	}

	names := make([]string, 0, len(dirs))
	for name := range dirs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		target := dirs[name]
		if target == "" {
			continue
		}
		if ok, _ := afero.DirExists(s.fs, target); !ok {
			log.Debug().Str("target", target).Msg("skipping missing user directory")
			continue
		}

		link := filepath.Join(profile, name)
		if !s.clearLinkSpot(lstater, link) {
			continue
		}
		if err := linker.SymlinkIfPossible(target, link); err != nil {
			return fmt.Errorf("failed to link %s: %w", name, err)
		}
		log.Debug().Str("link", link).Str("target", target).Msg("linked user directory")
	}
	return nil
}

// clearLinkSpot removes an old symlink or empty folder at path. It returns
// false when something worth keeping is there.
func (s *Store) clearLinkSpot(lstater afero.Lstater, path string) bool {
	var info os.FileInfo
	var err error
	if lstater != nil {
		info, _, err = lstater.LstatIfPossible(path)
	} else {
		info, err = s.fs.Stat(path)
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	} else if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to stat user folder")
		return false
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return s.fs.Remove(path) == nil
	}
	if info.IsDir() {
		if empty, _ := afero.IsEmpty(s.fs, path); empty {
			return s.fs.Remove(path) == nil
		}
	}
	log.Info().Str("path", path).Msg("keeping populated user folder")
	return false
}
