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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultWatchDebounce groups the burst of events a prefix creation or
// deletion produces into one callback.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watch calls onChange after prefixes are added, removed or their settings
// rewritten on disk, including by other processes. It blocks until ctx is
// done. Only works on a Store backed by the real filesystem.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("failed to create prefixes directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing prefix watcher")
		}
	}()

	if err := watcher.Add(s.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.root, err)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("failed to read prefixes directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			watchPrefixDir(watcher, filepath.Join(s.root, e.Name()))
		}
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(watcher, event) {
				continue
			}
			fire = time.After(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("prefix watcher error")
		case <-fire:
			fire = nil
			onChange()
		}
	}
}

// relevant filters events down to prefix directories and their settings
// files, adding watches on new prefix directories as they appear.
func (s *Store) relevant(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	dir := filepath.Dir(event.Name)
	if dir == filepath.Clean(s.root) {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				watchPrefixDir(watcher, event.Name)
			}
		}
		return event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	}
	return filepath.Base(event.Name) == SettingsFile
}

func watchPrefixDir(watcher *fsnotify.Watcher, dir string) {
	if err := watcher.Add(dir); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("failed to watch prefix directory")
	}
}
