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

// Package prefixes owns everything Nero keeps on disk for a prefix: its
// settings file, shortcut map, icon cache and the few Wine files the
// manager reads or patches.
//
// Layout under the prefixes root:
//
//	<root>/<prefix>/prefixSettings.ini
//	<root>/<prefix>/.icoCache/<name>-<hash>.png
//	<root>/<prefix>/system.reg
//	<root>/<prefix>/winetricks.log
//	<root>/<prefix>/drive_c/...
package prefixes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-nero/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	SettingsFile  = "prefixSettings.ini"
	IconCacheDir  = ".icoCache"
	SystemRegFile = "system.reg"
	WinetricksLog = "winetricks.log"
	DriveC        = "drive_c"

	SectionPrefix    = "PrefixSettings"
	SectionShortcuts = "Shortcuts"
	KeyRunner        = "CurrentRunner"
)

var (
	ErrPrefixNotFound   = errors.New("prefix not found")
	ErrPrefixExists     = errors.New("prefix already exists")
	ErrShortcutNotFound = errors.New("shortcut not found")
	ErrInvalidName      = errors.New("invalid name")
)

// Prefix is a snapshot of one prefix's settings.
type Prefix struct {
	Settings  map[string]string
	Name      string
	Runner    string
	Shortcuts []Shortcut
}

// Store reads and writes prefixes under a root directory. Methods are safe
// for concurrent use.
type Store struct {
	fs   afero.Fs
	root string
	mu   syncutil.RWMutex
}

func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// NewOsStore is a Store on the real filesystem.
func NewOsStore(root string) *Store {
	return NewStore(afero.NewOsFs(), root)
}

func (s *Store) Root() string {
	return s.root
}

// Fs exposes the backing filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Path returns the WINEPREFIX directory of a prefix.
func (s *Store) Path(prefix string) string {
	return filepath.Join(s.root, prefix)
}

func (s *Store) settingsPath(prefix string) string {
	return filepath.Join(s.root, prefix, SettingsFile)
}

// List returns all prefixes, case-insensitively sorted. A directory is a
// prefix only once its settings file exists, so failed creations are not
// listed.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read prefixes directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if ok, _ := afero.Exists(s.fs, s.settingsPath(e.Name())); ok {
			names = append(names, e.Name())
		}
	}
	slices.SortFunc(names, compareFolded)
	return names, nil
}

// Exists reports whether prefix has been committed.
func (s *Store) Exists(prefix string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ok, _ := afero.Exists(s.fs, s.settingsPath(prefix))
	return ok
}

// DirExists reports whether anything is at the prefix path, committed or not.
func (s *Store) DirExists(prefix string) bool {
	ok, _ := afero.DirExists(s.fs, s.Path(prefix))
	return ok
}

// AddPrefix commits a prefix whose Wine directory has been populated.
func (s *Store) AddPrefix(name, runner string) error {
	if !validation.PrefixName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, _ := afero.Exists(s.fs, s.settingsPath(name)); ok {
		return fmt.Errorf("%w: %s", ErrPrefixExists, name)
	}

	if err := s.fs.MkdirAll(filepath.Join(s.Path(name), IconCacheDir), 0o750); err != nil {
		return fmt.Errorf("failed to create prefix directory: %w", err)
	}

	cfg := newSettings()
	cfg.Section(SectionPrefix).Key(KeyRunner).SetValue(runner)
	cfg.Section(SectionShortcuts)
	if err := s.save(name, cfg); err != nil {
		return err
	}

	log.Info().Str("prefix", name).Str("runner", runner).Msg("added prefix")
	return nil
}

// DeletePrefix removes the whole prefix directory.
func (s *Store) DeletePrefix(name string) error {
	if !validation.PrefixName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, _ := afero.DirExists(s.fs, s.Path(name)); !ok {
		return fmt.Errorf("%w: %s", ErrPrefixNotFound, name)
	}
	if err := s.fs.RemoveAll(s.Path(name)); err != nil {
		return fmt.Errorf("failed to delete prefix %s: %w", name, err)
	}

	log.Info().Str("prefix", name).Msg("deleted prefix")
	return nil
}

// Prefix loads the settings and shortcuts of one prefix.
func (s *Store) Prefix(name string) (Prefix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.load(name)
	if err != nil {
		return Prefix{}, err
	}

	sec := cfg.Section(SectionPrefix)
	return Prefix{
		Name:      name,
		Runner:    sec.Key(KeyRunner).String(),
		Settings:  sec.KeysHash(),
		Shortcuts: shortcutsFrom(cfg),
	}, nil
}

// Runner returns the CurrentRunner setting.
func (s *Store) Runner(name string) (string, error) {
	return s.Setting(name, KeyRunner)
}

func (s *Store) SetRunner(name, runner string) error {
	return s.SetSetting(name, KeyRunner, runner)
}

// Setting returns a key from the prefix settings section.
func (s *Store) Setting(name, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.load(name)
	if err != nil {
		return "", err
	}
	return cfg.Section(SectionPrefix).Key(key).String(), nil
}

func (s *Store) SetSetting(name, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(name)
	if err != nil {
		return err
	}
	cfg.Section(SectionPrefix).Key(key).SetValue(strings.TrimSpace(value))
	return s.save(name, cfg)
}
