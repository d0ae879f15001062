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
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-nero/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

const (
	keyName      = "Name"
	keyPath      = "Path"
	keyArgs      = "Args"
	envKeyPrefix = "Env."

	windowsDrive = "C:/"
)

var iconNameReplacer = strings.NewReplacer("/", "_", `\`, "_")

// Shortcut is a saved launch target inside a prefix. Hash is its identity
// and never changes. Name is only for display.
type Shortcut struct {
	Env  map[string]string
	Hash string
	Name string
	// Path is stored with C:/ in place of the prefix drive_c directory.
	Path string
	Args string
}

type shortcutInput struct {
	Name string `validate:"required,shortcutname"`
	Path string `validate:"required"`
}

// Shortcuts returns the shortcuts of a prefix sorted case-insensitively by
// name. The order is computed on every call.
func (s *Store) Shortcuts(prefix string) ([]Shortcut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.load(prefix)
	if err != nil {
		return nil, err
	}
	return shortcutsFrom(cfg), nil
}

// Shortcut returns one shortcut by hash.
func (s *Store) Shortcut(prefix, hash string) (Shortcut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.load(prefix)
	if err != nil {
		return Shortcut{}, err
	}
	name, ok := shortcutName(cfg, hash)
	if !ok {
		return Shortcut{}, fmt.Errorf("%w: %s", ErrShortcutNotFound, hash)
	}
	return shortcutFrom(cfg, hash, name), nil
}

// AddShortcut stores a new shortcut under a freshly generated hash.
func (s *Store) AddShortcut(prefix, name, path, args string) (Shortcut, error) {
	name, path, args = strings.TrimSpace(name), strings.TrimSpace(path), strings.TrimSpace(args)
	if err := validation.DefaultValidator.Validate(&shortcutInput{Name: name, Path: path}); err != nil {
		return Shortcut{}, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(prefix)
	if err != nil {
		return Shortcut{}, err
	}

	existing := make(map[string]struct{})
	for _, k := range cfg.Section(SectionShortcuts).Keys() {
		existing[k.Name()] = struct{}{}
	}

	sc := Shortcut{
		Hash: GenerateUniqueHash(existing),
		Name: name,
		Path: s.toWindowsPath(prefix, path),
		Args: args,
	}
	writeShortcut(cfg, sc)
	if err := s.save(prefix, cfg); err != nil {
		return Shortcut{}, err
	}

	log.Info().Str("prefix", prefix).Str("hash", sc.Hash).Str("name", name).Msg("added shortcut")
	return sc, nil
}

// UpdateShortcut rewrites path, args, env and name of an existing
// shortcut. A name change also renames the cached icon.
func (s *Store) UpdateShortcut(prefix string, sc Shortcut) error {
	sc.Name = strings.TrimSpace(sc.Name)
	if err := validation.DefaultValidator.Validate(&shortcutInput{Name: sc.Name, Path: sc.Path}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidName, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(prefix)
	if err != nil {
		return err
	}
	oldName, ok := shortcutName(cfg, sc.Hash)
	if !ok {
		return fmt.Errorf("%w: %s", ErrShortcutNotFound, sc.Hash)
	}

	sc.Path = s.toWindowsPath(prefix, sc.Path)
	cfg.DeleteSection(sc.Hash)
	writeShortcut(cfg, sc)
	if err := s.save(prefix, cfg); err != nil {
		return err
	}

	if oldName != sc.Name {
		s.renameIcon(prefix, sc.Hash, oldName, sc.Name)
	}
	return nil
}

// RenameShortcut changes only the display name. The hash, and with it any
// run bound to the shortcut, is unaffected.
func (s *Store) RenameShortcut(prefix, hash, newName string) error {
	newName = strings.TrimSpace(newName)
	if err := validation.DefaultValidator.Validate(&shortcutInput{Name: newName, Path: "-"}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidName, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(prefix)
	if err != nil {
		return err
	}
	oldName, ok := shortcutName(cfg, hash)
	if !ok {
		return fmt.Errorf("%w: %s", ErrShortcutNotFound, hash)
	}
	if oldName == newName {
		return nil
	}

	cfg.Section(SectionShortcuts).Key(hash).SetValue(newName)
	cfg.Section(hash).Key(keyName).SetValue(newName)
	if err := s.save(prefix, cfg); err != nil {
		return err
	}

	s.renameIcon(prefix, hash, oldName, newName)
	log.Info().Str("prefix", prefix).Str("hash", hash).Str("name", newName).Msg("renamed shortcut")
	return nil
}

// DeleteShortcut removes a shortcut and its cached icon. A missing icon is
// not an error.
func (s *Store) DeleteShortcut(prefix, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(prefix)
	if err != nil {
		return err
	}
	name, ok := shortcutName(cfg, hash)
	if !ok {
		return fmt.Errorf("%w: %s", ErrShortcutNotFound, hash)
	}

	cfg.Section(SectionShortcuts).DeleteKey(hash)
	cfg.DeleteSection(hash)
	if err := s.save(prefix, cfg); err != nil {
		return err
	}

	icon := s.iconPath(prefix, name, hash)
	if err := s.fs.Remove(icon); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("icon", icon).Msg("failed to remove shortcut icon")
	}

	log.Info().Str("prefix", prefix).Str("hash", hash).Msg("deleted shortcut")
	return nil
}

// SetIcon writes a PNG into the icon cache for a shortcut.
func (s *Store) SetIcon(prefix, hash string, png io.Reader) error {
	sc, err := s.Shortcut(prefix, hash)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Join(s.Path(prefix), IconCacheDir), 0o750); err != nil {
		return fmt.Errorf("failed to create icon cache: %w", err)
	}
	f, err := s.fs.Create(s.iconPath(prefix, sc.Name, hash))
	if err != nil {
		return fmt.Errorf("failed to create icon: %w", err)
	}
	if _, err := io.Copy(f, png); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write icon: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write icon: %w", err)
	}
	return nil
}

// IconPath returns where the icon of sc is cached and whether it exists.
func (s *Store) IconPath(prefix string, sc Shortcut) (string, bool) {
	path := s.iconPath(prefix, sc.Name, sc.Hash)
	ok, _ := afero.Exists(s.fs, path)
	return path, ok
}

// ResolveTarget maps a stored C:/ path into the prefix drive_c directory.
func (s *Store) ResolveTarget(prefix, path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	if rest, ok := cutDrive(path); ok {
		return filepath.Join(s.Path(prefix), DriveC, rest)
	}
	return path
}

// TargetExists reports whether a stored path points at an existing file.
func (s *Store) TargetExists(prefix, path string) bool {
	ok, _ := afero.Exists(s.fs, s.ResolveTarget(prefix, path))
	return ok
}

func (s *Store) toWindowsPath(prefix, path string) string {
	driveC := filepath.Join(s.Path(prefix), DriveC) + string(filepath.Separator)
	if rest, ok := strings.CutPrefix(path, driveC); ok {
		return windowsDrive + filepath.ToSlash(rest)
	}
	return path
}

// iconPath keeps names written by other tools inside the icon cache by
// replacing path separators.
func (s *Store) iconPath(prefix, name, hash string) string {
	file := iconNameReplacer.Replace(name) + "-" + hash + ".png"
	return filepath.Join(s.Path(prefix), IconCacheDir, file)
}

// renameIcon must be called with s.mu held.
func (s *Store) renameIcon(prefix, hash, oldName, newName string) {
	from := s.iconPath(prefix, oldName, hash)
	if ok, _ := afero.Exists(s.fs, from); !ok {
		return
	}
	if err := s.fs.Rename(from, s.iconPath(prefix, newName, hash)); err != nil {
		log.Warn().Err(err).Str("icon", from).Msg("failed to rename shortcut icon")
	}
}

func cutDrive(path string) (string, bool) {
	if len(path) >= len(windowsDrive) && strings.EqualFold(path[:len(windowsDrive)], windowsDrive) {
		return path[len(windowsDrive):], true
	}
	return "", false
}

func shortcutName(cfg *ini.File, hash string) (string, bool) {
	sec := cfg.Section(SectionShortcuts)
	if !sec.HasKey(hash) {
		return "", false
	}
	return sec.Key(hash).String(), true
}

func shortcutsFrom(cfg *ini.File) []Shortcut {
	keys := cfg.Section(SectionShortcuts).Keys()
	out := make([]Shortcut, 0, len(keys))
	for _, k := range keys {
		out = append(out, shortcutFrom(cfg, k.Name(), k.String()))
	}
	SortShortcuts(out)
	return out
}

func shortcutFrom(cfg *ini.File, hash, name string) Shortcut {
	sc := Shortcut{Hash: hash, Name: name}
	sec, err := cfg.GetSection(hash)
	if err != nil {
		return sc
	}
	sc.Path = sec.Key(keyPath).String()
	sc.Args = sec.Key(keyArgs).String()
	for _, k := range sec.Keys() {
		if env, ok := strings.CutPrefix(k.Name(), envKeyPrefix); ok && env != "" {
			if sc.Env == nil {
				sc.Env = make(map[string]string)
			}
			sc.Env[env] = k.String()
		}
	}
	return sc
}

// writeShortcut trims values, the ini encoder would otherwise quote them.
func writeShortcut(cfg *ini.File, sc Shortcut) {
	sc.Name = strings.TrimSpace(sc.Name)
	sc.Path = strings.TrimSpace(sc.Path)
	sc.Args = strings.TrimSpace(sc.Args)
	cfg.Section(SectionShortcuts).Key(sc.Hash).SetValue(sc.Name)
	sec := cfg.Section(sc.Hash)
	sec.Key(keyName).SetValue(sc.Name)
	sec.Key(keyPath).SetValue(sc.Path)
	sec.Key(keyArgs).SetValue(sc.Args)
	envKeys := make([]string, 0, len(sc.Env))
	for k := range sc.Env {
		envKeys = append(envKeys, k)
	}
	slices.Sort(envKeys)
	for _, k := range envKeys {
		sec.Key(envKeyPrefix + k).SetValue(strings.TrimSpace(sc.Env[k]))
	}
}

// SortShortcuts orders shortcuts case-insensitively by name, then by hash.
func SortShortcuts(scs []Shortcut) {
	slices.SortFunc(scs, func(a, b Shortcut) int {
		if c := compareFolded(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Hash, b.Hash)
	})
}
