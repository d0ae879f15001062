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

package manager

import (
	"fmt"
	"io"

	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
	"github.com/ZaparooProject/zaparoo-nero/pkg/prefixes"
	"github.com/rs/zerolog/log"
)

// currentLocked returns the current prefix or ErrNoPrefix. Must be called
// with m.mu held.
func (m *Manager) currentLocked() (string, error) {
	if m.current == "" {
		return "", ErrNoPrefix
	}
	return m.current, nil
}

func (m *Manager) currentPrefix() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

// Shortcuts lists the shortcuts of the current prefix, sorted by name.
func (m *Manager) Shortcuts() ([]prefixes.Shortcut, error) {
	prefix, err := m.currentPrefix()
	if err != nil {
		return nil, err
	}
	scs, err := m.store.Shortcuts(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list shortcuts: %w", err)
	}
	return scs, nil
}

// FindShortcut resolves a hash or name in the current prefix.
func (m *Manager) FindShortcut(query string) (prefixes.Shortcut, bool, error) {
	scs, err := m.Shortcuts()
	if err != nil {
		return prefixes.Shortcut{}, false, err
	}
	sc, ok := prefixes.FindShortcut(scs, query)
	return sc, ok, nil
}

func (m *Manager) AddShortcut(name, path, args string) (prefixes.Shortcut, error) {
	prefix, err := m.currentPrefix()
	if err != nil {
		return prefixes.Shortcut{}, err
	}
	sc, err := m.store.AddShortcut(prefix, name, path, args)
	if err != nil {
		return prefixes.Shortcut{}, fmt.Errorf("failed to add shortcut: %w", err)
	}
	return sc, nil
}

// RenameShortcut changes the display name. Live runs of the shortcut stay
// bound to it and pick up the new name.
func (m *Manager) RenameShortcut(hash, name string) error {
	prefix, err := m.currentPrefix()
	if err != nil {
		return err
	}
	if err := m.store.RenameShortcut(prefix, hash, name); err != nil {
		return fmt.Errorf("failed to rename shortcut: %w", err)
	}
	m.renameRuns(hash)
	return nil
}

// UpdateShortcut saves edited shortcut properties.
func (m *Manager) UpdateShortcut(sc prefixes.Shortcut) error {
	prefix, err := m.currentPrefix()
	if err != nil {
		return err
	}
	if err := m.store.UpdateShortcut(prefix, sc); err != nil {
		return fmt.Errorf("failed to update shortcut: %w", err)
	}
	m.renameRuns(sc.Hash)
	return nil
}

// renameRuns refreshes the display name of live runs bound to hash.
func (m *Manager) renameRuns(hash string) {
	m.mu.Lock()
	sc, err := m.store.Shortcut(m.current, hash)
	if err != nil {
		m.mu.Unlock()
		return
	}
	changed := false
	for _, r := range m.slots.values() {
		if r.slot.ID == hash && r.slot.Name != sc.Name {
			r.slot.Name = sc.Name
			changed = true
		}
	}
	status := m.statusLocked()
	m.mu.Unlock()

	if changed {
		notifications.StatusChanged(m.ns, status)
	}
}

// SetShortcutIcon replaces the cached PNG icon of a shortcut.
func (m *Manager) SetShortcutIcon(hash string, png io.Reader) error {
	prefix, err := m.currentPrefix()
	if err != nil {
		return err
	}
	if err := m.store.SetIcon(prefix, hash, png); err != nil {
		return fmt.Errorf("failed to set shortcut icon: %w", err)
	}
	return nil
}

// DeleteShortcut removes a shortcut and its icon. Refused while runs are
// live in the current prefix.
func (m *Manager) DeleteShortcut(hash string) error {
	m.mu.Lock()
	prefix, err := m.currentLocked()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if m.slots.len() > 0 {
		m.mu.Unlock()
		return ErrRunsActive
	}
	err = m.store.DeleteShortcut(prefix, hash)
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to delete shortcut: %w", err)
	}
	return nil
}

// DeletePrefix removes a prefix directory. Refused while it has live runs
// or a job. Deleting the current or default prefix clears that selection.
func (m *Manager) DeletePrefix(name string) error {
	m.mu.Lock()
	if name == m.current && m.slots.len() > 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPrefixBusy, name)
	}
	if _, busy := m.jobs[name]; busy {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPrefixBusy, name)
	}
	if err := m.store.DeletePrefix(name); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to delete prefix: %w", err)
	}
	if m.current == name {
		m.current = ""
		m.runnerName = ""
	}
	status := m.statusLocked()
	m.mu.Unlock()

	if m.cfg.DefaultPrefix() == name {
		m.cfg.SetDefaultPrefix("")
		if err := m.cfg.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to clear default prefix")
		}
	}

	notifications.PrefixDeleted(m.ns, name)
	notifications.PrefixesChanged(m.ns)
	notifications.StatusChanged(m.ns, status)
	return nil
}

// SetPrefixRunner changes the runner of the current prefix. Refused while
// runs are live.
func (m *Manager) SetPrefixRunner(runner string) error {
	if _, ok := m.runners.Find(runner); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRunner, runner)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prefix, err := m.currentLocked()
	if err != nil {
		return err
	}
	if m.slots.len() > 0 {
		return ErrRunsActive
	}
	if err := m.store.SetRunner(prefix, runner); err != nil {
		return fmt.Errorf("failed to save runner: %w", err)
	}
	m.runnerName = runner
	log.Info().Str("prefix", prefix).Str("runner", runner).Msg("changed prefix runner")
	return nil
}

// InstalledVerbs reads winetricks.log of the current prefix.
func (m *Manager) InstalledVerbs() ([]string, error) {
	prefix, err := m.currentPrefix()
	if err != nil {
		return nil, err
	}
	verbs, err := m.store.InstalledVerbs(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to read installed verbs: %w", err)
	}
	return verbs, nil
}
