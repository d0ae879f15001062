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
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
	"github.com/ZaparooProject/zaparoo-nero/pkg/umu"
	"github.com/rs/zerolog/log"
)

// StartShortcut launches a shortcut of the current prefix in a new run
// slot. The target must exist on disk.
func (m *Manager) StartShortcut(_ context.Context, hash string) (Handle, error) {
	m.mu.Lock()
	if err := m.canLaunchLocked(); err != nil {
		m.mu.Unlock()
		return Handle{}, err
	}

	sc, err := m.store.Shortcut(m.current, hash)
	if err != nil {
		m.mu.Unlock()
		return Handle{}, fmt.Errorf("failed to load shortcut: %w", err)
	}
	if !m.store.TargetExists(m.current, sc.Path) {
		m.mu.Unlock()
		return Handle{}, fmt.Errorf("%w: %s", ErrTargetNotFound, sc.Path)
	}

	sess := m.sessionLocked()
	h := m.addRunLocked(Slot{ID: hash, Name: sc.Name}, sess,
		func(ctx context.Context, opts umu.LaunchOptions) (umu.Result, error) {
			return m.launcher.StartShortcut(ctx, sess, hash, opts)
		})
	status := m.statusLocked()
	hide := m.cfg.ShortcutHidesManager()
	m.mu.Unlock()

	notifications.StatusChanged(m.ns, status)
	if hide {
		notifications.UIHide(m.ns)
	}
	return h, nil
}

// StartOnetime launches an executable that is not saved as a shortcut.
// args is split with umu.SplitArgs. A C:/ path maps into the prefix.
func (m *Manager) StartOnetime(_ context.Context, path, args string) (Handle, error) {
	m.mu.Lock()
	if err := m.canLaunchLocked(); err != nil {
		m.mu.Unlock()
		return Handle{}, err
	}
	if strings.TrimSpace(path) == "" || !m.store.TargetExists(m.current, path) {
		m.mu.Unlock()
		return Handle{}, fmt.Errorf("%w: %s", ErrTargetNotFound, path)
	}

	sess := m.sessionLocked()
	split := umu.SplitArgs(args)
	target := m.store.ResolveTarget(m.current, path)
	h := m.addRunLocked(Slot{ID: OnetimeID, Name: filepath.Base(target), Path: target}, sess,
		func(ctx context.Context, opts umu.LaunchOptions) (umu.Result, error) {
			return m.launcher.StartOnetime(ctx, sess, target, split, opts)
		})
	status := m.statusLocked()
	m.mu.Unlock()

	notifications.StatusChanged(m.ns, status)
	return h, nil
}

func (m *Manager) canLaunchLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.current == "" {
		return ErrNoPrefix
	}
	if _, busy := m.jobs[m.current]; busy {
		return fmt.Errorf("%w: %s", ErrJobActive, m.current)
	}
	return nil
}

// addRunLocked creates the slot and starts its controller. Must be called
// with m.mu held.
func (m *Manager) addRunLocked(slot Slot, sess umu.Session, launch launchFunc) Handle {
	group := m.slots.len() > 0
	if group {
		for _, r := range m.slots.values() {
			r.slot.Group = true
			r.ctrl.group.Store(true)
		}
	}

	// a kill already sent does not cover the new run
	m.killLatched = false

	slot.Prefix = m.current
	slot.Started = m.clock.Now()
	slot.Group = group
	r := &run{slot: slot}
	h := m.slots.insert(r)
	r.slot.Handle = h

	r.ctrl = newController(m.ctx, h, m.launcher, sess, launch, m.events, m.quit)
	r.ctrl.group.Store(group)
	r.ctrl.start(&m.workers)

	log.Info().
		Str("handle", h.String()).
		Str("id", slot.ID).
		Str("name", slot.Name).
		Str("prefix", slot.Prefix).
		Bool("group", group).
		Int("running", m.slots.len()).
		Msg("started run")
	return h
}

// Runs returns the live runs in launch order.
func (m *Manager) Runs() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := m.slots.values()
	out := make([]Slot, len(runs))
	for i, r := range runs {
		s := r.slot
		s.State = r.ctrl.State()
		if p := r.ctrl.process(); p != nil {
			s.Pid = p.Pid()
		}
		out[i] = s
	}
	return out
}

// Running returns the live run bound to a shortcut hash.
func (m *Manager) Running(hash string) (Slot, bool) {
	for _, s := range m.Runs() {
		if s.ID == hash {
			return s, true
		}
	}
	return Slot{}, false
}

// Stop ends one run. A run sharing the prefix with others only has its
// own process tree terminated; a lone run takes the whole prefix down.
// It does not wait for the run to exit.
func (m *Manager) Stop(ctx context.Context, h Handle) error {
	m.mu.Lock()
	r, ok := m.slots.get(h)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRun, h)
	}
	scope := ScopeSelf
	if !r.slot.Group {
		if m.killLatched {
			m.mu.Unlock()
			return nil
		}
		scope = ScopePrefix
		m.killLatched = true
	}
	ctrl := r.ctrl
	m.mu.Unlock()

	ctrl.stop(ctx, scope)
	return nil
}

// StopAll ends every run in the current prefix with a single prefix-wide
// kill sent through the most recently started run. Further calls do
// nothing until all runs have exited or a new run is started.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	if m.killLatched || m.slots.len() == 0 {
		m.mu.Unlock()
		return nil
	}
	m.killLatched = true

	var target *controller
	runs := m.slots.values()
	for i := len(runs) - 1; i >= 0; i-- {
		if !runs[i].ctrl.stopped.Load() {
			target = runs[i].ctrl
			break
		}
	}
	sess := m.sessionLocked()
	count := len(runs)
	m.mu.Unlock()

	log.Info().Int("runs", count).Str("prefix", sess.Prefix).Msg("stopping all runs")
	if target != nil && target.stop(ctx, ScopePrefix) {
		return nil
	}
	// every run already had its own stop, kill the prefix directly
	if err := m.launcher.KillPrefix(ctx, sess); err != nil {
		return fmt.Errorf("failed to stop prefix: %w", err)
	}
	return nil
}

// WaitRun blocks until the run's worker has finished. A handle that is
// no longer live returns at once.
func (m *Manager) WaitRun(ctx context.Context, h Handle) error {
	m.mu.Lock()
	r, ok := m.slots.get(h)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-r.ctrl.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for run %s: %w", h, ctx.Err())
	}
}
