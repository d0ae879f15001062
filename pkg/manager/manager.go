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

// Package manager is the orchestration core: it owns the current prefix,
// the live run slots and their controllers, prefix creation and tricks
// jobs, and every mutation of the prefix store. All controller results
// come back as events on one channel consumed by Run.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/zaparoo-nero/pkg/config"
	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
	"github.com/ZaparooProject/zaparoo-nero/pkg/prefixes"
	"github.com/ZaparooProject/zaparoo-nero/pkg/runners"
	"github.com/ZaparooProject/zaparoo-nero/pkg/umu"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// OnetimeID is the slot ID of runs that are not bound to a shortcut.
	OnetimeID = "-1"

	eventBuffer = 64
)

var (
	ErrNoPrefix          = errors.New("no prefix selected")
	ErrRunsActive        = errors.New("apps are running in the current prefix")
	ErrPrefixBusy        = errors.New("prefix is in use")
	ErrTargetNotFound    = errors.New("launch target not found")
	ErrUnknownRun        = errors.New("unknown run")
	ErrJobActive         = errors.New("a job is already running for this prefix")
	ErrTricksUnavailable = errors.New("winetricks is not installed")
	ErrNoVerbs           = errors.New("no verbs requested")
	ErrUnknownRunner     = errors.New("runner not installed")
	ErrClosed            = errors.New("manager is closed")
)

// Launcher is what the manager needs from umu.Runner.
type Launcher interface {
	Launcher() string
	Run(ctx context.Context, cmd umu.Command, opts umu.RunOptions) (umu.Result, error)
	StartShortcut(ctx context.Context, sess umu.Session, hash string, opts umu.LaunchOptions) (umu.Result, error)
	StartOnetime(
		ctx context.Context,
		sess umu.Session,
		path string,
		args []string,
		opts umu.LaunchOptions,
	) (umu.Result, error)
	KillPrefix(ctx context.Context, sess umu.Session) error
	WaitPrefix(ctx context.Context, sess umu.Session) error
}

// Options are the collaborators of a Manager.
type Options struct {
	Config        *config.Instance
	Store         *prefixes.Store
	Launcher      Launcher
	Clock         clockwork.Clock
	Notifications chan<- notifications.Notification
	// UserDirs are linked into new prefixes that ask for it.
	UserDirs        prefixes.UserDirs
	Runners         runners.Set
	TricksAvailable bool
}

// Slot is a snapshot of one live run.
type Slot struct {
	Started time.Time
	// ID is the shortcut hash, or OnetimeID.
	ID     string
	Name   string
	Prefix string
	// Path is the launch target of a one-time run.
	Path   string
	Handle Handle
	State  RunState
	Pid    int
	// Group is set while other runs share the prefix.
	Group bool
}

type run struct {
	ctrl *controller
	slot Slot
}

// Manager coordinates prefixes, runs and jobs. Methods are safe for
// concurrent use.
type Manager struct {
	ctx             context.Context
	launcher        Launcher
	clock           clockwork.Clock
	cfg             *config.Instance
	store           *prefixes.Store
	ns              chan<- notifications.Notification
	cancel          context.CancelFunc
	events          chan Event
	quit            chan struct{}
	userDirs        prefixes.UserDirs
	jobs            map[string]*Job
	current         string
	runnerName      string
	runners         runners.Set
	slots           arena[*run]
	workers         sync.WaitGroup
	mu              syncutil.Mutex
	closeOnce       sync.Once
	tricksAvailable bool
	// killLatched is set once a prefix-wide stop has been sent. It is
	// cleared when the last run exits or another run starts.
	killLatched bool
	closed      bool
}

func New(opts Options) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:             ctx,
		cancel:          cancel,
		cfg:             opts.Config,
		store:           opts.Store,
		launcher:        opts.Launcher,
		clock:           clock,
		ns:              opts.Notifications,
		runners:         opts.Runners,
		userDirs:        opts.UserDirs,
		tricksAvailable: opts.TricksAvailable,
		events:          make(chan Event, eventBuffer),
		quit:            make(chan struct{}),
		jobs:            make(map[string]*Job),
	}
}

// Run consumes controller events until ctx is done or the manager is
// closed.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.quit:
			return nil
		case ev := <-m.events:
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(ev Event) {
	switch ev.Kind {
	case EventPhase:
		m.handlePhase(ev)
	case EventExited:
		m.handleExited(ev)
	}
}

func (m *Manager) handlePhase(ev Event) {
	m.mu.Lock()
	r, ok := m.slots.get(ev.Handle)
	if !ok {
		m.mu.Unlock()
		return
	}
	payload := notifications.RunPhase{
		Prefix:        r.slot.Prefix,
		Name:          r.slot.Name,
		Handle:        ev.Handle.ID(),
		Phase:         ev.Phase.String(),
		Text:          ev.Phase.Text(),
		HideIndicator: ev.Phase.HideIndicator(),
	}
	m.mu.Unlock()

	log.Debug().Str("run", payload.Name).Str("phase", payload.Phase).Msg("run phase")
	notifications.RunPhaseChanged(m.ns, payload)
}

func (m *Manager) handleExited(ev Event) {
	m.mu.Lock()
	r, ok := m.slots.remove(ev.Handle)
	if !ok {
		m.mu.Unlock()
		return
	}
	if m.slots.len() == 0 {
		m.killLatched = false
	} else if m.slots.len() == 1 {
		if last, ok := m.slots.last(); ok {
			last.slot.Group = false
			last.ctrl.group.Store(false)
		}
	}
	status := m.statusLocked()
	showUI := r.slot.ID != OnetimeID && m.cfg.ShortcutHidesManager()
	m.mu.Unlock()

	log.Info().
		Str("run", r.slot.Name).
		Str("prefix", r.slot.Prefix).
		Int("code", ev.ExitCode).
		Dur("duration", m.clock.Since(r.slot.Started)).
		Msg("run exited")

	notifications.StatusChanged(m.ns, status)
	if showUI {
		notifications.UIShow(m.ns)
	}
}

// Close stops every run with one prefix kill, waits for workers and jobs
// and shuts down the event loop. Runs still alive when ctx ends are
// terminated directly.
func (m *Manager) Close(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		if stopErr := m.StopAll(ctx); stopErr != nil {
			log.Warn().Err(stopErr).Msg("failed to stop runs on close")
		}

		done := make(chan struct{})
		go func() {
			m.workers.Wait()
			close(done)
		}()

		err = m.drainUntil(ctx, done)
		if err != nil {
			log.Warn().Err(err).Msg("runs did not exit in time, terminating")
			m.cancel()
			err = m.drainUntil(context.Background(), done)
		}
		m.cancel()
		close(m.quit)
	})
	return err
}

// drainUntil handles events while waiting for done, so workers are never
// stuck on a full event channel during shutdown.
func (m *Manager) drainUntil(ctx context.Context, done <-chan struct{}) error {
	for {
		select {
		case <-done:
			return nil
		case ev := <-m.events:
			m.handleEvent(ev)
		case <-ctx.Done():
			return fmt.Errorf("waiting for runs: %w", ctx.Err())
		}
	}
}

func (m *Manager) notifyStatus() {
	m.mu.Lock()
	status := m.statusLocked()
	m.mu.Unlock()
	notifications.StatusChanged(m.ns, status)
}

// Status returns the aggregate run state.
func (m *Manager) Status() notifications.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// CurrentPrefix returns the selected prefix, or "".
func (m *Manager) CurrentPrefix() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentRunner returns the runner of the selected prefix.
func (m *Manager) CurrentRunner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runnerName
}

func (m *Manager) Runners() runners.Set {
	return m.runners
}

// TricksAvailable reports whether winetricks verbs can be installed.
func (m *Manager) TricksAvailable() bool {
	return m.tricksAvailable
}

// Prefixes lists committed prefixes.
func (m *Manager) Prefixes() ([]string, error) {
	names, err := m.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list prefixes: %w", err)
	}
	return names, nil
}

// WatchPrefixes publishes PrefixesChanged when prefixes change on disk. It
// blocks until ctx is done.
func (m *Manager) WatchPrefixes(ctx context.Context) error {
	err := m.store.Watch(ctx, prefixes.DefaultWatchDebounce, func() {
		notifications.PrefixesChanged(m.ns)
	})
	if err != nil {
		return fmt.Errorf("failed to watch prefixes: %w", err)
	}
	return nil
}

// Selection describes the prefix that was made current.
type Selection struct {
	Prefix string
	Runner string
	// RunnerReset is set when the saved runner was missing and the first
	// available one was saved instead.
	RunnerReset bool
	// RunnerMissing is set when no runner is installed at all; umu then
	// picks its default Proton.
	RunnerMissing bool
}

// SelectPrefix makes name the current prefix. Switching is refused while
// runs are live.
func (m *Manager) SelectPrefix(name string) (Selection, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Selection{}, ErrClosed
	}
	if name != m.current && m.slots.len() > 0 {
		m.mu.Unlock()
		return Selection{}, ErrRunsActive
	}
	if !m.store.Exists(name) {
		m.mu.Unlock()
		return Selection{}, fmt.Errorf("%w: %s", prefixes.ErrPrefixNotFound, name)
	}

	saved, err := m.store.Runner(name)
	if err != nil {
		m.mu.Unlock()
		return Selection{}, fmt.Errorf("failed to read prefix runner: %w", err)
	}
	sel := Selection{Prefix: name, Runner: saved}
	if _, ok := m.runners.Find(saved); !ok {
		first, firstErr := m.runners.First()
		if firstErr != nil {
			log.Warn().Str("prefix", name).Str("runner", saved).Msg("no runners installed, umu will use its default")
			sel.RunnerMissing = true
		} else {
			log.Warn().
				Str("prefix", name).
				Str("saved", saved).
				Str("runner", first.Name).
				Msg("prefix runner is not installed, using first available")
			if setErr := m.store.SetRunner(name, first.Name); setErr != nil {
				log.Error().Err(setErr).Msg("failed to save fallback runner")
			}
			sel.Runner = first.Name
			sel.RunnerReset = true
		}
	}

	m.current = name
	m.runnerName = sel.Runner
	status := m.statusLocked()
	m.mu.Unlock()

	log.Info().Str("prefix", name).Str("runner", sel.Runner).Msg("selected prefix")
	notifications.StatusChanged(m.ns, status)
	return sel, nil
}

// AutoSelect selects the default prefix when the config asks for it. It
// reports whether a prefix was selected.
func (m *Manager) AutoSelect() (bool, error) {
	if !m.cfg.RunWithDefaultPrefix() {
		return false, nil
	}
	name := m.cfg.DefaultPrefix()
	if name == "" || !m.store.Exists(name) {
		log.Debug().Str("prefix", name).Msg("default prefix not available")
		return false, nil
	}
	if _, err := m.SelectPrefix(name); err != nil {
		return false, err
	}
	return true, nil
}

// sessionLocked builds the launch session of the current prefix. Must be
// called with m.mu held.
func (m *Manager) sessionLocked() umu.Session {
	return m.sessionFor(m.current, m.runnerName)
}

func (m *Manager) sessionFor(prefix, runner string) umu.Session {
	sess := umu.Session{Store: m.store, Prefix: prefix}
	if r, ok := m.runners.Find(runner); ok {
		sess.RunnerPath = r.Path
	}
	return sess
}
