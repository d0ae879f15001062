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
	"sync"
	"sync/atomic"

	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-nero/pkg/umu"
	"github.com/rs/zerolog/log"
)

// RunState is the lifecycle of one run slot.
type RunState int32

const (
	RunCreated RunState = iota
	RunStarting
	RunRunning
	RunStopping
	RunExited
)

func (s RunState) String() string {
	switch s {
	case RunCreated:
		return "created"
	case RunStarting:
		return "starting"
	case RunRunning:
		return "running"
	case RunStopping:
		return "stopping"
	case RunExited:
		return "exited"
	default:
		return "unknown"
	}
}

// StopScope says how far a stop reaches.
type StopScope int

const (
	// ScopeSelf terminates only the run's own process tree.
	ScopeSelf StopScope = iota
	// ScopePrefix stops every process in the prefix with one wineserver
	// kill.
	ScopePrefix
)

// EventKind tells the manager loop what a controller reported.
type EventKind int

const (
	EventPhase EventKind = iota
	EventExited
)

// Event is sent by controllers to the manager loop.
type Event struct {
	Err      error
	Handle   Handle
	Kind     EventKind
	Phase    umu.Phase
	ExitCode int
}

// launchFunc performs the blocking launch of one run.
type launchFunc func(ctx context.Context, opts umu.LaunchOptions) (umu.Result, error)

// controller owns the worker goroutine of one run slot.
type controller struct {
	launcher Launcher
	ctx      context.Context
	events   chan<- Event
	quit     <-chan struct{}
	launch   launchFunc
	cancel   context.CancelFunc
	done     chan struct{}
	sess     umu.Session
	proc     atomic.Pointer[command.Process]
	handle   Handle
	state    atomic.Int32
	group    atomic.Bool
	stopped  atomic.Bool
}

func newController(
	parent context.Context,
	handle Handle,
	launcher Launcher,
	sess umu.Session,
	launch launchFunc,
	events chan<- Event,
	quit <-chan struct{},
) *controller {
	ctx, cancel := context.WithCancel(parent)
	return &controller{
		ctx:      ctx,
		cancel:   cancel,
		handle:   handle,
		launcher: launcher,
		sess:     sess,
		launch:   launch,
		events:   events,
		quit:     quit,
		done:     make(chan struct{}),
	}
}

func (c *controller) State() RunState {
	return RunState(c.state.Load())
}

func (c *controller) setState(s RunState) {
	c.state.Store(int32(s))
}

// start runs the worker on its own goroutine, tracked by wg.
func (c *controller) start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.work()
	}()
}

func (c *controller) work() {
	defer close(c.done)
	defer c.cancel()

	// a stop may already have landed
	c.state.CompareAndSwap(int32(RunCreated), int32(RunStarting))
	res, err := c.launch(c.ctx, umu.LaunchOptions{
		OnPhase: c.onPhase,
		OnSpawn: func(p command.Process) { c.proc.Store(&p) },
		Group:   c.group.Load,
	})
	c.setState(RunExited)

	if err != nil {
		log.Error().Err(err).Str("handle", c.handle.String()).Msg("run failed")
	}
	c.send(Event{Kind: EventExited, Handle: c.handle, ExitCode: res.ExitCode, Err: err})
}

func (c *controller) onPhase(p umu.Phase) {
	if p == umu.PhaseProtonStarted {
		c.state.CompareAndSwap(int32(RunStarting), int32(RunRunning))
	}
	c.send(Event{Kind: EventPhase, Handle: c.handle, Phase: p})
}

// send delivers an event unless the manager has shut down.
func (c *controller) send(ev Event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

// stop signals the run to end. Only the first call on a controller does
// anything; it returns whether this call sent the stop. It does not wait
// for the worker.
func (c *controller) stop(ctx context.Context, scope StopScope) bool {
	if !c.stopped.CompareAndSwap(false, true) {
		return false
	}
	c.setState(RunStopping)
	c.onPhase(umu.PhaseProtonStopping)

	switch scope {
	case ScopeSelf:
		log.Info().Str("handle", c.handle.String()).Msg("stopping run process tree")
		c.cancel()
	case ScopePrefix:
		log.Info().Str("handle", c.handle.String()).Str("prefix", c.sess.Prefix).Msg("stopping prefix")
		if err := c.launcher.KillPrefix(ctx, c.sess); err != nil {
			log.Warn().Err(err).Msg("prefix kill failed, terminating run instead")
			c.cancel()
		}
	}
	return true
}

// process is the spawned launcher, or nil before spawn.
func (c *controller) process() command.Process {
	if p := c.proc.Load(); p != nil {
		return *p
	}
	return nil
}
