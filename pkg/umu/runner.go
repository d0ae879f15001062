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

package umu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/command"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	// PollInterval bounds how long the output loop waits before checking
	// on the process again.
	PollInterval = 100 * time.Millisecond
	// StartedGrace is how long an app launch waits for an esync or fsync
	// line before assuming Proton is up anyway.
	StartedGrace = 5 * time.Second
	// DrainTimeout bounds how long output is read after the process exits.
	DrainTimeout = 2 * time.Second
	// MaxOutputLines is how much output a Result keeps.
	MaxOutputLines = 200

	maxLineSize = 1024 * 1024
)

const failureHint = "at least one requested operation did not complete, " +
	"check which components were installed"

// Result is the outcome of a finished launcher run.
type Result struct {
	// Output is the tail of the merged stdout and stderr.
	Output   string
	ExitCode int
}

// Failed reports a non-zero exit.
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// Hint is the user facing explanation of a failed run.
func (r Result) Hint() string {
	if !r.Failed() {
		return ""
	}
	return fmt.Sprintf("exited with code %d: %s", r.ExitCode, failureHint)
}

// RunOptions configures a single Run.
type RunOptions struct {
	Env Env
	// OnPhase receives phases in output order. It is called from the Run
	// goroutine and must not block for long.
	OnPhase func(Phase)
	// OnSpawn receives the process as soon as it has started.
	OnSpawn func(command.Process)
	// StartedGrace, when set, emits PhaseProtonStarted if no marker has
	// been seen by then.
	StartedGrace time.Duration
}

func (o RunOptions) emit(p Phase) {
	if o.OnPhase != nil && p != PhaseNone {
		o.OnPhase(p)
	}
}

// Runner spawns launcher processes and follows their output.
type Runner struct {
	exec     command.Executor
	clock    clockwork.Clock
	fs       afero.Fs
	environ  func() []string
	launcher string
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used for poll ticks and the started grace.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithFs sets the filesystem runner binaries are looked up on.
func WithFs(fs afero.Fs) Option {
	return func(r *Runner) {
		r.fs = fs
	}
}

// WithEnviron sets the base environment children inherit.
func WithEnviron(fn func() []string) Option {
	return func(r *Runner) {
		r.environ = fn
	}
}

// NewRunner returns a Runner that launches through launcher, normally the
// absolute path of umu-run.
func NewRunner(exec command.Executor, launcher string, opts ...Option) *Runner {
	r := &Runner{
		exec:     exec,
		launcher: launcher,
		clock:    clockwork.NewRealClock(),
		fs:       afero.NewOsFs(),
		environ:  os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Launcher() string {
	return r.launcher
}

type exitStatus struct {
	err  error
	code int
}

// Run spawns cmd and blocks until it exits, scanning each output line for
// phase markers. A cancelled ctx terminates the process tree and Run
// returns once it is gone. Only a failure to start or wait on the process
// is an error; a non-zero exit is reported in the Result.
func (r *Runner) Run(ctx context.Context, cmd Command, opts RunOptions) (Result, error) {
	proc, err := r.exec.Spawn(ctx, command.StartOptions{Env: opts.Env.Environ(r.environ())}, cmd.Name, cmd.Args...)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to spawn %s: %w", cmd.Name, err)
	}
	log.Info().Int("pid", proc.Pid()).Str("cmd", cmd.String()).Msg("launcher started")
	if opts.OnSpawn != nil {
		opts.OnSpawn(proc)
	}

	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan string)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		scanner := bufio.NewScanner(proc.Output())
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		if err := scanner.Err(); err != nil && !isClosedPipe(err) {
			log.Debug().Err(err).Msg("launcher output read ended")
		}
	}()

	exited := make(chan exitStatus, 1)
	go func() {
		code, err := proc.Wait()
		exited <- exitStatus{code: code, err: err}
	}()

	ticker := r.clock.NewTicker(PollInterval)
	defer ticker.Stop()

	var grace <-chan time.Time
	if opts.StartedGrace > 0 {
		timer := r.clock.NewTimer(opts.StartedGrace)
		defer timer.Stop()
		grace = timer.Chan()
	}

	tail := newTailBuffer(MaxOutputLines)
	started := false
	markStarted := func() {
		if !started {
			started = true
			grace = nil
			opts.emit(PhaseProtonStarted)
		}
	}

	done := ctx.Done()
	var status *exitStatus
	var drained time.Duration
	for {
		select {
		case line := <-lines:
			log.Debug().Str("output", line).Msg("launcher")
			tail.add(line)
			switch p := ScanLine(line); p {
			case PhaseNone:
			case PhaseProtonStarted:
				markStarted()
			default:
				opts.emit(p)
			}
			continue
		case <-readDone:
			readDone = nil
		case s := <-exited:
			status = &s
			exited = nil
		case <-grace:
			log.Debug().Msg("no sync marker seen, assuming Proton started")
			markStarted()
		case <-done:
			done = nil
			log.Info().Int("pid", proc.Pid()).Msg("run cancelled, terminating launcher")
			go func() {
				if err := proc.Terminate(context.WithoutCancel(ctx)); err != nil {
					log.Warn().Err(err).Int("pid", proc.Pid()).Msg("failed to terminate launcher")
				}
			}()
		case <-ticker.Chan():
			if status != nil {
				drained += PollInterval
			}
		}

		if status == nil {
			continue
		}
		if readDone == nil || drained >= DrainTimeout {
			break
		}
	}

	res := Result{ExitCode: status.code, Output: tail.String()}
	if status.err != nil {
		return res, fmt.Errorf("failed to wait for %s: %w", cmd.Name, status.err)
	}
	log.Info().Int("pid", proc.Pid()).Int("code", res.ExitCode).Msg("launcher exited")
	return res, nil
}

// isClosedPipe matches the read end being closed after the drain delay.
func isClosedPipe(err error) bool {
	return errors.Is(err, os.ErrClosed)
}

// tailBuffer keeps the last n lines.
type tailBuffer struct {
	lines []string
	next  int
	full  bool
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{lines: make([]string, n)}
}

func (t *tailBuffer) add(line string) {
	t.lines[t.next] = line
	t.next++
	if t.next == len(t.lines) {
		t.next = 0
		t.full = true
	}
}

func (t *tailBuffer) String() string {
	if !t.full {
		return strings.Join(t.lines[:t.next], "\n")
	}
	ordered := make([]string, 0, len(t.lines))
	ordered = append(ordered, t.lines[t.next:]...)
	ordered = append(ordered, t.lines[:t.next]...)
	return strings.Join(ordered, "\n")
}
