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

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// OutputDrainDelay is how long the output reader stays open after the child
// exits. wineserver and other daemons inherit the pipe and never close it,
// so the read end is closed once this delay has passed.
const OutputDrainDelay = 250 * time.Millisecond

type realProcess struct {
	err  error
	cmd  *exec.Cmd
	out  *os.File
	done chan struct{}
	code int
}

// Spawn starts name as the leader of a new process group with stdout and
// stderr merged into a single pipe. ctx only guards the start; the process
// is stopped with Terminate, never by cancellation, so its tree is still
// intact when the termination walks it.
func (*RealExecutor) Spawn(
	ctx context.Context,
	opts StartOptions,
	name string,
	args ...string,
) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("not starting %s: %w", name, err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	cmd := exec.Command(name, args...) //nolint:noctx // stopped by Terminate
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = opts.Env
	cmd.Dir = opts.Dir
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	// the child holds its own copy
	_ = w.Close()

	p := &realProcess{
		cmd:  cmd,
		out:  r,
		done: make(chan struct{}),
	}
	go p.reap()

	log.Debug().Int("pid", cmd.Process.Pid).Str("name", name).Strs("args", args).Msg("spawned process")
	return p, nil
}

func (p *realProcess) reap() {
	p.code, p.err = exitCode(p.cmd.Wait())
	close(p.done)
	time.AfterFunc(OutputDrainDelay, func() {
		_ = p.out.Close()
	})
}

func (p *realProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *realProcess) Output() io.Reader {
	return p.out
}

func (p *realProcess) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

// Terminate stops the process and everything left in its group, even
// after the process itself has exited.
func (p *realProcess) Terminate(ctx context.Context) error {
	return TerminateGroup(ctx, clockwork.NewRealClock(), p.Pid(), p.done)
}

// exitCode turns the error from exec.Cmd.Wait into an exit code. Only
// failures that are not plain exit statuses are returned as errors.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
