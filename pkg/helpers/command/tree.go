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
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

const (
	// SIGTERMTimeout is how long a tree gets to exit after SIGTERM.
	SIGTERMTimeout = 3 * time.Second
	// SIGKILLTimeout bounds the wait after SIGKILL.
	SIGKILLTimeout = 2 * time.Second

	alivePollInterval = 100 * time.Millisecond
)

// ErrStillRunning is returned when a process survives SIGKILL.
var ErrStillRunning = errors.New("process still running after SIGKILL")

// TerminateTree sends SIGTERM to pid and all of its descendants, children
// first, then SIGKILL to whatever is left after SIGTERMTimeout. It returns
// once every process of the tree is gone. If done is not nil it reports
// the exit of pid itself.
func TerminateTree(ctx context.Context, clock clockwork.Clock, pid int, done <-chan struct{}) error {
	procs := processTree(ctx, int32(pid)) //nolint:gosec // pids fit in int32
	return terminate(ctx, clock, pid, done, procs)
}

// TerminateGroup is TerminateTree for a process started as the leader of
// its own process group. Every member of the group is included, so
// children that lost their parent to an early exit of the leader are
// still reached.
func TerminateGroup(ctx context.Context, clock clockwork.Clock, pgid int, done <-chan struct{}) error {
	procs := processTree(ctx, int32(pgid)) //nolint:gosec // pids fit in int32
	seen := make(map[int32]struct{}, len(procs))
	for _, p := range procs {
		seen[p.Pid] = struct{}{}
	}
	orphans := groupMembers(ctx, pgid, seen)
	return terminate(ctx, clock, pgid, done, append(orphans, procs...))
}

func terminate(
	ctx context.Context,
	clock clockwork.Clock,
	pid int,
	done <-chan struct{},
	procs []*process.Process,
) error {
	if len(procs) == 0 {
		log.Debug().Int("pid", pid).Msg("process not found, may have already exited")
		return nil
	}

	log.Debug().Int("count", len(procs)).Int("rootPid", pid).Msg("terminating process tree")
	signalTree(procs, "SIGTERM", func(p *process.Process) error {
		return p.TerminateWithContext(ctx)
	})
	if waitForExit(ctx, clock, pid, done, procs, SIGTERMTimeout) {
		return nil
	}

	log.Debug().Int("pid", pid).Msg("SIGTERM timeout, sending SIGKILL")
	signalTree(survivors(ctx, pid, done, procs), "SIGKILL", func(p *process.Process) error {
		return p.KillWithContext(ctx)
	})
	if waitForExit(ctx, clock, pid, done, procs, SIGKILLTimeout) {
		return nil
	}
	return ErrStillRunning
}

// Alive reports whether a process with this pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// running reports whether proc still exists and is not a zombie waiting
// to be reaped.
func running(ctx context.Context, proc *process.Process) bool {
	if !Alive(int(proc.Pid)) {
		return false
	}
	status, err := proc.StatusWithContext(ctx)
	if err != nil {
		return false
	}
	return !slices.Contains(status, process.Zombie)
}

// survivors filters procs down to the ones still running. The root is
// judged by done when given, since only its parent can reap it.
func survivors(ctx context.Context, pid int, done <-chan struct{}, procs []*process.Process) []*process.Process {
	out := make([]*process.Process, 0, len(procs))
	for _, p := range procs {
		if int(p.Pid) == pid && done != nil {
			if !closed(done) {
				out = append(out, p)
			}
			continue
		}
		if running(ctx, p) {
			out = append(out, p)
		}
	}
	return out
}

func closed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func waitForExit(
	ctx context.Context,
	clock clockwork.Clock,
	pid int,
	done <-chan struct{},
	procs []*process.Process,
	timeout time.Duration,
) bool {
	deadline := clock.After(timeout)
	ticker := clock.NewTicker(alivePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if len(survivors(ctx, pid, done, procs)) == 0 {
				return true
			}
		case <-deadline:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// processTree returns the process and all its descendants, descendants
// ordered before their parents.
func processTree(ctx context.Context, pid int32) []*process.Process {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil
	}
	descendants := descendantsOf(ctx, proc)
	tree := make([]*process.Process, 0, len(descendants)+1)
	tree = append(tree, descendants...)
	return append(tree, proc)
}

func descendantsOf(ctx context.Context, proc *process.Process) []*process.Process {
	children, err := proc.ChildrenWithContext(ctx)
	if err != nil || len(children) == 0 {
		return nil
	}
	out := make([]*process.Process, 0, len(children))
	for _, child := range children {
		out = append(out, descendantsOf(ctx, child)...)
		out = append(out, child)
	}
	return out
}

// groupMembers returns the running processes in group pgid that are not
// in skip.
func groupMembers(ctx context.Context, pgid int, skip map[int32]struct{}) []*process.Process {
	all, err := process.ProcessesWithContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("failed to list processes")
		return nil
	}
	var out []*process.Process
	for _, p := range all {
		if _, ok := skip[p.Pid]; ok {
			continue
		}
		if id, err := unix.Getpgid(int(p.Pid)); err != nil || id != pgid {
			continue
		}
		if running(ctx, p) {
			out = append(out, p)
		}
	}
	return out
}

func signalTree(procs []*process.Process, sig string, send func(*process.Process) error) {
	for _, proc := range procs {
		if err := send(proc); err != nil {
			log.Debug().Err(err).Int32("pid", proc.Pid).Str("signal", sig).Msg("failed to signal process")
			continue
		}
		log.Debug().Int32("pid", proc.Pid).Str("signal", sig).Msg("signalled process")
	}
}
