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

// Package command wraps os/exec behind an interface so the umu runner and
// the manager can be tested without launching real processes.
package command

import (
	"context"
	"io"
	"os/exec"
)

// StartOptions configures how a command is started.
type StartOptions struct {
	// Env is the full environment of the child. Nil inherits the current
	// process environment.
	Env []string
	// Dir is the working directory. Empty uses the current directory.
	Dir string
}

// Process is a spawned child whose combined stdout and stderr can be read
// while it runs.
type Process interface {
	// Pid returns the operating system process ID.
	Pid() int

	// Output returns a reader over the merged stdout and stderr. The reader
	// reaches EOF shortly after the process exits, even when grandchildren
	// still hold the write end open.
	Output() io.Reader

	// Wait blocks until the process exits and returns its exit code. A
	// non-zero exit is not an error. It is safe to call more than once.
	Wait() (int, error)

	// Terminate stops the process and all of its descendants, escalating
	// from SIGTERM to SIGKILL.
	Terminate(ctx context.Context) error
}

// Executor provides an abstraction over exec.Command for testability.
type Executor interface {
	// Run executes a command and waits for it to complete.
	// Returns an error if the command fails to start or exits with non-zero status.
	Run(ctx context.Context, name string, args ...string) error

	// RunWithOptions is Run with an explicit environment and working directory.
	RunWithOptions(ctx context.Context, opts StartOptions, name string, args ...string) error

	// Output runs a command and returns its standard output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Start starts a command without waiting for it to complete (fire-and-forget).
	Start(ctx context.Context, name string, args ...string) error

	// Spawn starts a command and hands back a Process for streaming its
	// output and waiting on it.
	Spawn(ctx context.Context, opts StartOptions, name string, args ...string) (Process, error)
}

// RealExecutor uses actual exec.Command to execute system commands.
type RealExecutor struct{}

//nolint:wrapcheck // exec errors already name the command
func (*RealExecutor) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

//nolint:wrapcheck // exec errors already name the command
func (*RealExecutor) RunWithOptions(
	ctx context.Context,
	opts StartOptions,
	name string,
	args ...string,
) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = opts.Env
	cmd.Dir = opts.Dir
	return cmd.Run()
}

//nolint:wrapcheck // exec errors already name the command
func (*RealExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Start launches a detached command and reaps it in the background.
func (*RealExecutor) Start(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...) //nolint:noctx // outlives the caller
	if err := cmd.Start(); err != nil {
		return err //nolint:wrapcheck // exec errors already name the command
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
