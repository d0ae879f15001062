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

package helpers

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// FakeProcess is a command.Process driven by the test: Emit writes output
// lines and Exit ends the process.
type FakeProcess struct {
	r          *io.PipeReader
	w          *io.PipeWriter
	done       chan struct{}
	terminated atomic.Int32
	pid        int
	code       int
	exitOnce   sync.Once
	// IgnoreTerminate keeps the process alive after Terminate, like a
	// child that traps SIGTERM.
	IgnoreTerminate bool
}

func NewFakeProcess(pid int) *FakeProcess {
	r, w := io.Pipe()
	return &FakeProcess{
		r:    r,
		w:    w,
		done: make(chan struct{}),
		pid:  pid,
	}
}

func (p *FakeProcess) Pid() int {
	return p.pid
}

func (p *FakeProcess) Output() io.Reader {
	return p.r
}

// Emit writes one line of output. It blocks until the line is read and
// is a no-op once the process has exited.
func (p *FakeProcess) Emit(line string) {
	select {
	case <-p.done:
		return
	default:
	}
	_, _ = p.w.Write([]byte(line + "\n"))
}

// Exit ends the process with code. Later calls are ignored.
func (p *FakeProcess) Exit(code int) {
	p.exitOnce.Do(func() {
		p.code = code
		_ = p.w.Close()
		close(p.done)
	})
}

// Done is closed after Exit.
func (p *FakeProcess) Done() <-chan struct{} {
	return p.done
}

func (p *FakeProcess) Wait() (int, error) {
	<-p.done
	return p.code, nil
}

// Terminate records the call and exits with -1 unless IgnoreTerminate is
// set.
func (p *FakeProcess) Terminate(_ context.Context) error {
	p.terminated.Add(1)
	if !p.IgnoreTerminate {
		p.Exit(-1)
	}
	return nil
}

// Terminated returns how many times Terminate was called.
func (p *FakeProcess) Terminated() int {
	return int(p.terminated.Load())
}
