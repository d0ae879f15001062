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

package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A full or unbuffered channel must never block the manager.
func TestSend_NonBlocking(t *testing.T) {
	t.Parallel()

	ns := make(chan Notification)

	done := make(chan struct{})
	go func() {
		PrefixCreated(ns, JobResult{Prefix: "Games"})
		StatusChanged(ns, Status{Text: "Nero Manager"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("send blocked on full channel")
	}
}

func TestSend_NilChannel(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		UIHide(nil)
	})
}

func TestSend_Delivers(t *testing.T) {
	t.Parallel()

	ns := make(chan Notification, 4)
	TricksFailed(ns, JobResult{Prefix: "Games", ExitCode: 1})
	UIShow(ns)
	PrefixesChanged(ns)
	PrefixDeleted(ns, "Old")

	n := <-ns
	assert.Equal(t, MethodTricksFailed, n.Method)
	assert.Equal(t, JobResult{Prefix: "Games", ExitCode: 1}, n.Params)

	assert.Equal(t, MethodUIShow, (<-ns).Method)
	assert.Nil(t, (<-ns).Params)
	assert.Equal(t, "Old", (<-ns).Params)
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	ns := make(chan Notification, 2)
	var mu sync.Mutex
	var got []string
	sink := SinkFunc(func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n.Method)
	})

	ns <- Notification{Method: MethodUIHide}
	ns <- Notification{Method: MethodUIShow}
	close(ns)

	Dispatch(context.Background(), ns, sink, sink)
	assert.Equal(t, []string{MethodUIHide, MethodUIHide, MethodUIShow, MethodUIShow}, got)
}

func TestDispatch_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Dispatch(ctx, make(chan Notification))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not stop")
	}
}

func TestDesktopMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n           Notification
		name        string
		wantSummary string
		wantBody    string
		wantOK      bool
	}{
		{
			name:        "created",
			n:           Notification{Method: MethodPrefixCreated, Params: JobResult{Prefix: "Test", Runner: "GE-Proton-9"}},
			wantSummary: "Prefix created",
			wantBody:    "Test is ready with GE-Proton-9.",
			wantOK:      true,
		},
		{
			name: "create_failed",
			n: Notification{Method: MethodPrefixCreateFailed, Params: JobResult{
				Prefix: "Test", ExitCode: 1, Hint: "exited with code 1",
			}},
			wantSummary: "Prefix creation failed",
			wantBody:    "Test: exited with code 1",
			wantOK:      true,
		},
		{
			name: "tricks_installed",
			n: Notification{Method: MethodTricksInstalled, Params: JobResult{
				Prefix: "Test", Verbs: []string{"vcrun2019", "d3dx9"},
			}},
			wantSummary: "Components installed",
			wantBody:    "vcrun2019, d3dx9 installed in Test.",
			wantOK:      true,
		},
		{
			name:        "tricks_failed_without_hint",
			n:           Notification{Method: MethodTricksFailed, Params: JobResult{Prefix: "Test", ExitCode: 2}},
			wantSummary: "Component installation failed",
			wantBody:    "Test: exited with code 2",
			wantOK:      true,
		},
		{name: "status_not_shown", n: Notification{Method: MethodStatusChanged, Params: Status{}}},
		{name: "wrong_payload", n: Notification{Method: MethodPrefixCreated, Params: "Test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			summary, body, ok := DesktopMessage(tt.n)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSummary, summary)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

type fakeCaller struct {
	err    error
	method string
	args   []any
	mu     sync.Mutex
}

func (f *fakeCaller) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...any) *dbus.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.method = method
	f.args = args
	return &dbus.Call{Err: f.err}
}

func TestDesktop_Notify(t *testing.T) {
	t.Parallel()

	fc := &fakeCaller{}
	d := &Desktop{obj: fc}

	d.Notify(Notification{Method: MethodPrefixCreated, Params: JobResult{Prefix: "Test", Runner: "GE"}})

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.Equal(t, notifyMethod, fc.method)
	require.Len(t, fc.args, 8)
	assert.Equal(t, notifyAppName, fc.args[0])
	assert.Equal(t, "Prefix created", fc.args[3])
	assert.Equal(t, "Test is ready with GE.", fc.args[4])
	assert.NoError(t, d.Close())
}

func TestDesktop_ShowError(t *testing.T) {
	t.Parallel()

	d := &Desktop{obj: &fakeCaller{err: dbus.ErrClosed}}
	require.Error(t, d.Show("a", "b"))
	// Notify only logs
	d.Notify(Notification{Method: MethodTricksFailed, Params: JobResult{Prefix: "X"}})
}
