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
	"path/filepath"
	"sync"
	"testing"

	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
	"github.com/ZaparooProject/zaparoo-nero/pkg/prefixes"
	"github.com/ZaparooProject/zaparoo-nero/pkg/testing/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestManager_StatusBoundaries(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	hashes := f.addPrefix(t, testPrefix, testRunner, "Alpha", "Beta")
	_, err := f.mgr.SelectPrefix(testPrefix)
	require.NoError(t, err)

	st := f.mgr.Status()
	assert.Equal(t, AppTitle, st.Text)
	assert.Equal(t, notifications.IconIdle, st.Icon)
	assert.True(t, st.SettingsEnabled)

	first := f.expectSpawn(101)
	second := f.expectSpawn(102)

	_, err = f.mgr.StartShortcut(context.Background(), hashes[0])
	require.NoError(t, err)
	st = f.mgr.Status()
	assert.Equal(t, "Nero Manager (Games is running Alpha)", st.Text)
	assert.Equal(t, notifications.IconPlaying, st.Icon)
	assert.False(t, st.SettingsEnabled)
	assert.False(t, f.mgr.Runs()[0].Group)

	_, err = f.mgr.StartShortcut(context.Background(), hashes[1])
	require.NoError(t, err)
	st = f.mgr.Status()
	assert.Equal(t, "Nero Manager (Games is running 2 apps)", st.Text)
	assert.Equal(t, 2, st.Running)
	for _, s := range f.mgr.Runs() {
		assert.True(t, s.Group, s.Name)
	}

	first.Exit(0)
	f.waitRuns(t, 1)
	runs := f.mgr.Runs()
	assert.Equal(t, "Beta", runs[0].Name)
	assert.False(t, runs[0].Group)
	assert.Equal(t, "Nero Manager (Games is running Beta)", f.mgr.Status().Text)

	second.Exit(0)
	f.waitRuns(t, 0)
	st = f.mgr.Status()
	assert.Equal(t, AppTitle, st.Text)
	assert.Equal(t, notifications.IconIdle, st.Icon)
	assert.True(t, st.SettingsEnabled)
	f.cmd.AssertNotCalled(t, "RunWithOptions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_StartShortcut_PhasesAndState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	hashes := f.addPrefix(t, testPrefix, testRunner, "Gun")
	_, err := f.mgr.SelectPrefix(testPrefix)
	require.NoError(t, err)

	proc := f.expectSpawn(103)
	h, err := f.mgr.StartShortcut(context.Background(), hashes[0])
	require.NoError(t, err)

	proc.Emit("fsync: up and running.")
	require.Eventually(t, func() bool {
		runs := f.mgr.Runs()
		return len(runs) == 1 && runs[0].State == RunRunning
	}, waitTimeout, waitTick)

	runs := f.mgr.Runs()
	assert.Equal(t, h, runs[0].Handle)
	assert.Equal(t, hashes[0], runs[0].ID)
	assert.Equal(t, 103, runs[0].Pid)
	assert.Equal(t, testPrefix, runs[0].Prefix)

	slot, ok := f.mgr.Running(hashes[0])
	assert.True(t, ok)
	assert.Equal(t, h, slot.Handle)

	for {
		n := f.waitNotification(t, notifications.MethodRunPhase)
		phase := n.Params.(notifications.RunPhase)
		assert.Equal(t, "Gun", phase.Name)
		assert.Equal(t, h.ID(), phase.Handle)
		if phase.Phase == "proton_started" {
			assert.True(t, phase.HideIndicator)
			break
		}
	}

	proc.Exit(0)
	f.waitRuns(t, 0)
}

func TestManager_StartShortcut_TargetMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addPrefix(t, testPrefix, testRunner)
	_, err := f.mgr.SelectPrefix(testPrefix)
	require.NoError(t, err)

	sc, err := f.store.AddShortcut(testPrefix, "Ghost", "C:/Games/ghost.exe", "")
	require.NoError(t, err)

	_, err = f.mgr.StartShortcut(context.Background(), sc.Hash)
	require.ErrorIs(t, err, ErrTargetNotFound)

	_, err = f.mgr.StartOnetime(context.Background(), "/nowhere/setup.exe", "")
	require.ErrorIs(t, err, ErrTargetNotFound)

	assert.Empty(t, f.mgr.Runs())
	assert.Equal(t, AppTitle, f.mgr.Status().Text)
	f.cmd.AssertNotCalled(t, "Spawn", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_StartShortcut_NoPrefix(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.mgr.StartShortcut(context.Background(), "0123")
	require.ErrorIs(t, err, ErrNoPrefix)
}

func TestManager_StartOnetime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addPrefix(t, testPrefix, testRunner)
	_, err := f.mgr.SelectPrefix(testPrefix)
	require.NoError(t, err)

	setup := filepath.Join(f.store.Path(testPrefix), prefixes.DriveC, "setup.exe")
	require.NoError(t, f.fsh.WriteFile(setup, []byte("MZ")))

	proc := helpers.NewFakeProcess(104)
	f.cmd.On("Spawn", mock.Anything, mock.Anything, testLauncher,
		helpers.HasArgs(setup, "/S", "/D=C:/Program Files/App")).
		Return(proc, nil).Once()

	_, err = f.mgr.StartOnetime(context.Background(), "C:/setup.exe", `/S "/D=C:/Program Files/App"`)
	require.NoError(t, err)

	runs := f.mgr.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, OnetimeID, runs[0].ID)
	assert.Equal(t, "setup.exe", runs[0].Name)
	assert.Equal(t, setup, runs[0].Path)
	assert.Equal(t, "Nero Manager (Games is running setup.exe)", f.mgr.Status().Text)

	ctx, cancel := context.WithTimeout(context.Background(), waitTick)
	defer cancel()
	require.ErrorIs(t, f.mgr.WaitRun(ctx, runs[0].Handle), context.DeadlineExceeded)

	proc.Exit(0)
	require.NoError(t, f.mgr.WaitRun(context.Background(), runs[0].Handle))
	f.waitRuns(t, 0)
	require.NoError(t, f.mgr.WaitRun(context.Background(), runs[0].Handle))
	f.cmd.AssertExpectations(t)
}

func TestManager_StopAll_SingleKill(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	hashes := f.addPrefix(t, testPrefix, testRunner, "A", "B", "C")
	_, err := f.mgr.SelectPrefix(testPrefix)
	require.NoError(t, err)

	procs := make([]*helpers.FakeProcess, 0, len(hashes))
	for i, hash := range hashes {
		procs = append(procs, f.expectSpawn(200+i))
		_, err = f.mgr.StartShortcut(context.Background(), hash)
		require.NoError(t, err)
	}

	f.cmd.On("RunWithOptions", mock.Anything, mock.Anything, f.wineserver(testRunner), []string{"-k"}).
		Run(func(mock.Arguments) {
			for _, p := range procs {
				p.Exit(0)
			}
		}).
		Return(nil).Once()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.mgr.StopAll(context.Background()))
		}()
	}
	wg.Wait()

	f.waitRuns(t, 0)
	f.cmd.AssertNumberOfCalls(t, "RunWithOptions", 1)

	// the latch resets once every run is gone
	assert.NoError(t, f.mgr.StopAll(context.Background()))
	f.cmd.AssertNumberOfCalls(t, "RunWithOptions", 1)
}

func TestManager_Stop(t *testing.T) {
	t.Parallel()

	t.Run("lone_run_kills_prefix_once", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		hashes := f.addPrefix(t, testPrefix, testRunner, "Gun")
		_, err := f.mgr.SelectPrefix(testPrefix)
		require.NoError(t, err)

		proc := f.expectSpawn(300)
		h, err := f.mgr.StartShortcut(context.Background(), hashes[0])
		require.NoError(t, err)

		f.cmd.On("RunWithOptions", mock.Anything, mock.Anything, f.wineserver(testRunner), []string{"-k"}).
			Return(nil).Once()

		require.NoError(t, f.mgr.Stop(context.Background(), h))
		require.NoError(t, f.mgr.Stop(context.Background(), h))
		assert.Equal(t, RunStopping, f.mgr.Runs()[0].State)

		proc.Exit(0)
		f.waitRuns(t, 0)
		f.cmd.AssertNumberOfCalls(t, "RunWithOptions", 1)

		require.ErrorIs(t, f.mgr.Stop(context.Background(), h), ErrUnknownRun)
	})

	t.Run("group_run_terminates_own_tree", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		hashes := f.addPrefix(t, testPrefix, testRunner, "Gun", "Tool")
		_, err := f.mgr.SelectPrefix(testPrefix)
		require.NoError(t, err)

		gun := f.expectSpawn(301)
		tool := f.expectSpawn(302)
		h, err := f.mgr.StartShortcut(context.Background(), hashes[0])
		require.NoError(t, err)
		_, err = f.mgr.StartShortcut(context.Background(), hashes[1])
		require.NoError(t, err)

		// the process must be spawned before it can be terminated
		f.waitPid(t, h, 301)

		require.NoError(t, f.mgr.Stop(context.Background(), h))
		f.waitRuns(t, 1)

		assert.Equal(t, 1, gun.Terminated())
		assert.Zero(t, tool.Terminated())
		f.cmd.AssertNotCalled(t, "RunWithOptions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.False(t, f.mgr.Runs()[0].Group)

		tool.Exit(0)
		f.waitRuns(t, 0)
	})
}

func (f *fixture) waitPid(t *testing.T, h Handle, pid int) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, s := range f.mgr.Runs() {
			if s.Handle == h && s.Pid == pid {
				return true
			}
		}
		return false
	}, waitTimeout, waitTick)
}

func TestManager_StopAfterKillReachesLaterRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stop func(f *fixture, later Handle) error
		name string
	}{
		{
			name: "stop_all",
			stop: func(f *fixture, _ Handle) error {
				return f.mgr.StopAll(context.Background())
			},
		},
		{
			name: "stop_lone_run",
			stop: func(f *fixture, later Handle) error {
				return f.mgr.Stop(context.Background(), later)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			hashes := f.addPrefix(t, testPrefix, testRunner, "Alpha", "Beta")
			_, err := f.mgr.SelectPrefix(testPrefix)
			require.NoError(t, err)
			f.cmd.On("RunWithOptions", mock.Anything, mock.Anything, f.wineserver(testRunner), []string{"-k"}).
				Return(nil)

			alpha := f.expectSpawn(600)
			first, err := f.mgr.StartShortcut(context.Background(), hashes[0])
			require.NoError(t, err)
			f.waitPid(t, first, 600)
			require.NoError(t, f.mgr.Stop(context.Background(), first))
			f.cmd.AssertNumberOfCalls(t, "RunWithOptions", 1)

			beta := f.expectSpawn(601)
			later, err := f.mgr.StartShortcut(context.Background(), hashes[1])
			require.NoError(t, err)
			f.waitPid(t, later, 601)

			alpha.Exit(0)
			f.waitRuns(t, 1)
			require.False(t, f.mgr.Runs()[0].Group)

			require.NoError(t, tt.stop(f, later))
			f.cmd.AssertNumberOfCalls(t, "RunWithOptions", 2)
			assert.Equal(t, RunStopping, f.mgr.Runs()[0].State)

			beta.Exit(0)
			f.waitRuns(t, 0)
		})
	}
}

func TestManager_RenameKeepsRunBinding(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	hashes := f.addPrefix(t, testPrefix, testRunner, "Old Name")
	_, err := f.mgr.SelectPrefix(testPrefix)
	require.NoError(t, err)

	proc := f.expectSpawn(400)
	h, err := f.mgr.StartShortcut(context.Background(), hashes[0])
	require.NoError(t, err)

	require.NoError(t, f.mgr.RenameShortcut(hashes[0], "New Name"))

	slot, ok := f.mgr.Running(hashes[0])
	require.True(t, ok)
	assert.Equal(t, h, slot.Handle)
	assert.Equal(t, "New Name", slot.Name)
	assert.Equal(t, "Nero Manager (Games is running New Name)", f.mgr.Status().Text)

	sc, err := f.store.Shortcut(testPrefix, hashes[0])
	require.NoError(t, err)
	assert.Equal(t, hashes[0], sc.Hash)

	proc.Exit(0)
	f.waitRuns(t, 0)
}

func TestManager_ShortcutHidesManager(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	hashes := f.addPrefix(t, testPrefix, testRunner, "Gun")
	f.cfg.SetShortcutHidesManager(true)
	_, err := f.mgr.SelectPrefix(testPrefix)
	require.NoError(t, err)

	proc := f.expectSpawn(500)
	_, err = f.mgr.StartShortcut(context.Background(), hashes[0])
	require.NoError(t, err)
	f.waitNotification(t, notifications.MethodUIHide)

	proc.Exit(0)
	f.waitNotification(t, notifications.MethodUIShow)
	f.waitRuns(t, 0)
}

func TestManager_MutationsRefusedWhileRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	hashes := f.addPrefix(t, testPrefix, testRunner, "Gun")
	_, err := f.mgr.SelectPrefix(testPrefix)
	require.NoError(t, err)

	proc := f.expectSpawn(600)
	_, err = f.mgr.StartShortcut(context.Background(), hashes[0])
	require.NoError(t, err)

	require.ErrorIs(t, f.mgr.DeleteShortcut(hashes[0]), ErrRunsActive)
	require.ErrorIs(t, f.mgr.DeletePrefix(testPrefix), ErrPrefixBusy)
	require.ErrorIs(t, f.mgr.SetPrefixRunner("GE-Proton-9"), ErrRunsActive)
	_, err = f.mgr.InstallTricks(context.Background(), []string{"corefonts"})
	require.ErrorIs(t, err, ErrRunsActive)

	proc.Exit(0)
	f.waitRuns(t, 0)

	require.NoError(t, f.mgr.SetPrefixRunner("GE-Proton-9"))
	assert.Equal(t, "GE-Proton-9", f.mgr.CurrentRunner())
	require.NoError(t, f.mgr.DeleteShortcut(hashes[0]))
}
