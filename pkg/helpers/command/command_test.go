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
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_Run(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}

	t.Run("executes_successful_command", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, executor.Run(context.Background(), "true"))
	})

	t.Run("returns_error_for_failed_command", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, executor.Run(context.Background(), "false"))
	})

	t.Run("returns_error_for_nonexistent_command", func(t *testing.T) {
		t.Parallel()
		require.Error(t, executor.Run(context.Background(), "nonexistent_command_that_should_not_exist_12345"))
	})
}

func TestRealExecutor_RunWithOptions(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}
	dir := t.TempDir()

	err := executor.RunWithOptions(
		context.Background(),
		StartOptions{Env: []string{"NERO_TEST=ok"}, Dir: dir},
		"sh", "-c", `test "$NERO_TEST" = ok && test "$(pwd)" = "$1"`, "sh", dir,
	)
	assert.NoError(t, err)
}

func TestRealExecutor_Output(t *testing.T) {
	t.Parallel()

	out, err := (&RealExecutor{}).Output(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestRealExecutor_Spawn(t *testing.T) {
	t.Parallel()

	executor := &RealExecutor{}

	t.Run("merges_stdout_and_stderr", func(t *testing.T) {
		t.Parallel()

		proc, err := executor.Spawn(context.Background(), StartOptions{},
			"sh", "-c", "echo out; echo err >&2")
		require.NoError(t, err)

		data, err := io.ReadAll(proc.Output())
		require.NoError(t, err)
		assert.Contains(t, string(data), "out\n")
		assert.Contains(t, string(data), "err\n")

		code, err := proc.Wait()
		require.NoError(t, err)
		assert.Equal(t, 0, code)
	})

	t.Run("reports_nonzero_exit_without_error", func(t *testing.T) {
		t.Parallel()

		proc, err := executor.Spawn(context.Background(), StartOptions{}, "sh", "-c", "exit 3")
		require.NoError(t, err)

		code, err := proc.Wait()
		require.NoError(t, err)
		assert.Equal(t, 3, code)

		// second wait returns the same result
		code, err = proc.Wait()
		require.NoError(t, err)
		assert.Equal(t, 3, code)
	})

	t.Run("output_closes_when_grandchild_holds_pipe", func(t *testing.T) {
		t.Parallel()

		proc, err := executor.Spawn(context.Background(), StartOptions{},
			"sh", "-c", "sleep 5 & echo started")
		require.NoError(t, err)

		read := make(chan string, 1)
		go func() {
			data, _ := io.ReadAll(proc.Output())
			read <- string(data)
		}()

		select {
		case data := <-read:
			assert.True(t, strings.HasPrefix(data, "started"))
		case <-time.After(3 * time.Second):
			t.Fatal("output reader did not finish after process exit")
		}
	})

	t.Run("returns_error_for_nonexistent_command", func(t *testing.T) {
		t.Parallel()

		_, err := executor.Spawn(context.Background(), StartOptions{}, "nonexistent_command_that_should_not_exist_12345")
		require.Error(t, err)
	})
}

func TestProcess_Terminate(t *testing.T) {
	t.Parallel()

	proc, err := (&RealExecutor{}).Spawn(context.Background(), StartOptions{}, "sleep", "30")
	require.NoError(t, err)

	require.NoError(t, proc.Terminate(context.Background()))

	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, -1, code, "killed by signal")
	assert.False(t, Alive(proc.Pid()))
}

// spawnWithChild starts script, which must print the pid of a background
// child as its first line, and returns the process and that pid.
func spawnWithChild(t *testing.T, script string) (Process, int) {
	t.Helper()

	proc, err := (&RealExecutor{}).Spawn(context.Background(), StartOptions{}, "sh", "-c", script)
	require.NoError(t, err)

	line, err := bufio.NewReader(proc.Output()).ReadString('\n')
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	return proc, pid
}

func gone(pid int) bool {
	proc, err := process.NewProcess(int32(pid)) //nolint:gosec // test pids fit
	if err != nil {
		return true
	}
	return !running(context.Background(), proc)
}

func TestProcess_Terminate_Descendants(t *testing.T) {
	t.Parallel()

	t.Run("child_of_running_root", func(t *testing.T) {
		t.Parallel()

		proc, child := spawnWithChild(t, "sleep 60 & echo $!; wait")
		require.False(t, gone(child))

		require.NoError(t, proc.Terminate(context.Background()))
		_, err := proc.Wait()
		require.NoError(t, err)
		assert.True(t, gone(child), "child %d survived", child)
	})

	t.Run("orphan_after_root_exit", func(t *testing.T) {
		t.Parallel()

		// the root exits at once and the child is reparented
		proc, child := spawnWithChild(t, "sleep 60 & echo $!")
		_, err := proc.Wait()
		require.NoError(t, err)
		require.False(t, gone(child))

		require.NoError(t, proc.Terminate(context.Background()))
		assert.True(t, gone(child), "orphan %d survived", child)
	})

	t.Run("cancelled_spawn_context_leaves_tree_to_terminate", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		proc, err := (&RealExecutor{}).Spawn(ctx, StartOptions{}, "sh", "-c", "sleep 60 & echo $!; wait")
		require.NoError(t, err)
		line, err := bufio.NewReader(proc.Output()).ReadString('\n')
		require.NoError(t, err)
		child, err := strconv.Atoi(strings.TrimSpace(line))
		require.NoError(t, err)

		exited := make(chan struct{})
		go func() {
			_, _ = proc.Wait()
			close(exited)
		}()

		cancel()
		select {
		case <-exited:
			t.Fatal("cancelling the spawn context killed the root")
		case <-time.After(200 * time.Millisecond):
		}

		require.NoError(t, proc.Terminate(context.Background()))
		<-exited
		assert.True(t, gone(child), "child %d survived", child)
	})
}

func TestRealExecutor_Spawn_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&RealExecutor{}).Spawn(ctx, StartOptions{}, "true")
	require.ErrorIs(t, err, context.Canceled)
}

func TestTerminateTree_MissingProcess(t *testing.T) {
	t.Parallel()

	// pid far above pid_max
	err := TerminateTree(context.Background(), clockwork.NewFakeClock(), 1<<30, nil)
	assert.NoError(t, err)
}

func TestAlive(t *testing.T) {
	t.Parallel()

	assert.True(t, Alive(os.Getpid()))
	assert.False(t, Alive(0))
	assert.False(t, Alive(-5))
}
