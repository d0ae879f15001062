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
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-nero/pkg/prefixes"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Session is the prefix and runner a launch happens in.
type Session struct {
	Store      *prefixes.Store
	Prefix     string
	RunnerPath string
}

func (s Session) PrefixPath() string {
	return s.Store.Path(s.Prefix)
}

// LaunchOptions are the per run hooks of an app launch.
type LaunchOptions struct {
	OnPhase func(Phase)
	OnSpawn func(command.Process)
	// Group reports whether other runs share the prefix. It is asked
	// when the launch is cancelled: a lone run takes the whole prefix
	// down, a group run only its own process tree.
	Group func() bool
}

func (o LaunchOptions) group() bool {
	return o.Group != nil && o.Group()
}

// StartShortcut launches the shortcut with this hash and blocks until it
// exits.
func (r *Runner) StartShortcut(
	ctx context.Context,
	sess Session,
	hash string,
	opts LaunchOptions,
) (Result, error) {
	sc, err := sess.Store.Shortcut(sess.Prefix, hash)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to load shortcut: %w", err)
	}

	target := sess.Store.ResolveTarget(sess.Prefix, sc.Path)
	env := BuildRunEnv(sess.PrefixPath(), sess.RunnerPath, sc.Env)
	log.Info().
		Str("prefix", sess.Prefix).
		Str("shortcut", sc.Name).
		Str("hash", hash).
		Bool("group", opts.group()).
		Msg("starting shortcut")
	return r.launch(ctx, sess, target, SplitArgs(sc.Args), env, opts)
}

// StartOnetime launches an executable that is not saved as a shortcut and
// blocks until it exits.
func (r *Runner) StartOnetime(
	ctx context.Context,
	sess Session,
	path string,
	args []string,
	opts LaunchOptions,
) (Result, error) {
	target := sess.Store.ResolveTarget(sess.Prefix, path)
	env := BuildRunEnv(sess.PrefixPath(), sess.RunnerPath, nil)
	log.Info().
		Str("prefix", sess.Prefix).
		Str("path", target).
		Strs("args", args).
		Bool("group", opts.group()).
		Msg("starting one-time run")
	return r.launch(ctx, sess, target, args, env, opts)
}

func (r *Runner) launch(
	ctx context.Context,
	sess Session,
	target string,
	args []string,
	env Env,
	opts LaunchOptions,
) (Result, error) {
	runOpts := RunOptions{
		Env:          env,
		OnPhase:      opts.OnPhase,
		OnSpawn:      opts.OnSpawn,
		StartedGrace: StartedGrace,
	}
	runOpts.emit(PhaseRunnerStarting)

	cmd := Command{Name: r.launcher, Args: append([]string{target}, args...)}
	res, err := r.Run(ctx, cmd, runOpts)

	if ctx.Err() != nil && !opts.group() {
		// a lone run owns the prefix, take the rest of it down too
		if killErr := r.KillPrefix(context.WithoutCancel(ctx), sess); killErr != nil {
			log.Warn().Err(killErr).Str("prefix", sess.Prefix).Msg("failed to kill prefix")
		}
	}

	runOpts.emit(PhaseProtonStopped)
	return res, err
}

// KillPrefix stops every process in the prefix with wineserver -k. The
// runner's own wineserver is used when it exists, it stops a prefix
// without starting the container; otherwise the launcher's is.
func (r *Runner) KillPrefix(ctx context.Context, sess Session) error {
	wineserver := filepath.Join(sess.RunnerPath, "files", "bin", "wineserver")
	if ok, _ := afero.Exists(r.fs, wineserver); ok && sess.RunnerPath != "" {
		env := Env{EnvWinePrefix: sess.PrefixPath()}
		err := r.exec.RunWithOptions(ctx, command.StartOptions{Env: env.Environ(r.environ())}, wineserver, "-k")
		if err == nil {
			log.Info().Str("prefix", sess.Prefix).Msg("killed prefix with runner wineserver")
			return nil
		}
		log.Warn().Err(err).Str("wineserver", wineserver).Msg("runner wineserver failed, falling back to launcher")
	}

	env := BuildRunEnv(sess.PrefixPath(), sess.RunnerPath, nil)
	cmd := BuildKillArgs(r.launcher)
	err := r.exec.RunWithOptions(ctx, command.StartOptions{Env: env.Environ(r.environ())}, cmd.Name, cmd.Args...)
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		// wineserver -k exits non-zero when nothing was running
		log.Debug().Int("code", exitErr.ExitCode()).Str("prefix", sess.Prefix).Msg("wineserver -k exited")
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to kill prefix %s: %w", sess.Prefix, err)
	}
	log.Info().Str("prefix", sess.Prefix).Msg("killed prefix with launcher")
	return nil
}

// WaitPrefix blocks until every process in the prefix has exited.
func (r *Runner) WaitPrefix(ctx context.Context, sess Session) error {
	env := BuildRunEnv(sess.PrefixPath(), sess.RunnerPath, nil)
	cmd := BuildWaitArgs(r.launcher)
	if err := r.exec.RunWithOptions(ctx, command.StartOptions{Env: env.Environ(r.environ())}, cmd.Name, cmd.Args...); err != nil {
		return fmt.Errorf("failed to wait for prefix %s: %w", sess.Prefix, err)
	}
	return nil
}
