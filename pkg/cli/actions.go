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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/zaparoo-nero/pkg/manager"
	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
	"github.com/ZaparooProject/zaparoo-nero/pkg/prefixes"
	"github.com/ZaparooProject/zaparoo-nero/pkg/runners"
	"github.com/rs/zerolog/log"
)

const stopTimeout = 15 * time.Second

var ErrNoPrefixGiven = errors.New("no prefix given and no default prefix set")

// Manager is what the command line actions need from manager.Manager.
type Manager interface {
	Prefixes() ([]string, error)
	Runners() runners.Set
	SelectPrefix(name string) (manager.Selection, error)
	Shortcuts() ([]prefixes.Shortcut, error)
	FindShortcut(query string) (prefixes.Shortcut, bool, error)
	StartShortcut(ctx context.Context, hash string) (manager.Handle, error)
	StartOnetime(ctx context.Context, path, args string) (manager.Handle, error)
	WaitRun(ctx context.Context, h manager.Handle) error
	StopAll(ctx context.Context) error
	CreatePrefix(ctx context.Context, req manager.CreateRequest) (*manager.Job, error)
	InstallTricks(ctx context.Context, verbs []string) (*manager.Job, error)
}

// Post runs the one-shot command selected by the flags. defaultPrefix is
// used when -prefix is not given.
func (f *Flags) Post(ctx context.Context, mgr Manager, out io.Writer, defaultPrefix string) error {
	switch {
	case *f.List:
		return listPrefixes(mgr, out, defaultPrefix)
	case *f.Runners:
		for _, r := range mgr.Runners() {
			_, _ = fmt.Fprintf(out, "%s\t%s\n", r.Name, r.Path)
		}
		return nil
	case *f.Create != "":
		return f.create(ctx, mgr, out)
	}

	prefix := *f.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	if prefix == "" {
		return ErrNoPrefixGiven
	}
	sel, err := mgr.SelectPrefix(prefix)
	if err != nil {
		return fmt.Errorf("failed to select prefix: %w", err)
	}
	if sel.RunnerReset {
		_, _ = fmt.Fprintf(out, "Runner of %s is not installed, switched to %s\n", sel.Prefix, sel.Runner)
	}

	switch {
	case *f.Shortcuts:
		scs, err := mgr.Shortcuts()
		if err != nil {
			return err //nolint:wrapcheck // manager errors name the prefix
		}
		for _, sc := range scs {
			_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", sc.Hash, sc.Name, sc.Path)
		}
		return nil
	case *f.Run != "":
		sc, ok, err := mgr.FindShortcut(*f.Run)
		if err != nil {
			return err //nolint:wrapcheck // manager errors name the prefix
		}
		if !ok {
			return fmt.Errorf("%w: %s", prefixes.ErrShortcutNotFound, *f.Run)
		}
		h, err := mgr.StartShortcut(ctx, sc.Hash)
		if err != nil {
			return fmt.Errorf("failed to launch %s: %w", sc.Name, err)
		}
		return waitRun(ctx, mgr, h)
	case *f.Exe != "":
		h, err := mgr.StartOnetime(ctx, *f.Exe, *f.Args)
		if err != nil {
			return fmt.Errorf("failed to launch %s: %w", *f.Exe, err)
		}
		return waitRun(ctx, mgr, h)
	case *f.Tricks != "":
		job, err := mgr.InstallTricks(ctx, splitList(*f.Tricks))
		if err != nil {
			return fmt.Errorf("failed to install verbs: %w", err)
		}
		res, err := followJob(ctx, job, out)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Installed %v into %s\n", res.Verbs, res.Prefix)
		return nil
	}
	return nil
}

func listPrefixes(mgr Manager, out io.Writer, defaultPrefix string) error {
	names, err := mgr.Prefixes()
	if err != nil {
		return err //nolint:wrapcheck // already wrapped by the manager
	}
	for _, name := range names {
		if name == defaultPrefix {
			_, _ = fmt.Fprintf(out, "%s (default)\n", name)
		} else {
			_, _ = fmt.Fprintln(out, name)
		}
	}
	return nil
}

func (f *Flags) create(ctx context.Context, mgr Manager, out io.Writer) error {
	runner := *f.Runner
	if runner == "" {
		first, err := mgr.Runners().First()
		if err != nil {
			return fmt.Errorf("cannot create a prefix: %w", err)
		}
		runner = first.Name
	}

	job, err := mgr.CreatePrefix(ctx, manager.CreateRequest{
		Name:         *f.Create,
		Runner:       runner,
		Tricks:       splitList(*f.Tricks),
		SetDefault:   *f.Default,
		LinkUserDirs: *f.Links,
	})
	if err != nil {
		return fmt.Errorf("failed to create prefix: %w", err)
	}
	res, err := followJob(ctx, job, out)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Created prefix %s with %s\n", res.Prefix, res.Runner)
	return nil
}

// followJob prints job progress until it ends.
func followJob(ctx context.Context, job *manager.Job, out io.Writer) (manager.JobResult, error) {
	last := ""
	for p := range job.Progress() {
		if p.Text != "" && p.Text != last {
			_, _ = fmt.Fprintln(out, p.Text)
			last = p.Text
		}
	}
	res, err := job.Wait(ctx)
	if err != nil {
		if res.Output != "" {
			log.Error().Str("output", res.Output).Msg("launcher output")
		}
		if res.Path != "" && !res.Committed && res.Runner != "" {
			_, _ = fmt.Fprintf(out, "Prefix directory left at %s\n", res.Path)
		}
		return res, err //nolint:wrapcheck // job errors carry the hint
	}
	return res, nil
}

// waitRun blocks until the run ends. An interrupt stops every run in the
// prefix and returns; shutting the manager down waits for them to exit.
func waitRun(ctx context.Context, mgr Manager, h manager.Handle) error {
	if err := mgr.WaitRun(ctx, h); err == nil {
		return nil
	}

	log.Info().Msg("interrupted, stopping runs")
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := mgr.StopAll(stopCtx); err != nil {
		return fmt.Errorf("failed to stop runs: %w", err)
	}
	return nil
}

// PhasePrinter prints run progress for command line use.
func PhasePrinter(out io.Writer) notifications.Sink {
	return notifications.SinkFunc(func(n notifications.Notification) {
		if n.Method != notifications.MethodRunPhase {
			return
		}
		if p, ok := n.Params.(notifications.RunPhase); ok && p.Text != "" {
			_, _ = fmt.Fprintf(out, "%s: %s\n", p.Name, p.Text)
		}
	})
}
