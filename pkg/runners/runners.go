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

// Package runners finds the umu launcher and the Proton builds it can run
// prefixes with.
package runners

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	LauncherName   = "umu-run"
	WinetricksName = "winetricks"

	// protonScript marks a directory as a Proton build.
	protonScript = "proton"
	// compatTools is the Steam directory for user installed builds.
	compatTools = "compatibilitytools.d"
)

var (
	ErrLauncherNotFound = errors.New("umu-run launcher not found")
	ErrNoRunners        = errors.New("no proton runners available")
)

// Runner is a Proton build usable as PROTONPATH.
type Runner struct {
	Name string
	Path string
}

// Set is a name-ordered list of runners.
type Set []Runner

// Find returns the runner with this name.
func (s Set) Find(name string) (Runner, bool) {
	for _, r := range s {
		if r.Name == name {
			return r, true
		}
	}
	return Runner{}, false
}

// First returns the first runner, or ErrNoRunners.
func (s Set) First() (Runner, error) {
	if len(s) == 0 {
		return Runner{}, ErrNoRunners
	}
	return s[0], nil
}

func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, r := range s {
		names[i] = r.Name
	}
	return names
}

type Options struct {
	// SteamDir is the Steam root. Empty disables Steam lookups.
	SteamDir string
	// ExtraDirs are scanned for Proton builds as direct children.
	ExtraDirs []string
}

// Discover scans every runner root concurrently. Builds found in more than
// one root keep the first location in scan order. Missing roots are not an
// error, an empty Set is returned when nothing is installed.
func Discover(ctx context.Context, opts Options) (Set, error) {
	roots := make([]string, 0, len(opts.ExtraDirs)+4)
	roots = append(roots, opts.ExtraDirs...)
	if opts.SteamDir != "" {
		roots = append(roots, filepath.Join(opts.SteamDir, compatTools))
		for _, lib := range LibraryPaths(opts.SteamDir) {
			roots = append(roots, filepath.Join(lib, "steamapps", "common"))
		}
	}

	found := make([][]Runner, len(roots))
	var mu syncutil.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, root := range roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // context error
			}
			rs := scanRoot(root)
			mu.Lock()
			found[i] = rs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("runner discovery cancelled: %w", err)
	}

	seen := make(map[string]struct{})
	var set Set
	for _, rs := range found {
		for _, r := range rs {
			if _, ok := seen[r.Name]; ok {
				continue
			}
			seen[r.Name] = struct{}{}
			set = append(set, r)
		}
	}
	slices.SortStableFunc(set, func(a, b Runner) int {
		return strings.Compare(a.Name, b.Name)
	})

	log.Debug().Strs("runners", set.Names()).Msg("discovered proton runners")
	return set, nil
}

func scanRoot(root string) []Runner {
	entries, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("root", root).Msg("failed to read runner directory")
		}
		return nil
	}

	var out []Runner
	for _, e := range entries {
		if !e.IsDir() && e.Type()&os.ModeSymlink == 0 {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, protonScript)); err != nil {
			continue
		}
		out = append(out, Runner{Name: e.Name(), Path: dir})
	}
	return out
}

// FindLauncher returns the umu-run executable, preferring configured.
func FindLauncher(configured string) (string, error) {
	if configured != "" {
		info, err := os.Stat(configured)
		if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
			return "", fmt.Errorf("%w: %s", ErrLauncherNotFound, configured)
		}
		return configured, nil
	}
	path, err := exec.LookPath(LauncherName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLauncherNotFound, err)
	}
	return path, nil
}

// HasWinetricks reports whether winetricks is on PATH. Verb installs are
// disabled without it.
func HasWinetricks() bool {
	_, err := exec.LookPath(WinetricksName)
	return err == nil
}
