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
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZaparooProject/zaparoo-nero/pkg/config"
	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers"
	"github.com/rs/zerolog"
)

type Flags struct {
	List      *bool
	Prefix    *string
	Shortcuts *bool
	Run       *string
	Exe       *string
	Args      *string
	Create    *string
	Runner    *string
	Tricks    *string
	Default   *bool
	Links     *bool
	Runners   *bool
	Daemon    *bool
	Version   *bool
}

// SetupFlags defines the command line flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		List: fs.Bool(
			"list",
			false,
			"list prefixes and exit",
		),
		Prefix: fs.String(
			"prefix",
			"",
			"prefix to use (default: the configured default prefix)",
		),
		Shortcuts: fs.Bool(
			"shortcuts",
			false,
			"list shortcuts of the prefix and exit",
		),
		Run: fs.String(
			"run",
			"",
			"launch a shortcut by name or hash and wait for it",
		),
		Exe: fs.String(
			"exe",
			"",
			"launch an executable in the prefix and wait for it",
		),
		Args: fs.String(
			"args",
			"",
			"arguments for -exe, double quotes group",
		),
		Create: fs.String(
			"create",
			"",
			"create a new prefix with this name",
		),
		Runner: fs.String(
			"runner",
			"",
			"runner for -create (default: first installed)",
		),
		Tricks: fs.String(
			"tricks",
			"",
			"comma separated winetricks verbs to install",
		),
		Default: fs.Bool(
			"default",
			false,
			"make the created prefix the default",
		),
		Links: fs.Bool(
			"links",
			false,
			"link the created prefix's user folders to the home folders",
		),
		Runners: fs.Bool(
			"runners",
			false,
			"list installed runners and exit",
		),
		Daemon: fs.Bool(
			"daemon",
			false,
			"run in the foreground with no tray, logging to stderr",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
	}
}

// Pre parses args and handles flags that need no setup. It reports
// whether the program should exit.
func (f *Flags) Pre(fs *flag.FlagSet, args []string, out io.Writer) (bool, error) {
	if err := fs.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}
	if *f.Version {
		_, _ = fmt.Fprintf(out, "Nero v%s\n", config.AppVersion)
		return true, nil
	}
	return false, nil
}

// HasAction reports whether a one-shot command was requested instead of
// the long running manager.
func (f *Flags) HasAction() bool {
	return *f.List || *f.Runners || *f.Shortcuts ||
		*f.Run != "" || *f.Exe != "" || *f.Create != "" || *f.Tricks != ""
}

// splitList splits a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Setup initializes logging and loads the user config.
//
//nolint:gocritic // config struct copied for immutability
func Setup(defaultConfig config.Values, writers []io.Writer) (*config.Instance, error) {
	if err := helpers.InitLogging(helpers.LogDir(), writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(config.DefaultConfigDir(), defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return cfg, nil
}

// ConsoleWriter is the stderr log writer used in daemon mode.
func ConsoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr}
}
