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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/zaparoo-nero/pkg/cli"
	"github.com/ZaparooProject/zaparoo-nero/pkg/config"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.CommandLine
	flags := cli.SetupFlags(fs)

	exit, err := flags.Pre(fs, os.Args[1:], os.Stdout)
	if err != nil {
		return err //nolint:wrapcheck // already wrapped
	} else if exit {
		return nil
	}

	if os.Geteuid() == 0 {
		return errors.New("nero cannot be run as root")
	}

	var logWriters []io.Writer
	if *flags.Daemon || flags.HasAction() {
		logWriters = []io.Writer{cli.ConsoleWriter()}
	}

	cfg, err := cli.Setup(config.BaseDefaults, logWriters)
	if err != nil {
		return err //nolint:wrapcheck // already wrapped
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.Bootstrap(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("error starting manager")
		return err //nolint:wrapcheck // already wrapped
	}

	if err := cli.RunApp(ctx, app, flags, stop); err != nil {
		log.Error().Err(err).Msg("exited with error")
		return err //nolint:wrapcheck // already wrapped
	}
	return nil
}
