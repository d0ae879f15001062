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
	"fmt"
	"os"
	"time"

	"github.com/ZaparooProject/zaparoo-nero/pkg/config"
	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-nero/pkg/manager"
	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
	"github.com/ZaparooProject/zaparoo-nero/pkg/prefixes"
	"github.com/ZaparooProject/zaparoo-nero/pkg/runners"
	"github.com/ZaparooProject/zaparoo-nero/pkg/ui/systray"
	"github.com/ZaparooProject/zaparoo-nero/pkg/umu"
	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
)

const (
	notificationBuffer = 128
	closeTimeout       = 30 * time.Second
)

// App holds the wired core of a Nero process.
type App struct {
	Manager       *manager.Manager
	Config        *config.Instance
	Executor      command.Executor
	Notifications chan notifications.Notification
}

// Bootstrap finds umu-run and the installed runners and builds the
// manager. A missing launcher wraps runners.ErrLauncherNotFound.
func Bootstrap(ctx context.Context, cfg *config.Instance) (*App, error) {
	launcher, err := runners.FindLauncher(cfg.LauncherPath())
	if err != nil {
		return nil, fmt.Errorf("umu-run is required: %w", err)
	}

	set, err := runners.Discover(ctx, runners.Options{
		SteamDir:  runners.FindSteamDir(xdg.Home),
		ExtraDirs: cfg.RunnerDirs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find runners: %w", err)
	}
	if len(set) == 0 {
		log.Warn().Msg("no proton runners found, umu will pick its default")
	}

	root := cfg.PrefixesDir()
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create prefixes directory: %w", err)
	}

	exec := &command.RealExecutor{}
	ns := make(chan notifications.Notification, notificationBuffer)
	mgr := manager.New(manager.Options{
		Config:          cfg,
		Store:           prefixes.NewOsStore(root),
		Launcher:        umu.NewRunner(exec, launcher),
		Notifications:   ns,
		UserDirs:        prefixes.DefaultUserDirs(),
		Runners:         set,
		TricksAvailable: runners.HasWinetricks(),
	})

	log.Info().
		Str("launcher", launcher).
		Int("runners", len(set)).
		Str("prefixes", root).
		Msg("nero ready")

	return &App{
		Manager:       mgr,
		Config:        cfg,
		Executor:      exec,
		Notifications: ns,
	}, nil
}

// RunApp runs the one-shot command, the headless daemon or the tray,
// depending on flags, and shuts the manager down on return.
func RunApp(ctx context.Context, app *App, flags *Flags, quit func()) error {
	sinks := make([]notifications.Sink, 0, 3)
	desktop, err := notifications.NewDesktop()
	if err != nil {
		log.Warn().Err(err).Msg("desktop notifications unavailable")
	} else {
		defer func() {
			if err := desktop.Close(); err != nil {
				log.Debug().Err(err).Msg("failed to close session bus")
			}
		}()
		sinks = append(sinks, desktop)
	}

	var tray *systray.Tray
	if flags.HasAction() {
		sinks = append(sinks, PhasePrinter(os.Stdout))
	} else if !*flags.Daemon {
		tray = systray.New(app.Manager, app.Executor, app.Config.PrefixesDir())
		sinks = append(sinks, tray)
	}

	go func() {
		if err := app.Manager.Run(ctx); err != nil {
			log.Error().Err(err).Msg("manager loop failed")
		}
	}()
	go notifications.Dispatch(ctx, app.Notifications, sinks...)

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := app.Manager.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("failed to shut down manager")
		}
	}()

	if flags.HasAction() {
		return flags.Post(ctx, app.Manager, os.Stdout, app.Config.DefaultPrefix())
	}

	if *flags.Prefix != "" {
		if _, err := app.Manager.SelectPrefix(*flags.Prefix); err != nil {
			return fmt.Errorf("failed to select prefix: %w", err)
		}
	} else if _, err := app.Manager.AutoSelect(); err != nil {
		log.Warn().Err(err).Msg("failed to select default prefix")
	}

	go func() {
		if err := app.Manager.WatchPrefixes(ctx); err != nil {
			log.Warn().Err(err).Msg("prefix watcher stopped")
		}
	}()

	if tray == nil {
		log.Info().Msg("started in daemon mode")
		<-ctx.Done()
		return nil
	}
	tray.Run(ctx, quit)
	return nil
}
