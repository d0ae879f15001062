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

// Package systray shows the manager status in the system tray and offers
// the few actions that make sense without the manager window.
package systray

import (
	"context"
	"time"

	"fyne.io/systray"
	"github.com/ZaparooProject/zaparoo-nero/pkg/assets"
	"github.com/ZaparooProject/zaparoo-nero/pkg/config"
	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/command"
	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-nero/pkg/manager"
	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
	"github.com/rs/zerolog/log"
)

const (
	openCmd     = "xdg-open"
	stopTimeout = 10 * time.Second
)

// Controller is the part of the manager the tray drives.
type Controller interface {
	Status() notifications.Status
	StopAll(ctx context.Context) error
}

// Tray is a notifications.Sink that mirrors status changes and the
// manager hide hints into the tray.
type Tray struct {
	ctrl     Controller
	exec     command.Executor
	status   *notifications.Status
	changed  chan struct{}
	prefixes string
	mu       syncutil.Mutex
	hidden   bool
}

func New(ctrl Controller, exec command.Executor, prefixesDir string) *Tray {
	return &Tray{
		ctrl:     ctrl,
		exec:     exec,
		prefixes: prefixesDir,
		changed:  make(chan struct{}, 1),
	}
}

// Notify records the latest status and hide state and wakes the tray
// loop. Pending wakeups are coalesced.
func (t *Tray) Notify(n notifications.Notification) {
	t.mu.Lock()
	switch n.Method {
	case notifications.MethodStatusChanged:
		st, ok := n.Params.(notifications.Status)
		if !ok {
			t.mu.Unlock()
			return
		}
		t.status = &st
	case notifications.MethodUIHide:
		t.hidden = true
	case notifications.MethodUIShow:
		t.hidden = false
	default:
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	select {
	case t.changed <- struct{}{}:
	default:
	}
}

// View is what the tray shows now. Before the first status notification
// the status is read from the controller.
func (t *Tray) View() View {
	t.mu.Lock()
	st, hidden := t.status, t.hidden
	t.mu.Unlock()

	if st == nil {
		cur := t.ctrl.Status()
		st = &cur
	}
	return ViewOf(*st, hidden)
}

// View is what the tray shows for a status.
type View struct {
	Tooltip string
	Prefix  string
	Icon    notifications.Icon
	CanStop bool
	// Compact is set while a launched shortcut has the manager hidden;
	// the menu then only offers stopping and quitting.
	Compact bool
}

func ViewOf(st notifications.Status, hidden bool) View {
	v := View{
		Tooltip: st.Text,
		Icon:    st.Icon,
		CanStop: st.Running > 0,
		Prefix:  "No prefix selected",
		Compact: hidden,
	}
	if v.Tooltip == "" {
		v.Tooltip = manager.AppTitle
	}
	if st.Prefix != "" {
		v.Prefix = "Prefix: " + st.Prefix
	}
	return v
}

// OpenPrefixes opens the prefixes directory in the file manager.
func (t *Tray) OpenPrefixes(ctx context.Context) error {
	return t.exec.Start(ctx, openCmd, t.prefixes) //nolint:wrapcheck // exec errors name the command
}

// StopAll asks the manager to stop every run.
func (t *Tray) StopAll() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := t.ctrl.StopAll(ctx); err != nil {
		log.Error().Err(err).Msg("failed to stop runs from tray")
	}
}

type menu struct {
	prefix *systray.MenuItem
	stop   *systray.MenuItem
	open   *systray.MenuItem
	quit   *systray.MenuItem
}

func (t *Tray) onReady(ctx context.Context, quit func()) func() {
	return func() {
		systray.SetTitle(manager.AppTitle)

		m := menu{}
		m.prefix = systray.AddMenuItem("", "")
		m.prefix.Disable()
		systray.AddSeparator()
		m.stop = systray.AddMenuItem("Stop all", "Stop every app in the current prefix")
		m.open = systray.AddMenuItem("Open prefixes folder", "Open the prefixes directory")
		systray.AddSeparator()
		version := systray.AddMenuItem("Version "+config.AppVersion, "")
		version.Disable()
		m.quit = systray.AddMenuItem("Quit", "Stop all apps and quit Nero")

		apply(m, t.View())

		go t.loop(ctx, m, quit)
	}
}

func (t *Tray) loop(ctx context.Context, m menu, quit func()) {
	for {
		select {
		case <-ctx.Done():
			systray.Quit()
			return
		case <-t.changed:
			apply(m, t.View())
		case <-m.stop.ClickedCh:
			t.StopAll()
		case <-m.open.ClickedCh:
			if err := t.OpenPrefixes(ctx); err != nil {
				log.Error().Err(err).Msg("failed to open prefixes folder")
			}
		case <-m.quit.ClickedCh:
			quit()
			systray.Quit()
			return
		}
	}
}

func apply(m menu, v View) {
	icon, err := assets.TrayIcon(v.Icon)
	if err != nil {
		log.Error().Err(err).Msg("failed to render tray icon")
	} else {
		systray.SetIcon(icon)
	}
	systray.SetTooltip(v.Tooltip)
	m.prefix.SetTitle(v.Prefix)
	if v.CanStop {
		m.stop.Enable()
	} else {
		m.stop.Disable()
	}
	if v.Compact {
		m.prefix.Hide()
		m.open.Hide()
	} else {
		m.prefix.Show()
		m.open.Show()
	}
}

// Run blocks on the tray event loop until Quit is chosen or ctx is done.
// quit is called when the user asks to quit. Must be called from the main
// goroutine.
func (t *Tray) Run(ctx context.Context, quit func()) {
	systray.Run(t.onReady(ctx, quit), func() {
		log.Info().Msg("tray exited")
	})
}
