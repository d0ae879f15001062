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
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	notifyService   = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyMethod    = "org.freedesktop.Notifications.Notify"
	notifyAppName   = "Nero Manager"
	notifyIcon      = "wine"
	notifyTimeout   = 3 * time.Second
	notifyExpiresMs = int32(8000)
)

// caller is the part of dbus.BusObject the notifier uses.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
}

// Desktop shows job results as freedesktop notifications over the session
// bus.
type Desktop struct {
	conn *dbus.Conn
	obj  caller
}

// NewDesktop connects to the session bus. It fails when there is no
// session bus, callers then run without desktop notifications.
func NewDesktop() (*Desktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Desktop{
		conn: conn,
		obj:  conn.Object(notifyService, notifyPath),
	}, nil
}

func (d *Desktop) Close() error {
	if d.conn == nil {
		return nil
	}
	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("failed to close session bus: %w", err)
	}
	return nil
}

// Notify implements Sink. Only job results are shown.
func (d *Desktop) Notify(n Notification) {
	summary, body, ok := DesktopMessage(n)
	if !ok {
		return
	}
	if err := d.Show(summary, body); err != nil {
		log.Warn().Err(err).Str("method", n.Method).Msg("failed to show desktop notification")
	}
}

// Show sends one notification.
func (d *Desktop) Show(summary, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	call := d.obj.CallWithContext(ctx, notifyMethod, 0,
		notifyAppName,
		uint32(0),
		notifyIcon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		notifyExpiresMs,
	)
	if call.Err != nil {
		return fmt.Errorf("notify call failed: %w", call.Err)
	}
	return nil
}

// DesktopMessage returns the summary and body shown for n, or false when n
// is not shown on the desktop.
func DesktopMessage(n Notification) (summary, body string, ok bool) {
	res, isResult := n.Params.(JobResult)
	if !isResult {
		return "", "", false
	}

	switch n.Method {
	case MethodPrefixCreated:
		return "Prefix created", fmt.Sprintf("%s is ready with %s.", res.Prefix, res.Runner), true
	case MethodPrefixCreateFailed:
		return "Prefix creation failed", failureBody(res), true
	case MethodTricksInstalled:
		return "Components installed", fmt.Sprintf("%s installed in %s.", strings.Join(res.Verbs, ", "), res.Prefix), true
	case MethodTricksFailed:
		return "Component installation failed", failureBody(res), true
	default:
		return "", "", false
	}
}

func failureBody(res JobResult) string {
	if res.Hint != "" {
		return fmt.Sprintf("%s: %s", res.Prefix, res.Hint)
	}
	return fmt.Sprintf("%s: exited with code %d", res.Prefix, res.ExitCode)
}
