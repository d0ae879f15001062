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
	"fmt"

	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
)

// AppTitle is the status text when nothing runs.
const AppTitle = "Nero Manager"

// StatusText is the tray tooltip for the current runs. names holds the
// display names of the live runs in launch order.
func StatusText(prefix string, names []string) string {
	switch len(names) {
	case 0:
		return AppTitle
	case 1:
		return fmt.Sprintf("%s (%s is running %s)", AppTitle, prefix, names[0])
	default:
		return fmt.Sprintf("%s (%s is running %d apps)", AppTitle, prefix, len(names))
	}
}

// statusLocked must be called with m.mu held.
func (m *Manager) statusLocked() notifications.Status {
	runs := m.slots.values()
	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.slot.Name
	}

	st := notifications.Status{
		Text:            StatusText(m.current, names),
		Prefix:          m.current,
		Running:         len(runs),
		SettingsEnabled: len(runs) == 0,
		Icon:            notifications.IconIdle,
	}
	if len(runs) > 0 {
		st.Icon = notifications.IconPlaying
	}
	if len(m.jobs) > 0 {
		st.Icon = notifications.IconBusy
	}
	return st
}
