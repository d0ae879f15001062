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

// Package assets renders the tray icons. They are drawn at startup so the
// binary ships no image files.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
)

// IconSize is the edge length of tray icons in pixels.
const IconSize = 32

var (
	wineRed   = color.NRGBA{R: 0x8e, G: 0x1b, B: 0x2f, A: 0xff}
	playGreen = color.NRGBA{R: 0x2e, G: 0xa0, B: 0x43, A: 0xff}
	busyAmber = color.NRGBA{R: 0xe0, G: 0x9a, B: 0x1a, A: 0xff}
)

var (
	iconsOnce sync.Once
	icons     map[notifications.Icon][]byte
	iconsErr  error
)

// TrayIcon returns the PNG for a tray state. Unknown states get the idle
// icon.
func TrayIcon(icon notifications.Icon) ([]byte, error) {
	iconsOnce.Do(func() {
		icons = make(map[notifications.Icon][]byte, 3)
		for _, st := range []notifications.Icon{
			notifications.IconIdle,
			notifications.IconPlaying,
			notifications.IconBusy,
		} {
			data, err := encode(draw(st))
			if err != nil {
				iconsErr = fmt.Errorf("failed to render tray icon %d: %w", st, err)
				return
			}
			icons[st] = data
		}
	})
	if iconsErr != nil {
		return nil, iconsErr
	}
	if data, ok := icons[icon]; ok {
		return data, nil
	}
	return icons[notifications.IconIdle], nil
}

// draw paints a wine glass silhouette with a status dot in the lower
// right corner. Idle has no dot.
func draw(icon notifications.Icon) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, IconSize, IconSize))

	// bowl
	fillCircle(img, 16, 11, 9, wineRed)
	for y := 0; y < 6; y++ {
		for x := 7; x < 26; x++ {
			img.SetNRGBA(x, y, color.NRGBA{})
		}
	}
	// stem and foot
	for y := 19; y < 27; y++ {
		img.SetNRGBA(15, y, wineRed)
		img.SetNRGBA(16, y, wineRed)
	}
	for x := 10; x < 22; x++ {
		img.SetNRGBA(x, 27, wineRed)
		img.SetNRGBA(x, 28, wineRed)
	}

	switch icon {
	case notifications.IconPlaying:
		fillCircle(img, 25, 25, 6, playGreen)
	case notifications.IconBusy:
		fillCircle(img, 25, 25, 6, busyAmber)
	case notifications.IconIdle:
	}
	return img
}

func fillCircle(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r && image.Pt(x, y).In(img.Rect) {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
