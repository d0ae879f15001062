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

package prefixes

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"gopkg.in/ini.v1"
)

var loadOptions = ini.LoadOptions{
	// paths and arguments may contain ; and # and quoted words
	IgnoreInlineComment:     true,
	PreserveSurroundedQuote: true,
}

func newSettings() *ini.File {
	return ini.Empty(loadOptions)
}

// load must be called with s.mu held.
func (s *Store) load(prefix string) (*ini.File, error) {
	data, err := afero.ReadFile(s.fs, s.settingsPath(prefix))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPrefixNotFound, prefix)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read prefix settings: %w", err)
	}

	cfg, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prefix settings for %s: %w", prefix, err)
	}
	return cfg, nil
}

// save writes through a temp file so a crash never leaves a truncated
// settings file. Must be called with s.mu held for writing.
func (s *Store) save(prefix string, cfg *ini.File) error {
	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode prefix settings: %w", err)
	}

	path := s.settingsPath(prefix)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write prefix settings: %w", err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace prefix settings: %w", err)
	}
	return nil
}

// compareFolded orders strings case-insensitively, falling back to a
// byte comparison so the order is total. Casers are stateful, so each
// comparison gets its own.
func compareFolded(a, b string) int {
	fold := cases.Fold()
	if c := strings.Compare(fold.String(a), fold.String(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
