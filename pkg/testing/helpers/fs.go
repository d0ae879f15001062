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

package helpers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// TestPrefixesRoot is the prefixes directory used by in-memory fixtures.
const TestPrefixesRoot = "/home/tester/Nero-UMU/Prefixes"

// SystemRegWithPorts is a trimmed system.reg as Wine writes it for a new
// prefix, including the empty ports section.
const SystemRegWithPorts = `WINE REGISTRY Version 2
;; All keys relative to \\Machine

#arch=win64

[Software\\Wine\\Drives] 1700000000
#time=1da1b1d1e1f1a1b
"c:"="hd"

[Software\\Wine\\Ports] 1700000000
#time=1da1b1d1e1f1a1c

[Software\\Wine\\VDM\\Dosbox] 1700000000
#time=1da1b1d1e1f1a1d
`

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// NewOSFS creates a filesystem helper using the real filesystem (for integration tests)
func NewOSFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewOsFs(),
	}
}

// PrefixFixture describes a committed prefix to lay down on disk.
type PrefixFixture struct {
	// Shortcuts maps hash to name, path and args (in that order).
	Shortcuts map[string][3]string
	Name      string
	Runner    string
	Verbs     []string
	// WithSystemReg writes SystemRegWithPorts.
	WithSystemReg bool
}

// CreatePrefix writes the settings file and Wine files for a prefix under
// root. It writes the ini text directly so fixtures do not depend on the
// code under test.
func (h *FSHelper) CreatePrefix(root string, p PrefixFixture) (string, error) {
	dir := filepath.Join(root, p.Name)
	if err := h.Fs.MkdirAll(filepath.Join(dir, ".icoCache"), 0o750); err != nil {
		return "", fmt.Errorf("failed to create prefix directory: %w", err)
	}
	if err := h.Fs.MkdirAll(filepath.Join(dir, "drive_c", "windows"), 0o750); err != nil {
		return "", fmt.Errorf("failed to create drive_c: %w", err)
	}

	var ini strings.Builder
	fmt.Fprintf(&ini, "[PrefixSettings]\nCurrentRunner = %s\n\n[Shortcuts]\n", p.Runner)
	for hash, sc := range p.Shortcuts {
		fmt.Fprintf(&ini, "%s = %s\n", hash, sc[0])
	}
	for hash, sc := range p.Shortcuts {
		fmt.Fprintf(&ini, "\n[%s]\nName = %s\nPath = %s\nArgs = %s\n", hash, sc[0], sc[1], sc[2])
	}
	if err := h.WriteFile(filepath.Join(dir, "prefixSettings.ini"), []byte(ini.String())); err != nil {
		return "", err
	}

	if p.WithSystemReg {
		if err := h.WriteFile(filepath.Join(dir, "system.reg"), []byte(SystemRegWithPorts)); err != nil {
			return "", err
		}
	}
	if len(p.Verbs) > 0 {
		log := strings.Join(p.Verbs, "\n") + "\n"
		if err := h.WriteFile(filepath.Join(dir, "winetricks.log"), []byte(log)); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// CreateRunner lays down a Proton build directory with its proton script.
func (h *FSHelper) CreateRunner(root, name string) (string, error) {
	dir := filepath.Join(root, name)
	if err := h.WriteFile(filepath.Join(dir, "proton"), []byte("#!/bin/sh\n")); err != nil {
		return "", err
	}
	if err := h.WriteFile(filepath.Join(dir, "files", "bin", "wineserver"), []byte("#!/bin/sh\n")); err != nil {
		return "", err
	}
	return dir, nil
}

// CreateDirectoryStructure creates a nested structure where string and
// []byte values are files and maps or nil are directories.
func (h *FSHelper) CreateDirectoryStructure(structure map[string]any) error {
	return h.createStructureRecursive("", structure)
}

func (h *FSHelper) createStructureRecursive(basePath string, structure map[string]any) error {
	for name, content := range structure {
		fullPath := filepath.Join(basePath, name)

		switch v := content.(type) {
		case string:
			if err := h.WriteFile(fullPath, []byte(v)); err != nil {
				return err
			}
		case []byte:
			if err := h.WriteFile(fullPath, v); err != nil {
				return err
			}
		case map[string]any:
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
			if err := h.createStructureRecursive(fullPath, v); err != nil {
				return err
			}
		case nil:
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create empty directory %s: %w", fullPath, err)
			}
		}
	}
	return nil
}

// FileExists checks if a file exists
func (h *FSHelper) FileExists(path string) bool {
	exists, err := afero.Exists(h.Fs, path)
	if err != nil {
		return false
	}
	return exists
}

// ReadFile reads a file and returns its content
func (h *FSHelper) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(h.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes content to a file, creating parent directories.
func (h *FSHelper) WriteFile(path string, content []byte) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for file %s: %w", path, err)
	}
	if err := afero.WriteFile(h.Fs, path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}
