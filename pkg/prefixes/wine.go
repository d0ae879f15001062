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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// portsHeader is the system.reg section Wine reads COM port mappings from.
const portsHeader = `[Software\\Wine\\Ports]`

// PortMappings are inserted under portsHeader so light gun and serial
// tools inside the prefix can reach the host devices.
var PortMappings = []string{
	`"COM1"="/dev/ttyACM0"`,
	`"COM2"="/dev/ttyACM1"`,
	`"COM3"="/dev/ttyACM2"`,
	`"COM4"="/dev/ttyACM3"`,
	`"COM5"="/dev/ttyS0"`,
}

var ErrNoSystemReg = errors.New("system.reg not found")

// HasSystemReg reports whether Wine has finished populating the prefix.
func (s *Store) HasSystemReg(prefix string) bool {
	ok, _ := afero.Exists(s.fs, filepath.Join(s.Path(prefix), SystemRegFile))
	return ok
}

// PatchSystemReg inserts PortMappings right after the ports section
// header. It returns false without writing when the section already maps
// COM1 or the header is missing.
func (s *Store) PatchSystemReg(prefix string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.Path(prefix), SystemRegFile)
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: %s", ErrNoSystemReg, prefix)
	} else if err != nil {
		return false, fmt.Errorf("failed to read system.reg: %w", err)
	}

	patched, ok := insertPortMappings(data)
	if !ok {
		return false, nil
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, patched, 0o644); err != nil { //nolint:gosec // same mode Wine uses
		return false, fmt.Errorf("failed to write system.reg: %w", err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return false, fmt.Errorf("failed to replace system.reg: %w", err)
	}

	log.Info().Str("prefix", prefix).Msg("added COM port mappings to system.reg")
	return true, nil
}

func insertPortMappings(data []byte) ([]byte, bool) {
	lines := bytes.SplitAfter(data, []byte("\n"))

	header := -1
	for i, line := range lines {
		if bytes.HasPrefix(line, []byte(portsHeader)) {
			header = i
			break
		}
	}
	if header < 0 {
		log.Warn().Msg("ports section missing from system.reg")
		return nil, false
	}

	for _, line := range lines[header+1:] {
		if bytes.HasPrefix(line, []byte("[")) {
			break
		}
		if bytes.HasPrefix(line, []byte(`"COM1"=`)) {
			log.Debug().Msg("system.reg already has COM port mappings")
			return nil, false
		}
	}

	var out bytes.Buffer
	out.Grow(len(data) + 128)
	for i, line := range lines {
		out.Write(line)
		if i == header {
			if !bytes.HasSuffix(line, []byte("\n")) {
				out.WriteByte('\n')
			}
			for _, m := range PortMappings {
				out.WriteString(m)
				out.WriteByte('\n')
			}
		}
	}
	return out.Bytes(), true
}

// InstalledVerbs reads winetricks.log, trimming lines and dropping blanks
// and duplicates. A prefix without a log has no verbs.
func (s *Store) InstalledVerbs(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.fs.Open(filepath.Join(s.Path(prefix), WinetricksLog))
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("prefix", prefix).Msg("prefix has no winetricks log")
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to open winetricks log: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing winetricks log")
		}
	}()

	seen := make(map[string]struct{})
	var verbs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		verb := strings.TrimSpace(scanner.Text())
		if verb == "" {
			continue
		}
		if _, dup := seen[verb]; dup {
			continue
		}
		seen[verb] = struct{}{}
		verbs = append(verbs, verb)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read winetricks log: %w", err)
	}
	return verbs, nil
}
