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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-nero/pkg/helpers/syncutil"
	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "NERO_CFG"
)

type Values struct {
	Paths        Paths   `toml:"paths,omitempty"`
	Manager      Manager `toml:"manager"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

// Manager holds the settings the manager window and tray read.
type Manager struct {
	DefaultPrefix        string  `toml:"default_prefix,omitempty"`
	WinSize              WinSize `toml:"win_size,omitempty"`
	ShortcutHidesManager bool    `toml:"shortcut_hides_manager"`
	RunWithDefaultPrefix bool    `toml:"run_with_default_prefix"`
}

type WinSize struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Paths overrides discovered locations. Empty values use the defaults.
type Paths struct {
	Prefixes string   `toml:"prefixes,omitempty"`
	Launcher string   `toml:"launcher,omitempty"`
	Runners  []string `toml:"runners,omitempty,multiline"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Manager: Manager{
		WinSize: WinSize{Width: 440, Height: 600},
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// DefaultConfigDir is the XDG config directory for the manager.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// fields missing from the file keep their defaults
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) DefaultPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Manager.DefaultPrefix
}

func (c *Instance) SetDefaultPrefix(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Manager.DefaultPrefix = name
}

func (c *Instance) ShortcutHidesManager() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Manager.ShortcutHidesManager
}

func (c *Instance) SetShortcutHidesManager(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Manager.ShortcutHidesManager = enabled
}

func (c *Instance) RunWithDefaultPrefix() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Manager.RunWithDefaultPrefix
}

func (c *Instance) SetRunWithDefaultPrefix(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Manager.RunWithDefaultPrefix = enabled
}

func (c *Instance) WinSize() WinSize {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Manager.WinSize
}

func (c *Instance) SetWinSize(size WinSize) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Manager.WinSize = size
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// PrefixesDir returns the directory holding every prefix, ~/Nero-UMU/Prefixes
// unless overridden.
func (c *Instance) PrefixesDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Paths.Prefixes != "" {
		return expandHome(c.vals.Paths.Prefixes)
	}
	return filepath.Join(xdg.Home, HomeDir, PrefixesDir)
}

// LauncherPath returns the configured umu-run path, empty to search PATH.
func (c *Instance) LauncherPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.vals.Paths.Launcher)
}

// RunnerDirs returns extra directories scanned for Proton runners.
func (c *Instance) RunnerDirs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dirs := make([]string, 0, len(c.vals.Paths.Runners))
	for _, d := range c.vals.Paths.Runners {
		dirs = append(dirs, expandHome(d))
	}
	return dirs
}

func expandHome(path string) string {
	if path == "~" {
		return xdg.Home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(xdg.Home, rest)
	}
	return path
}
