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

//nolint:revive // custom validation tags are unknown to revive
package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidatePrefixName(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Name string `validate:"required,prefixname"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "simple", value: "Games", wantError: false},
		{name: "spaces inside", value: "My Office Apps", wantError: false},
		{name: "unicode", value: "ゲーム", wantError: false},
		{name: "empty", value: "", wantError: true},
		{name: "slash", value: "a/b", wantError: true},
		{name: "backslash", value: "a\\b", wantError: true},
		{name: "dot", value: ".", wantError: true},
		{name: "dotdot", value: "..", wantError: true},
		{name: "hidden", value: ".icoCache", wantError: true},
		{name: "leading space", value: " Games", wantError: true},
		{name: "too long", value: strings.Repeat("a", MaxNameLength+1), wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(&testStruct{Name: tt.value})
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateShortcutName(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Name string `validate:"required,shortcutname"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "simple", value: "Half-Life 2", wantError: false},
		{name: "dots_only", value: "..", wantError: false},
		{name: "punctuation", value: "Doom: Eternal (2020)", wantError: false},
		{name: "slash", value: "AC/DC", wantError: true},
		{name: "parent_segments", value: "../../x", wantError: true},
		{name: "backslash", value: `a\b`, wantError: true},
		{name: "newline", value: "a\nb", wantError: true},
		{name: "blank", value: "   ", wantError: true},
		{name: "too_long", value: strings.Repeat("a", MaxNameLength+1), wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(&testStruct{Name: tt.value})
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, !tt.wantError, ShortcutName(tt.value))
		})
	}
}

func TestValidateVerb(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Verbs []string `validate:"dive,verb"`
	}

	v := NewValidator()
	require.NoError(t, v.Validate(&testStruct{Verbs: []string{"vcrun2019", "dotnet48", "renderer=vulkan", "d3dx9_43"}}))

	err := v.Validate(&testStruct{Verbs: []string{"vcrun2019", "rm -rf"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"rm -rf" is not a winetricks verb`)

	err = v.Validate(&testStruct{Verbs: []string{"a;reboot"}})
	require.Error(t, err)
}

func TestValidateRunner(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Runner string `validate:"required,runner"`
	}

	v := NewValidator()
	vctx := &Context{Runners: []string{"GE-Proton9-20", "Proton 9.0"}}

	require.NoError(t, v.ValidateCtx(context.Background(), &testStruct{Runner: "Proton 9.0"}, vctx))

	err := v.ValidateCtx(context.Background(), &testStruct{Runner: "GE-Proton7-1"}, vctx)
	require.Error(t, err)
	assert.Equal(t, `runner "GE-Proton7-1" not found`, err.Error())

	// without a context every runner passes
	require.NoError(t, v.Validate(&testStruct{Runner: "anything"}))
}

func TestError_Fields(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Name   string `validate:"required"`
		Runner string `validate:"required"`
	}

	err := NewValidator().Validate(&testStruct{})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "name is required; runner is required", verr.Error())
}

func TestPropertyPrefixNameNeverContainsSeparator(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "name")
		if PrefixName(name) && strings.ContainsAny(name, "/\\") {
			t.Fatalf("accepted name with separator: %q", name)
		}
	})
}
