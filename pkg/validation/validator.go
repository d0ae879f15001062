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

// Package validation checks user supplied prefix, shortcut and verb input
// using go-playground/validator with a few Nero specific tags.
package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxNameLength bounds prefix and shortcut names.
const MaxNameLength = 128

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey struct{}

var validateCtxKey = contextKey{}

// verbPattern matches winetricks verbs and their setting form (e.g. win10,
// vcrun2019, dxvk2030, renderer=vulkan).
var verbPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.\-]*(=[a-z0-9_.\-]+)?$`)

// Validator validates request structs.
type Validator struct {
	validate *validator.Validate
}

// Context provides runtime data for context-aware tags.
type Context struct {
	Runners []string
}

// NewValidator creates a Validator with the custom tags registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("prefixname", validatePrefixName)
	_ = v.RegisterValidation("shortcutname", validateShortcutName)
	_ = v.RegisterValidation("verb", validateVerb)
	_ = v.RegisterValidationCtx("runner", validateRunner)

	return &Validator{validate: v}
}

// DefaultValidator is the shared instance.
var DefaultValidator = NewValidator()

// Validate validates a struct and returns a formatted error if validation fails.
func (v *Validator) Validate(params any) error {
	return v.ValidateCtx(context.Background(), params, nil)
}

// ValidateCtx validates a struct with context and returns a formatted error.
func (v *Validator) ValidateCtx(ctx context.Context, params any, vctx *Context) error {
	ctxVal := context.WithValue(ctx, validateCtxKey, vctx)
	if err := v.validate.StructCtx(ctxVal, params); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewError(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// PrefixName reports whether name can be used as a prefix directory.
func PrefixName(name string) bool {
	return prefixNameOK(name)
}

func prefixNameOK(name string) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.TrimSpace(name) != name {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// validatePrefixName rejects names that would escape the prefixes
// directory or hide the prefix from listings.
func validatePrefixName(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return prefixNameOK(val)
}

// validateShortcutName allows anything printable on one line that can be
// part of a file name, since the icon cache is keyed by name.
func validateShortcutName(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return ShortcutName(val)
}

// ShortcutName reports whether name is a valid shortcut display name.
func ShortcutName(name string) bool {
	if len(name) > MaxNameLength || strings.TrimSpace(name) == "" {
		return false
	}
	return !strings.ContainsAny(name, "/\\\r\n\x00")
}

func validateVerb(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return verbPattern.MatchString(val)
}

// validateRunner checks the runner is installed (context-aware).
func validateRunner(ctx context.Context, fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	vctx, ok := ctx.Value(validateCtxKey).(*Context)
	if !ok || vctx == nil {
		return true
	}
	for _, name := range vctx.Runners {
		if name == val {
			return true
		}
	}
	return false
}
