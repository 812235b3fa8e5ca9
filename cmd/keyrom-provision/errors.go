// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"

	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/locate"
	"github.com/f-secure-foundry/armory-keyrom/internal/patch"
)

// Exit codes
const (
	exitFailure = 1
	// invalid arguments or unreadable inputs
	exitUsage = 2
	// ledger and image do not match, the build must be regenerated
	exitBuild = 3
	// the secret or patch set do not match the build
	exitProvisioning = 4
)

// ExitError associates an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(format string, a ...interface{}) error {
	return &ExitError{Code: exitUsage, Err: fmt.Errorf(format, a...)}
}

func exitCode(err error) int {
	var e *ExitError

	switch {
	case errors.As(err, &e):
		return e.Code
	case errors.Is(err, ledger.ErrInvalidLedger),
		errors.Is(err, locate.ErrPlaceholderNotFound),
		errors.Is(err, locate.ErrAmbiguousPlacement):
		return exitBuild
	case errors.Is(err, patch.ErrKeyLengthMismatch),
		errors.Is(err, patch.ErrMissingOffsetEntry),
		errors.Is(err, patch.ErrStaleOffsetMap),
		errors.Is(err, patch.ErrReadBackMismatch),
		errors.Is(err, patch.ErrInvalidPatchSet):
		return exitProvisioning
	default:
		return exitFailure
	}
}
