// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package locate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
)

var (
	// ErrPlaceholderNotFound indicates that the compiler discarded or
	// altered a cell.
	ErrPlaceholderNotFound = errors.New("placeholder not found")

	// ErrAmbiguousPlacement indicates that a placeholder occurs more than
	// once within the image.
	ErrAmbiguousPlacement = errors.New("ambiguous placement")
)

// PlaceholderNotFoundError is returned when a cell placeholder does not occur
// in the image.
type PlaceholderNotFoundError struct {
	Cell ledger.CellID
}

func (e *PlaceholderNotFoundError) Error() string {
	return fmt.Sprintf("%v: %v", e.Cell, ErrPlaceholderNotFound)
}

func (e *PlaceholderNotFoundError) Unwrap() error {
	return ErrPlaceholderNotFound
}

// AmbiguousPlacementError is returned when a cell placeholder occurs at more
// than one offset.
type AmbiguousPlacementError struct {
	Cell ledger.CellID
	// number of occurrences
	Matches int
	// first occurrences
	Offsets []int64
}

func (e *AmbiguousPlacementError) Error() string {
	return fmt.Sprintf("%v: %v, %d matches at %#x", e.Cell, ErrAmbiguousPlacement, e.Matches, e.Offsets)
}

func (e *AmbiguousPlacementError) Unwrap() error {
	return ErrAmbiguousPlacement
}

// Error collects every cell which could not be uniquely located.
type Error struct {
	Unresolved []error
}

func (e *Error) Error() string {
	var msg []string

	for _, err := range e.Unresolved {
		msg = append(msg, err.Error())
	}

	return fmt.Sprintf("%d cells unresolved: %s", len(e.Unresolved), strings.Join(msg, "; "))
}

func (e *Error) Unwrap() []error {
	return e.Unresolved
}
