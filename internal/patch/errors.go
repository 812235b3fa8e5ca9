// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package patch

import (
	"errors"
	"fmt"

	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
)

var (
	// ErrKeyLengthMismatch indicates that the secret does not match the ROM
	// width.
	ErrKeyLengthMismatch = errors.New("key length mismatch")

	// ErrMissingOffsetEntry indicates that the offset map lacks a cell which
	// needs patching, the map and ledger do not belong together.
	ErrMissingOffsetEntry = errors.New("missing offset entry")

	// ErrStaleOffsetMap indicates that the offset map, or a patch set, was
	// not built from the ledger or image being provisioned.
	ErrStaleOffsetMap = errors.New("stale offset map")

	// ErrReadBackMismatch indicates that a patched image does not read back
	// the expected secret.
	ErrReadBackMismatch = errors.New("read-back mismatch")
)

// KeyLengthMismatchError is returned when a secret has the wrong number of
// bits.
type KeyLengthMismatchError struct {
	Want int
	Got  int
}

func (e *KeyLengthMismatchError) Error() string {
	return fmt.Sprintf("%v, expected %d bits, got %d", ErrKeyLengthMismatch, e.Want, e.Got)
}

func (e *KeyLengthMismatchError) Unwrap() error {
	return ErrKeyLengthMismatch
}

// MissingOffsetEntryError is returned when a cell to be patched has no
// offset.
type MissingOffsetEntryError struct {
	Bit  int
	Slot int
}

func (e *MissingOffsetEntryError) Error() string {
	return fmt.Sprintf("%v: %v", ledger.CellID{Bit: e.Bit, Slot: e.Slot}, ErrMissingOffsetEntry)
}

func (e *MissingOffsetEntryError) Unwrap() error {
	return ErrMissingOffsetEntry
}
