// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ledger implements the build-time record of key ROM cells, their
// random placeholder INIT values and physical placement labels.
//
// The ledger is written once by the placement generator, before the design is
// handed to the FPGA compiler, and consumed read-only by the locator and the
// patcher which run later as separate invocations.
package ledger

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/f-secure-foundry/armory-keyrom/internal/rom"
)

// ErrInvalidLedger is returned when a ledger is malformed or violates its
// uniqueness invariants.
var ErrInvalidLedger = errors.New("invalid ledger")

// CellID identifies a storage cell by ROM bit and redundancy slot.
type CellID struct {
	Bit  int
	Slot int
}

func (id CellID) String() string {
	return fmt.Sprintf("bit %d slot %d (%s)", id.Bit, id.Slot, SlotName(id.Slot))
}

// Cell represents a single redundant LUT of the key ROM.
type Cell struct {
	CellID

	// physical location assigned through placement constraints
	Label string
	// random INIT value given to the LUT at generation time
	Placeholder uint64
}

// Ledger represents the ordered set of key ROM cells for a single build.
type Ledger struct {
	// BuildID ties together the artifacts of a single generation run.
	BuildID uuid.UUID
	// Bits is the ROM word width.
	Bits int
	// Cells holds Bits*rom.Slots entries ordered by bit and slot.
	Cells []Cell
}

// SlotName returns the LUT letter used for a redundancy slot.
func SlotName(slot int) string {
	if slot < 0 || slot >= rom.Slots {
		return "?"
	}

	return string(rune('A' + slot))
}

func invalid(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidLedger, fmt.Sprintf(format, a...))
}

// Validate checks the ledger invariants: exactly rom.Slots cells per bit in
// canonical order, unique labels and unique placeholders.
func (l *Ledger) Validate() error {
	if l.Bits < 1 || l.Bits > rom.MaxBits {
		return invalid("width %d out of range", l.Bits)
	}

	if len(l.Cells) != l.Bits*rom.Slots {
		return invalid("%d cells, expected %d", len(l.Cells), l.Bits*rom.Slots)
	}

	labels := make(map[string]CellID, len(l.Cells))
	values := make(map[uint64]CellID, len(l.Cells))

	for i, c := range l.Cells {
		if c.Bit != i/rom.Slots || c.Slot != i%rom.Slots {
			return invalid("cell %d is %v, out of order", i, c.CellID)
		}

		if len(c.Label) == 0 || strings.ContainsAny(c.Label, " \t\r\n") {
			return invalid("%v has invalid label %q", c.CellID, c.Label)
		}

		if prev, ok := labels[c.Label]; ok {
			return invalid("%v and %v share label %s", prev, c.CellID, c.Label)
		}

		if prev, ok := values[c.Placeholder]; ok {
			return invalid("%v and %v share a placeholder", prev, c.CellID)
		}

		labels[c.Label] = c.CellID
		values[c.Placeholder] = c.CellID
	}

	return nil
}

// Digest returns the SHA-256 hash of the canonical ledger serialization.
func (l *Ledger) Digest() [sha256.Size]byte {
	buf := new(bytes.Buffer)
	l.encode(buf)

	return sha256.Sum256(buf.Bytes())
}
