// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package placement

import (
	"fmt"

	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
)

// Default placement, two slice columns starting at SLICE_X36Y50.
const (
	DefaultOriginX = 36
	DefaultOriginY = 50
	DefaultPrefix  = "KEYROM"
	DefaultPBlock  = "keyrom"
)

// Layout describes how key ROM cells are pinned to physical sites. Even bits
// are placed in column OriginX, odd bits in column OriginX+1, two bits per
// row, one LUT per redundancy slot.
type Layout struct {
	OriginX int
	OriginY int

	// cell instance name prefix
	Prefix string
	// placement block name
	PBlock string
}

// DefaultLayout returns the default key ROM placement.
func DefaultLayout() Layout {
	return Layout{
		OriginX: DefaultOriginX,
		OriginY: DefaultOriginY,
		Prefix:  DefaultPrefix,
		PBlock:  DefaultPBlock,
	}
}

// Site returns the slice holding the LUTs of a ROM bit.
func (y Layout) Site(bit int) string {
	return fmt.Sprintf("SLICE_X%dY%d", y.OriginX+bit%2, y.OriginY+bit/2)
}

// BEL returns the LUT6 basic element name of a redundancy slot.
func (y Layout) BEL(slot int) string {
	return ledger.SlotName(slot) + "6LUT"
}

// Label returns the physical location label of a cell.
func (y Layout) Label(bit int, slot int) string {
	return y.Site(bit) + "/" + y.BEL(slot)
}

// CellName returns the instance name of a cell in the design.
func (y Layout) CellName(bit int, slot int) string {
	return fmt.Sprintf("%s%d%s", y.Prefix, bit, ledger.SlotName(slot))
}

// Range returns the site range covering a ROM of the argument width.
func (y Layout) Range(bits int) string {
	last := bits - 1

	if last < 1 {
		last = 1
	}

	return fmt.Sprintf("SLICE_X%dY%d:SLICE_X%dY%d", y.OriginX, y.OriginY, y.OriginX+1, y.OriginY+last/2)
}
