// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package rom implements the address decoding of the key ROM, a bank of LUT6
// primitives read back through a 32-bit status register.
//
// Each bit of the ROM word is backed by four redundant LUTs (slots 0 to 3,
// placed as the A, B, C and D LUTs of a slice). The low 6 bits of the
// address select the same entry in all four LUTs, while the high 2 bits pick
// which LUT output is returned, through a fixed permutation that never maps a
// slot onto its own index.
//
// The same decoding is used by the offline provisioning tool to compute
// replacement LUT contents, therefore it must match the hardware exactly.
package rom

// Number of redundant LUTs per ROM bit.
const Slots = 4

// Width of the LUT select input.
const SelectBits = 6

// Number of entries in a single LUT.
const TableSize = 1 << SelectBits

// Number of addressable ROM words.
const Words = 256

// Maximum ROM word width, bounded by the 32-bit status register.
const MaxBits = 32

// Fill values for constant tables.
const (
	Zeros Table = 0
	Ones  Table = ^Table(0)
)

// slotForHigh maps address bits [7:6] to the slot returned by the read-back
// mux. It is not derived from any formula and must not be changed.
var slotForHigh = [Slots]int{2, 3, 0, 1}

// highForSlot is the inverse of slotForHigh.
var highForSlot = [Slots]uint8{2, 3, 0, 1}

// Table represents the INIT value of a LUT6 primitive.
type Table uint64

// Eval returns the LUT output for the given select input, only the 6 least
// significant bits of sel are used.
func (t Table) Eval(sel uint8) bool {
	return (t>>(sel&(TableSize-1)))&1 == 1
}

// Set returns a copy of the table with the entry at sel set to v.
func (t Table) Set(sel uint8, v bool) Table {
	mask := Table(1) << (sel & (TableSize - 1))

	if v {
		return t | mask
	}

	return t &^ mask
}

// Constant returns the table evaluating to v for every select input.
func Constant(v bool) Table {
	if v {
		return Ones
	}

	return Zeros
}

// Decode splits a ROM address into the LUT select input and the redundancy
// slot whose output is returned for it.
func Decode(addr uint8) (sel uint8, slot int) {
	sel = addr & (TableSize - 1)
	slot = slotForHigh[addr>>SelectBits]

	return
}

// HighBitsFor returns the value of address bits [7:6] which selects the
// argument slot, it panics if slot is out of range.
func HighBitsFor(slot int) uint8 {
	return highForSlot[slot]
}

// Address returns the ROM address which evaluates slot at select input sel.
func Address(slot int, sel uint8) uint8 {
	return HighBitsFor(slot)<<SelectBits | sel&(TableSize-1)
}

// TableReader gives access to the current LUT contents of a ROM.
type TableReader interface {
	Table(bit int, slot int) Table
}

// ReadBack models the read-back mux, returning the ROM word at addr for a ROM
// of the given width. All four tables of each bit are evaluated, as the
// hardware does, before the slot output is selected.
func ReadBack(r TableReader, bits int, addr uint8) (word uint32) {
	sel, slot := Decode(addr)

	for bit := 0; bit < bits && bit < MaxBits; bit++ {
		var out [Slots]bool

		for s := 0; s < Slots; s++ {
			out[s] = r.Table(bit, s).Eval(sel)
		}

		if out[slot] {
			word |= 1 << bit
		}
	}

	return
}
