// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package patch

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/locate"
	"github.com/f-secure-foundry/armory-keyrom/internal/rom"
)

// Apply returns a patched copy of the image, which must be the one the patch
// set was computed for. The argument image is never modified.
func Apply(image []byte, ps *PatchSet) (patched []byte, err error) {
	if sha256.Sum256(image) != ps.ImageDigest {
		return nil, fmt.Errorf("%w: patch set is for image %x", ErrStaleOffsetMap, ps.ImageDigest)
	}

	for _, e := range ps.Entries {
		if e.Offset < 0 || e.Offset+int64(len(e.Value)) > int64(len(image)) {
			return nil, fmt.Errorf("entry offset %#x out of image bounds", e.Offset)
		}
	}

	patched = make([]byte, len(image))
	copy(patched, image)

	for _, e := range ps.Entries {
		copy(patched[e.Offset:], e.Value[:])
	}

	return
}

// ImageTables reads LUT contents from an image at located offsets.
type ImageTables struct {
	Image []byte
	Map   *locate.OffsetMap
	// defaults to big-endian
	Order binary.ByteOrder
}

// Table returns the table of a cell, or an all-zeros table when the cell
// cannot be read.
func (it *ImageTables) Table(bit int, slot int) rom.Table {
	order := it.Order

	if order == nil {
		order = binary.BigEndian
	}

	off, ok := it.Map.Offset(ledger.CellID{Bit: bit, Slot: slot})

	if !ok || off < 0 || off+8 > int64(len(it.Image)) {
		return rom.Zeros
	}

	return rom.Table(order.Uint64(it.Image[off:]))
}

// Verify checks that a patched image reads back the key at the policy
// address.
func (p *Patcher) Verify(l *ledger.Ledger, m *locate.OffsetMap, patched []byte, key SecretKey) error {
	if len(key) != l.Bits {
		return &KeyLengthMismatchError{Want: l.Bits, Got: len(key)}
	}

	it := &ImageTables{Image: patched, Map: m, Order: p.order()}

	if rom.ReadBack(it, l.Bits, p.Policy.Address) != key.Word() {
		return fmt.Errorf("%w at address %#02x", ErrReadBackMismatch, p.Policy.Address)
	}

	return nil
}

// VerifyROM checks that a patched image reads back every word of a ROM
// image.
func (p *Patcher) VerifyROM(l *ledger.Ledger, m *locate.OffsetMap, patched []byte, data []byte) error {
	if l.Bits%8 != 0 || len(data) != ROMSize(l.Bits) {
		return &KeyLengthMismatchError{Want: ROMSize(l.Bits) * 8, Got: len(data) * 8}
	}

	it := &ImageTables{Image: patched, Map: m, Order: p.order()}

	for addr := 0; addr < rom.Words; addr++ {
		if rom.ReadBack(it, l.Bits, uint8(addr)) != ROMWord(data, l.Bits, uint8(addr)) {
			return fmt.Errorf("%w at address %#02x", ErrReadBackMismatch, addr)
		}
	}

	return nil
}
