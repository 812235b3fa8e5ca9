// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package patch computes the LUT contents which make the key ROM read back a
// device secret, expressed as byte edits of a compiled FPGA image.
//
// The image itself is never modified by the patcher, the resulting patch set
// is handed to the downstream encryption tool (or applied with Apply for
// verification purposes).
package patch

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/locate"
	"github.com/f-secure-foundry/armory-keyrom/internal/rom"
)

// DecoyPolicy defines the content of slots not returned at the read-back
// address.
type DecoyPolicy int

const (
	// Decoy overwrites every non-live slot with a random constant table, so
	// that the four LUTs of a bit carry tables of identical shape.
	Decoy DecoyPolicy = iota
	// Retain leaves non-live slots at their placeholder value.
	Retain
)

func (p DecoyPolicy) String() string {
	switch p {
	case Decoy:
		return "decoy"
	case Retain:
		return "retain"
	default:
		return fmt.Sprintf("DecoyPolicy(%d)", int(p))
	}
}

// ParseDecoyPolicy parses a policy name.
func ParseDecoyPolicy(s string) (p DecoyPolicy, err error) {
	switch s {
	case "decoy", "":
		return Decoy, nil
	case "retain":
		return Retain, nil
	default:
		return p, fmt.Errorf("invalid decoy policy %q", s)
	}
}

// Policy defines how the secret is encoded.
type Policy struct {
	// canonical read-back address, its high bits select the live slot
	Address uint8
	// content of the non-live slots
	Decoys DecoyPolicy
}

// Entry represents the replacement of a LUT INIT word.
type Entry struct {
	// offset from the start of the image
	Offset int64
	// INIT value in image byte order
	Value [8]byte
}

// PatchSet represents the edits which provision an image, ordered by offset.
type PatchSet struct {
	LedgerDigest [sha256.Size]byte
	ImageDigest  [sha256.Size]byte

	Entries []Entry
}

// Wipe overwrites all entry values.
func (ps *PatchSet) Wipe() {
	for i := range ps.Entries {
		Wipe(ps.Entries[i].Value[:])
	}
}

// Patcher turns a secret into a patch set for a located image.
type Patcher struct {
	Policy Policy
	// image byte order of LUT INIT words, defaults to big-endian
	Order binary.ByteOrder
	// decoy table source, defaults to crypto/rand
	Entropy io.Reader
}

func (p *Patcher) order() binary.ByteOrder {
	if p.Order == nil {
		return binary.BigEndian
	}

	return p.Order
}

func checkMap(l *ledger.Ledger, m *locate.OffsetMap, imageDigest [sha256.Size]byte) (err error) {
	if err = l.Validate(); err != nil {
		return
	}

	if m == nil {
		return fmt.Errorf("%w: no offset map", ErrStaleOffsetMap)
	}

	if m.LedgerDigest != l.Digest() {
		return fmt.Errorf("%w: built from ledger %x", ErrStaleOffsetMap, m.LedgerDigest)
	}

	if m.ImageDigest != imageDigest {
		return fmt.Errorf("%w: built from image %x", ErrStaleOffsetMap, m.ImageDigest)
	}

	return
}

// encode builds the patch set once every touched cell is known to have an
// offset. The fill function receives the tables of a bit and returns which
// slots must be written, the tables are wiped after encoding.
func (p *Patcher) encode(l *ledger.Ledger, m *locate.OffsetMap, touched func(bit int, slot int) bool, fill func(bit int, t *[rom.Slots]rom.Table) error) (ps *PatchSet, err error) {
	for bit := 0; bit < l.Bits; bit++ {
		for slot := 0; slot < rom.Slots; slot++ {
			if !touched(bit, slot) {
				continue
			}

			if _, ok := m.Offset(ledger.CellID{Bit: bit, Slot: slot}); !ok {
				return nil, &MissingOffsetEntryError{Bit: bit, Slot: slot}
			}
		}
	}

	ps = &PatchSet{
		LedgerDigest: m.LedgerDigest,
		ImageDigest:  m.ImageDigest,
	}

	defer func() {
		if err != nil {
			ps.Wipe()
			ps = nil
		}
	}()

	order := p.order()
	var t [rom.Slots]rom.Table

	defer func() {
		t = [rom.Slots]rom.Table{}
	}()

	for bit := 0; bit < l.Bits; bit++ {
		if err = fill(bit, &t); err != nil {
			return
		}

		for slot := 0; slot < rom.Slots; slot++ {
			if !touched(bit, slot) {
				continue
			}

			off, _ := m.Offset(ledger.CellID{Bit: bit, Slot: slot})

			e := Entry{Offset: off}
			order.PutUint64(e.Value[:], uint64(t[slot]))

			ps.Entries = append(ps.Entries, e)
		}

		t = [rom.Slots]rom.Table{}
	}

	sort.Slice(ps.Entries, func(i, j int) bool {
		return ps.Entries[i].Offset < ps.Entries[j].Offset
	})

	return
}

// Patch computes the patch set which makes the read-back of every ROM bit at
// the policy address return the corresponding key bit. The key length is
// checked before anything else, no patch set is returned on error. The key
// is not wiped, this is left to the caller.
func (p *Patcher) Patch(l *ledger.Ledger, m *locate.OffsetMap, imageDigest [sha256.Size]byte, key SecretKey) (ps *PatchSet, err error) {
	if len(key) != l.Bits {
		return nil, &KeyLengthMismatchError{Want: l.Bits, Got: len(key)}
	}

	if err = key.Validate(); err != nil {
		return
	}

	if err = checkMap(l, m, imageDigest); err != nil {
		return
	}

	_, live := rom.Decode(p.Policy.Address)
	decoys := p.Policy.Decoys == Decoy

	entropy := p.Entropy

	if entropy == nil {
		entropy = rand.Reader
	}

	touched := func(bit int, slot int) bool {
		return slot == live || decoys
	}

	fill := func(bit int, t *[rom.Slots]rom.Table) (err error) {
		t[live] = rom.Constant(key.Bit(bit))

		if !decoys {
			return
		}

		var r [1]byte

		if _, err = io.ReadFull(entropy, r[:]); err != nil {
			return fmt.Errorf("could not draw decoy, %v", err)
		}

		for slot := 0; slot < rom.Slots; slot++ {
			if slot != live {
				t[slot] = rom.Constant(r[0]>>slot&1 == 1)
			}
		}

		r[0] = 0

		return
	}

	return p.encode(l, m, touched, fill)
}

// ROMSize returns the length of a full ROM image for the argument width.
func ROMSize(bits int) int {
	return rom.Words * bits / 8
}

// PatchROM computes the patch set which makes every ROM address read back
// the corresponding word of data. Words are little-endian and bits/8 bytes
// long, therefore the ROM width must be a multiple of 8. Every slot is live
// in this mode and the decoy policy does not apply.
func (p *Patcher) PatchROM(l *ledger.Ledger, m *locate.OffsetMap, imageDigest [sha256.Size]byte, data []byte) (ps *PatchSet, err error) {
	if l.Bits%8 != 0 {
		return nil, fmt.Errorf("%w, ROM mode requires a byte aligned width, got %d bits", ErrKeyLengthMismatch, l.Bits)
	}

	if len(data) != ROMSize(l.Bits) {
		return nil, &KeyLengthMismatchError{Want: ROMSize(l.Bits) * 8, Got: len(data) * 8}
	}

	if err = checkMap(l, m, imageDigest); err != nil {
		return
	}

	touched := func(bit int, slot int) bool {
		return true
	}

	fill := func(bit int, t *[rom.Slots]rom.Table) error {
		for slot := 0; slot < rom.Slots; slot++ {
			t[slot] = ROMTable(data, l.Bits, bit, slot)
		}

		return nil
	}

	return p.encode(l, m, touched, fill)
}

// ROMTable returns the table of a slot which encodes bit `bit` of every ROM
// word it answers for.
func ROMTable(data []byte, bits int, bit int, slot int) (t rom.Table) {
	size := bits / 8

	for sel := uint8(0); sel < rom.TableSize; sel++ {
		w := int(rom.Address(slot, sel))
		v := data[w*size+bit/8]>>(bit%8)&1 == 1

		t = t.Set(sel, v)
	}

	return
}

// ROMWord returns the little-endian word at addr of a ROM image.
func ROMWord(data []byte, bits int, addr uint8) (w uint32) {
	size := bits / 8

	for i := 0; i < size; i++ {
		w |= uint32(data[int(addr)*size+i]) << (8 * i)
	}

	return
}
