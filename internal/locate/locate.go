// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package locate finds where the key ROM placeholders landed within a
// compiled FPGA image.
//
// The image layout is controlled by the FPGA compiler and undocumented, the
// only assumption made is that every LUT INIT value appears as a contiguous
// 64-bit word. Each placeholder must be found exactly once, the locator never
// guesses.
package locate

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/f-secure-foundry/crucible/util"

	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
)

// maximum number of offsets recorded for an ambiguous placeholder
const maxOffsets = 8

// OffsetMap represents the location of every ledger cell within a specific
// image. It is only valid for the ledger and image it was built from.
type OffsetMap struct {
	BuildID      uuid.UUID
	LedgerDigest [sha256.Size]byte
	ImageDigest  [sha256.Size]byte

	Offsets map[ledger.CellID]int64
}

// Offset returns the image offset of a cell.
func (m *OffsetMap) Offset(id ledger.CellID) (off int64, ok bool) {
	off, ok = m.Offsets[id]
	return
}

// WriteReport prints the offset of every cell, placeholder values are not
// included.
func (m *OffsetMap) WriteReport(w io.Writer, l *ledger.Ledger) (err error) {
	if _, err = fmt.Fprintf(w, "build  %s\nledger %x\nimage  %x\n", m.BuildID, m.LedgerDigest, m.ImageDigest); err != nil {
		return
	}

	for _, c := range l.Cells {
		off, ok := m.Offset(c.CellID)

		if !ok {
			continue
		}

		if _, err = fmt.Fprintf(w, "%2d %s %-20s %#08x\n", c.Bit, ledger.SlotName(c.Slot), c.Label, off); err != nil {
			return
		}
	}

	return
}

// Needle returns the representation of a 64-bit INIT value within an image
// with the argument byte order.
func Needle(v uint64, order binary.ByteOrder) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)

	if order == binary.LittleEndian {
		buf = util.SwitchEndianness(buf)
	}

	return buf
}

// Locator searches images for ledger placeholders.
type Locator struct {
	// image byte order of LUT INIT words, defaults to big-endian
	Order binary.ByteOrder
	// unresolved cells are reported here, defaults to the standard logger
	Log logrus.FieldLogger
}

type match struct {
	n       int
	offsets []int64
}

// Locate performs a single pass over the image and returns the offset of
// every ledger cell. Unless all cells are found exactly once an *Error is
// returned, listing every unresolved cell, and no map is produced.
func (loc *Locator) Locate(l *ledger.Ledger, image []byte) (m *OffsetMap, err error) {
	order := loc.Order
	log := loc.Log

	if order == nil {
		order = binary.BigEndian
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	if err = l.Validate(); err != nil {
		return
	}

	index := make(map[uint64]int, len(l.Cells))
	// prefilter on the 16 most significant bits of each window
	var filter [1 << 10]uint64

	for i, c := range l.Cells {
		h := c.Placeholder >> 48
		filter[h>>6] |= 1 << (h & 63)
		index[c.Placeholder] = i
	}

	matches := make([]match, len(l.Cells))

	for off := 0; off+8 <= len(image); off++ {
		v := order.Uint64(image[off:])
		h := v >> 48

		if filter[h>>6]&(1<<(h&63)) == 0 {
			continue
		}

		i, ok := index[v]

		if !ok {
			continue
		}

		matches[i].n++

		if len(matches[i].offsets) < maxOffsets {
			matches[i].offsets = append(matches[i].offsets, int64(off))
		}
	}

	m = &OffsetMap{
		BuildID:      l.BuildID,
		LedgerDigest: l.Digest(),
		ImageDigest:  sha256.Sum256(image),
		Offsets:      make(map[ledger.CellID]int64, len(l.Cells)),
	}

	var unresolved []error

	for i, c := range l.Cells {
		entry := log.WithFields(logrus.Fields{
			"bit":   c.Bit,
			"slot":  ledger.SlotName(c.Slot),
			"label": c.Label,
		})

		switch res := matches[i]; res.n {
		case 1:
			m.Offsets[c.CellID] = res.offsets[0]
			entry.WithField("offset", fmt.Sprintf("%#x", res.offsets[0])).Debug("located cell")
		case 0:
			entry.Error("placeholder not found")
			unresolved = append(unresolved, &PlaceholderNotFoundError{Cell: c.CellID})
		default:
			entry.WithField("matches", res.n).Error("ambiguous placement")
			unresolved = append(unresolved, &AmbiguousPlacementError{
				Cell:    c.CellID,
				Matches: res.n,
				Offsets: res.offsets,
			})
		}
	}

	if len(unresolved) > 0 {
		return nil, &Error{Unresolved: unresolved}
	}

	return
}

// Region represents a range of differing bytes.
type Region struct {
	Offset int64
	Length int64
}

// Diff returns the byte ranges where two images differ, it is meant to find
// the LUT frames by comparing a regular build against a probe build. Any
// trailing bytes of the longer image are reported as a final region.
func Diff(a []byte, b []byte) (regions []Region) {
	n := len(a)

	if len(b) < n {
		n = len(b)
	}

	start := -1

	for i := 0; i < n; i++ {
		switch {
		case a[i] != b[i] && start < 0:
			start = i
		case a[i] == b[i] && start >= 0:
			regions = append(regions, Region{Offset: int64(start), Length: int64(i - start)})
			start = -1
		}
	}

	if start >= 0 {
		regions = append(regions, Region{Offset: int64(start), Length: int64(n - start)})
	}

	if len(a) != len(b) {
		longest := len(a)

		if len(b) > longest {
			longest = len(b)
		}

		// merge with a region ending at the common length
		if k := len(regions) - 1; k >= 0 && regions[k].Offset+regions[k].Length == int64(n) {
			regions[k].Length = int64(longest) - regions[k].Offset
		} else {
			regions = append(regions, Region{Offset: int64(n), Length: int64(longest - n)})
		}
	}

	return
}
