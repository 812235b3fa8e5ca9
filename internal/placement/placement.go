// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package placement generates the key ROM cells of a new build: a random
// placeholder INIT value for every redundant LUT, pinned to a unique physical
// site, along with the constraints which prevent the FPGA compiler from
// moving, merging or optimizing the cells away.
package placement

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/f-secure-foundry/armory-keyrom/assets"
	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/rom"
)

// DefaultMaxRedraws bounds the number of rejected placeholder draws in a
// single generation run.
const DefaultMaxRedraws = 64

// HKDF info string for seeded placeholder generation.
const seedInfo = "keyrom placement"

// ErrDuplicatePlaceholder is returned when the entropy source keeps yielding
// placeholders which collide with previous draws.
var ErrDuplicatePlaceholder = errors.New("duplicate placeholder")

// Generator creates the ledger of a new key ROM build.
type Generator struct {
	// ROM word width, defaults to rom.MaxBits
	Bits int
	// placeholder source, defaults to crypto/rand
	Entropy io.Reader
	// physical placement
	Layout Layout
	// rejected draws allowed before giving up, defaults to DefaultMaxRedraws
	MaxRedraws int

	// Redraws counts the rejected draws of the last Generate call.
	Redraws int
}

// SeededEntropy returns a deterministic entropy source, derived from seed
// with HKDF-SHA256, for reproducible builds. The source is limited to 8160
// bytes, well above what a 32-bit ROM requires.
func SeededEntropy(seed []byte) io.Reader {
	return hkdf.New(sha256.New, seed, nil, []byte(seedInfo))
}

// rejected reports whether a placeholder is not distinctive enough to be
// located within an image.
func rejected(v uint64) bool {
	return v == 0 || v == ^uint64(0) || v == assets.ProbeINIT
}

// Generate draws a placeholder for every cell, redrawing duplicates, and
// returns the resulting ledger. The ledger must be persisted before the
// design is compiled.
func (g *Generator) Generate() (l *ledger.Ledger, err error) {
	bits := g.Bits
	entropy := g.Entropy
	maxRedraws := g.MaxRedraws

	if bits == 0 {
		bits = rom.MaxBits
	}

	if bits < 1 || bits > rom.MaxBits {
		return nil, fmt.Errorf("invalid ROM width %d", bits)
	}

	if entropy == nil {
		entropy = rand.Reader
	}

	if maxRedraws == 0 {
		maxRedraws = DefaultMaxRedraws
	}

	layout := g.Layout

	if len(layout.Prefix) == 0 {
		layout = DefaultLayout()
	}

	g.Redraws = 0
	seen := make(map[uint64]bool, bits*rom.Slots)
	buf := make([]byte, 8)

	l = &ledger.Ledger{
		Bits:  bits,
		Cells: make([]ledger.Cell, 0, bits*rom.Slots),
	}

	for bit := 0; bit < bits; bit++ {
		for slot := 0; slot < rom.Slots; slot++ {
			var v uint64

			for {
				if _, err = io.ReadFull(entropy, buf); err != nil {
					return nil, fmt.Errorf("could not draw placeholder, %v", err)
				}

				v = binary.BigEndian.Uint64(buf)

				if !seen[v] && !rejected(v) {
					break
				}

				if g.Redraws++; g.Redraws > maxRedraws {
					return nil, fmt.Errorf("%w after %d redraws", ErrDuplicatePlaceholder, maxRedraws)
				}
			}

			seen[v] = true

			l.Cells = append(l.Cells, ledger.Cell{
				CellID:      ledger.CellID{Bit: bit, Slot: slot},
				Label:       layout.Label(bit, slot),
				Placeholder: v,
			})
		}
	}

	if l.BuildID, err = uuid.NewRandomFromReader(entropy); err != nil {
		return nil, fmt.Errorf("could not draw build identifier, %v", err)
	}

	if err = l.Validate(); err != nil {
		return nil, err
	}

	return
}
