// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package testutil provides synthetic key ROM builds for tests.
package testutil

import (
	"encoding/binary"

	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/placement"
)

// Xilinx configuration sync word, used as synthetic image header.
var syncWord = []byte{0xff, 0xff, 0xff, 0xff, 0xaa, 0x99, 0x55, 0x66}

// Ledger returns a deterministic ledger of the argument width.
func Ledger(bits int, seed string) *ledger.Ledger {
	g := &placement.Generator{
		Bits:    bits,
		Entropy: placement.SeededEntropy([]byte(seed)),
	}

	l, err := g.Generate()

	if err != nil {
		panic(err)
	}

	return l
}

// Image returns a synthetic compiled image embedding every ledger
// placeholder, with the argument byte order, separated by gap filler bytes.
// The offset of each cell is returned along with the image.
func Image(l *ledger.Ledger, order binary.ByteOrder, gap int) (image []byte, offsets map[ledger.CellID]int64) {
	offsets = make(map[ledger.CellID]int64, len(l.Cells))
	image = append(image, syncWord...)

	for i, c := range l.Cells {
		for j := 0; j < gap; j++ {
			image = append(image, byte(i*gap+j)&0x0f)
		}

		buf := make([]byte, 8)
		order.PutUint64(buf, c.Placeholder)

		offsets[c.CellID] = int64(len(image))
		image = append(image, buf...)
	}

	image = append(image, syncWord...)

	return
}
