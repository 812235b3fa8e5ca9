// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package placement

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/f-secure-foundry/armory-keyrom/assets"
	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
)

// LUT input to physical pin mapping, locking it keeps the INIT bit ordering
// identical to the select input ordering.
const lockPins = "{I5:A6 I4:A5 I3:A4 I2:A3 I1:A2 I0:A1}"

func splitLabel(c ledger.Cell) (site string, bel string, err error) {
	parts := strings.Split(c.Label, "/")

	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		err = fmt.Errorf("%v has malformed label %q", c.CellID, c.Label)
		return
	}

	return parts[0], parts[1], nil
}

// WriteConstraints emits the Tcl/XDC commands which initialize every cell
// with its placeholder, pin it to its ledger location and prevent the
// compiler from optimizing, merging or relocating it.
func WriteConstraints(w io.Writer, l *ledger.Ledger, layout Layout) (err error) {
	if err = l.Validate(); err != nil {
		return
	}

	buf := new(bytes.Buffer)

	fmt.Fprintf(buf, "# keyrom constraints, build %s\n", l.BuildID)

	for _, c := range l.Cells {
		site, bel, err := splitLabel(c)

		if err != nil {
			return err
		}

		cell := fmt.Sprintf("[get_cells %s]", layout.CellName(c.Bit, c.Slot))

		fmt.Fprintf(buf, "set_property INIT 64'h%016X %s\n", c.Placeholder, cell)
		fmt.Fprintf(buf, "set_property LOC %s %s\n", site, cell)
		fmt.Fprintf(buf, "set_property BEL %s %s\n", bel, cell)
		fmt.Fprintf(buf, "set_property LOCK_PINS %s %s\n", lockPins, cell)
		fmt.Fprintf(buf, "set_property DONT_TOUCH true %s\n", cell)
		fmt.Fprintf(buf, "set_property KEEP true %s\n", cell)
		fmt.Fprintf(buf, "set_property IS_LOC_FIXED true %s\n", cell)
		fmt.Fprintf(buf, "set_property IS_BEL_FIXED true %s\n", cell)
	}

	fmt.Fprintf(buf, "create_pblock %s\n", layout.PBlock)
	fmt.Fprintf(buf, "resize_pblock [get_pblocks %s] -add {%s}\n", layout.PBlock, layout.Range(l.Bits))
	fmt.Fprintf(buf, "add_cells_to_pblock [get_pblocks %s] [get_cells %s*]\n", layout.PBlock, layout.Prefix)

	_, err = w.Write(buf.Bytes())

	return
}

// WriteProbeConstraints emits the commands which rebuild an already routed
// design with every cell set to assets.ProbeINIT, the resulting probe image
// can be diffed against the regular one to find the LUT frames.
func WriteProbeConstraints(w io.Writer, l *ledger.Ledger, layout Layout, probeImage string) (err error) {
	if err = l.Validate(); err != nil {
		return
	}

	buf := new(bytes.Buffer)

	fmt.Fprintf(buf, "# keyrom probe constraints, build %s\n", l.BuildID)

	for _, c := range l.Cells {
		fmt.Fprintf(buf, "set_property INIT 64'h%016X [get_cells %s]\n", assets.ProbeINIT, layout.CellName(c.Bit, c.Slot))
	}

	fmt.Fprintf(buf, "write_bitstream -bin_file -force %s\n", probeImage)

	_, err = w.Write(buf.Bytes())

	return
}
