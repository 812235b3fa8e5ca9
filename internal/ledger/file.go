// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ledger

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/f-secure-foundry/armory-keyrom/internal/atomicfile"
)

const (
	magic       = "keyrom ledger v1"
	buildHeader = "build"
	bitsHeader  = "bits"
)

func (l *Ledger) encode(w io.Writer) {
	fmt.Fprintf(w, "# %s\n", magic)
	fmt.Fprintf(w, "# %s %s\n", buildHeader, l.BuildID)
	fmt.Fprintf(w, "# %s %d\n", bitsHeader, l.Bits)

	for _, c := range l.Cells {
		fmt.Fprintf(w, "%d %d %s %016x\n", c.Bit, c.Slot, c.Label, c.Placeholder)
	}
}

// Write serializes a valid ledger, one cell per line.
func (l *Ledger) Write(w io.Writer) (err error) {
	if err = l.Validate(); err != nil {
		return
	}

	buf := new(bytes.Buffer)
	l.encode(buf)

	_, err = w.Write(buf.Bytes())

	return
}

// WriteFile atomically persists the ledger to the named file.
func (l *Ledger) WriteFile(name string) (err error) {
	buf := new(bytes.Buffer)

	if err = l.Write(buf); err != nil {
		return
	}

	return atomicfile.WriteFile(name, buf.Bytes(), 0644)
}

// Read parses and validates a ledger.
func Read(r io.Reader) (l *Ledger, err error) {
	var haveMagic, haveBuild, haveBits bool

	l = &Ledger{}
	scanner := bufio.NewScanner(r)
	n := 0

	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())

		if len(line) == 0 {
			continue
		}

		if strings.HasPrefix(line, "#") {
			fields := strings.Fields(strings.TrimPrefix(line, "#"))

			switch {
			case strings.TrimSpace(strings.TrimPrefix(line, "#")) == magic:
				haveMagic = true
			case len(fields) == 2 && fields[0] == buildHeader:
				if l.BuildID, err = uuid.Parse(fields[1]); err != nil {
					return nil, invalid("line %d: %v", n, err)
				}
				haveBuild = true
			case len(fields) == 2 && fields[0] == bitsHeader:
				if l.Bits, err = strconv.Atoi(fields[1]); err != nil {
					return nil, invalid("line %d: %v", n, err)
				}
				haveBits = true
			}

			continue
		}

		if !haveMagic {
			return nil, invalid("missing header")
		}

		c, err := parseCell(line)

		if err != nil {
			return nil, invalid("line %d: %v", n, err)
		}

		l.Cells = append(l.Cells, c)
	}

	if err = scanner.Err(); err != nil {
		return nil, err
	}

	switch {
	case !haveMagic:
		return nil, invalid("missing header")
	case !haveBuild:
		return nil, invalid("missing build identifier")
	case !haveBits:
		return nil, invalid("missing width")
	}

	if err = l.Validate(); err != nil {
		return nil, err
	}

	return
}

func parseCell(line string) (c Cell, err error) {
	fields := strings.Fields(line)

	if len(fields) != 4 {
		return c, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	if c.Bit, err = strconv.Atoi(fields[0]); err != nil {
		return
	}

	if c.Slot, err = strconv.Atoi(fields[1]); err != nil {
		return
	}

	c.Label = fields[2]

	if len(fields[3]) != 16 {
		return c, fmt.Errorf("placeholder %q is not 64 bits", fields[3])
	}

	c.Placeholder, err = strconv.ParseUint(fields[3], 16, 64)

	return
}

// ReadFile parses and validates the named ledger file.
func ReadFile(name string) (l *Ledger, err error) {
	f, err := os.Open(name)

	if err != nil {
		return
	}
	defer f.Close()

	return Read(f)
}
