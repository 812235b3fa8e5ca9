// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package patch

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/f-secure-foundry/armory-keyrom/internal/atomicfile"
)

const (
	magic        = "keyrom patch v1"
	ledgerHeader = "ledger"
	imageHeader  = "image"
)

// ErrInvalidPatchSet is returned when a patch set file is malformed.
var ErrInvalidPatchSet = errors.New("invalid patch set")

// encodedSize returns the exact length of the serialized patch set.
func (ps *PatchSet) encodedSize() (n int) {
	n += len("# " + magic + "\n")
	n += len("# "+ledgerHeader+" \n") + 2*sha256.Size
	n += len("# "+imageHeader+" \n") + 2*sha256.Size

	for _, e := range ps.Entries {
		off := len(strconv.FormatInt(e.Offset, 16))

		if off < 8 {
			off = 8
		}

		n += off + 1 + 2*len(e.Value) + 1
	}

	return
}

// encode serializes the patch set into buf, which is grown once upfront so
// that no partial copies of the entries are left in released memory.
func (ps *PatchSet) encode(buf *bytes.Buffer) {
	buf.Grow(ps.encodedSize())

	fmt.Fprintf(buf, "# %s\n", magic)
	fmt.Fprintf(buf, "# %s %x\n", ledgerHeader, ps.LedgerDigest)
	fmt.Fprintf(buf, "# %s %x\n", imageHeader, ps.ImageDigest)

	for _, e := range ps.Entries {
		fmt.Fprintf(buf, "%08x %x\n", e.Offset, e.Value)
	}
}

// Write serializes the patch set, one entry per line.
func (ps *PatchSet) Write(w io.Writer) (err error) {
	buf := new(bytes.Buffer)

	defer func() {
		Wipe(buf.Bytes())
	}()

	ps.encode(buf)
	_, err = w.Write(buf.Bytes())

	return
}

// WriteFile atomically persists the patch set to the named file, which is
// only readable by its owner.
func (ps *PatchSet) WriteFile(name string) (err error) {
	buf := new(bytes.Buffer)

	defer func() {
		Wipe(buf.Bytes())
	}()

	ps.encode(buf)

	return atomicfile.WriteFile(name, buf.Bytes(), 0600)
}

func parseDigest(s string) (d [sha256.Size]byte, err error) {
	buf, err := hex.DecodeString(s)

	if err != nil {
		return
	}

	if len(buf) != sha256.Size {
		return d, fmt.Errorf("digest is %d bytes", len(buf))
	}

	copy(d[:], buf)

	return
}

func parseEntry(line string) (e Entry, err error) {
	fields := strings.Fields(line)

	if len(fields) != 2 {
		return e, fmt.Errorf("expected 2 fields, got %d", len(fields))
	}

	if e.Offset, err = strconv.ParseInt(fields[0], 16, 64); err != nil {
		return
	}

	if len(fields[1]) != 2*len(e.Value) {
		return e, errors.New("value is not 64 bits")
	}

	_, err = hex.Decode(e.Value[:], []byte(fields[1]))

	return
}

// ReadPatchSet parses a patch set, entries must be in ascending offset order
// without overlaps.
func ReadPatchSet(r io.Reader) (ps *PatchSet, err error) {
	var haveMagic, haveLedger, haveImage bool

	ps = &PatchSet{}
	scanner := bufio.NewScanner(r)
	n := 0

	invalid := func(format string, a ...interface{}) (*PatchSet, error) {
		ps.Wipe()
		return nil, fmt.Errorf("%w: %s", ErrInvalidPatchSet, fmt.Sprintf(format, a...))
	}

	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())

		if len(line) == 0 {
			continue
		}

		if strings.HasPrefix(line, "#") {
			header := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			fields := strings.Fields(header)

			switch {
			case header == magic:
				haveMagic = true
			case len(fields) == 2 && fields[0] == ledgerHeader:
				if ps.LedgerDigest, err = parseDigest(fields[1]); err != nil {
					return invalid("line %d: %v", n, err)
				}
				haveLedger = true
			case len(fields) == 2 && fields[0] == imageHeader:
				if ps.ImageDigest, err = parseDigest(fields[1]); err != nil {
					return invalid("line %d: %v", n, err)
				}
				haveImage = true
			}

			continue
		}

		if !haveMagic {
			return invalid("missing header")
		}

		e, err := parseEntry(line)

		if err != nil {
			return invalid("line %d: %v", n, err)
		}

		if k := len(ps.Entries); k > 0 && e.Offset < ps.Entries[k-1].Offset+int64(len(e.Value)) {
			return invalid("line %d: offset %#x out of order", n, e.Offset)
		}

		ps.Entries = append(ps.Entries, e)
	}

	if err = scanner.Err(); err != nil {
		ps.Wipe()
		return nil, err
	}

	switch {
	case !haveMagic:
		return invalid("missing header")
	case !haveLedger:
		return invalid("missing ledger digest")
	case !haveImage:
		return invalid("missing image digest")
	}

	return
}

// ReadPatchSetFile parses the named patch set file.
func ReadPatchSetFile(name string) (ps *PatchSet, err error) {
	f, err := os.Open(name)

	if err != nil {
		return
	}
	defer f.Close()

	return ReadPatchSet(f)
}
