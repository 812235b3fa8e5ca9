// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package manifest implements signed provisioning records, binding a device
// identifier to the ledger and image it was provisioned from.
//
// Manifests are signed notes, they never carry material derived from the
// device secret, including digests of patch sets or patched images which
// would allow brute forcing short keys.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/mod/sumdb/note"
)

const header = "keyrom provisioning manifest"

var fields = []string{"device", "build", "bits", "ledger", "image", "address", "decoys", "time"}

// ErrInvalidManifest is returned when a manifest cannot be parsed.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest represents the record of a provisioning run.
type Manifest struct {
	Device       string
	BuildID      uuid.UUID
	Bits         int
	LedgerDigest [sha256.Size]byte
	ImageDigest  [sha256.Size]byte
	Address      uint8
	Decoys       string
	Time         time.Time
}

// Text returns the manifest note body.
func (m *Manifest) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", header)
	fmt.Fprintf(&b, "device %s\n", m.Device)
	fmt.Fprintf(&b, "build %s\n", m.BuildID)
	fmt.Fprintf(&b, "bits %d\n", m.Bits)
	fmt.Fprintf(&b, "ledger %x\n", m.LedgerDigest)
	fmt.Fprintf(&b, "image %x\n", m.ImageDigest)
	fmt.Fprintf(&b, "address %#02x\n", m.Address)
	fmt.Fprintf(&b, "decoys %s\n", m.Decoys)
	fmt.Fprintf(&b, "time %s\n", m.Time.UTC().Format(time.RFC3339))

	return b.String()
}

// Sign returns the signed manifest note.
func Sign(m *Manifest, signers ...note.Signer) ([]byte, error) {
	if len(m.Device) == 0 || strings.ContainsAny(m.Device, " \t\r\n") {
		return nil, fmt.Errorf("invalid device identifier %q", m.Device)
	}

	return note.Sign(&note.Note{Text: m.Text()}, signers...)
}

// Open verifies a signed manifest note and parses its body.
func Open(msg []byte, verifiers ...note.Verifier) (m *Manifest, err error) {
	n, err := note.Open(msg, note.VerifierList(verifiers...))

	if err != nil {
		return
	}

	return Parse(n.Text)
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

// Parse parses a manifest note body.
func Parse(text string) (m *Manifest, err error) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	if len(lines) != len(fields)+1 || lines[0] != header {
		return nil, fmt.Errorf("%w: unexpected format", ErrInvalidManifest)
	}

	m = &Manifest{}
	seen := make(map[string]bool, len(fields))

	for i, line := range lines[1:] {
		key, val, ok := strings.Cut(line, " ")

		if !ok {
			return nil, fmt.Errorf("%w: line %d", ErrInvalidManifest, i+2)
		}

		if seen[key] {
			return nil, fmt.Errorf("%w: line %d: duplicate field %q", ErrInvalidManifest, i+2, key)
		}

		seen[key] = true

		switch key {
		case "device":
			m.Device = val
		case "build":
			m.BuildID, err = uuid.Parse(val)
		case "bits":
			m.Bits, err = strconv.Atoi(val)
		case "ledger":
			m.LedgerDigest, err = parseDigest(val)
		case "image":
			m.ImageDigest, err = parseDigest(val)
		case "address":
			var a uint64
			a, err = strconv.ParseUint(val, 0, 8)
			m.Address = uint8(a)
		case "decoys":
			m.Decoys = val
		case "time":
			m.Time, err = time.Parse(time.RFC3339, val)
		default:
			err = fmt.Errorf("unknown field %q", key)
		}

		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidManifest, i+2, err)
		}
	}

	for _, key := range fields {
		if !seen[key] {
			return nil, fmt.Errorf("%w: missing field %q", ErrInvalidManifest, key)
		}
	}

	return
}

// GenerateKey returns a new note signing key pair for the argument name.
func GenerateKey(rand io.Reader, name string) (skey string, vkey string, err error) {
	return note.GenerateKey(rand, name)
}

// NewSigner returns a signer for an encoded signing key.
func NewSigner(skey string) (note.Signer, error) {
	return note.NewSigner(strings.TrimSpace(skey))
}

// NewVerifier returns a verifier for an encoded verification key.
func NewVerifier(vkey string) (note.Verifier, error) {
	return note.NewVerifier(strings.TrimSpace(vkey))
}
