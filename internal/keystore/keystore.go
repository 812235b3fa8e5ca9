// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package keystore builds key ROM images holding the developer public key
// and the ROM version word.
package keystore

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/f-secure-foundry/armory-keyrom/internal/rom"
)

// ROM word layout
const (
	WordSize = 4
	Size     = rom.Words * WordSize

	// developer Ed25519 public key, 8 words
	DevKeyWord = 0x18
	// ROM version and fuse word
	VersionWord = 0xff

	DefaultVersion uint32 = 0x0001
)

// Build returns a keystore image for the argument developer key.
func Build(devKey ed25519.PublicKey, version uint32) (image []byte, err error) {
	if len(devKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid developer key size %d", len(devKey))
	}

	image = make([]byte, Size)

	copy(image[DevKeyWord*WordSize:], devKey)
	binary.LittleEndian.PutUint32(image[VersionWord*WordSize:], version)

	return
}

// ParseCertificate returns the Ed25519 public key of a PEM encoded X.509
// certificate.
func ParseCertificate(buf []byte) (pub ed25519.PublicKey, err error) {
	block, _ := pem.Decode(buf)

	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no PEM certificate found")
	}

	cert, err := x509.ParseCertificate(block.Bytes)

	if err != nil {
		return
	}

	pub, ok := cert.PublicKey.(ed25519.PublicKey)

	if !ok {
		return nil, fmt.Errorf("certificate key is %T, not Ed25519", cert.PublicKey)
	}

	return
}

func check(image []byte) error {
	if len(image) != Size {
		return fmt.Errorf("invalid keystore size %d", len(image))
	}

	return nil
}

// DevKey returns the developer key held in a keystore image.
func DevKey(image []byte) (ed25519.PublicKey, error) {
	if err := check(image); err != nil {
		return nil, err
	}

	off := DevKeyWord * WordSize

	return ed25519.PublicKey(append([]byte{}, image[off:off+ed25519.PublicKeySize]...)), nil
}

// Version returns the version word of a keystore image.
func Version(image []byte) (uint32, error) {
	if err := check(image); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(image[VersionWord*WordSize:]), nil
}
