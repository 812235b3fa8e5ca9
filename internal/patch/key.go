// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package patch

import (
	"fmt"
)

// SecretKey represents the device secret, one byte (0 or 1) per ROM bit.
type SecretKey []byte

// ParseSecretKey unpacks a little-endian secret of the argument width, bit i
// is taken from bit i%8 of byte i/8. Bits beyond the width must be zero.
func ParseSecretKey(buf []byte, bits int) (k SecretKey, err error) {
	if len(buf) != (bits+7)/8 {
		return nil, &KeyLengthMismatchError{Want: bits, Got: len(buf) * 8}
	}

	for i := bits; i < len(buf)*8; i++ {
		if buf[i/8]>>(i%8)&1 != 0 {
			return nil, &KeyLengthMismatchError{Want: bits, Got: i + 1}
		}
	}

	k = make(SecretKey, bits)

	for i := range k {
		k[i] = buf[i/8] >> (i % 8) & 1
	}

	return
}

// Validate checks that every key entry is a single bit.
func (k SecretKey) Validate() error {
	for i, b := range k {
		if b > 1 {
			return fmt.Errorf("key entry %d is not a bit", i)
		}
	}

	return nil
}

// Bit returns the value of key bit i.
func (k SecretKey) Bit(i int) bool {
	return k[i] == 1
}

// Word returns the key as the ROM word read back at the canonical address.
func (k SecretKey) Word() (w uint32) {
	for i := range k {
		if k.Bit(i) {
			w |= 1 << i
		}
	}

	return
}

// Wipe overwrites the key.
func (k SecretKey) Wipe() {
	for i := range k {
		k[i] = 0
	}
}

// Wipe overwrites a buffer holding secret material.
func Wipe(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
