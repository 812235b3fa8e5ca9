// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package patch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSecretKey(t *testing.T) {
	k, err := ParseSecretKey([]byte{0x0d}, 4)
	require.NoError(t, err)
	assert.Equal(t, SecretKey{1, 0, 1, 1}, k)
	assert.Equal(t, uint32(0x0d), k.Word())

	k, err = ParseSecretKey([]byte{0x78, 0x56, 0x34, 0x12}, 32)
	require.NoError(t, err)
	assert.Len(t, k, 32)
	assert.Equal(t, uint32(0x12345678), k.Word())
}

func TestParseSecretKeyLength(t *testing.T) {
	_, err := ParseSecretKey([]byte{0x01, 0x00}, 4)
	assert.True(t, errors.Is(err, ErrKeyLengthMismatch))

	_, err = ParseSecretKey(nil, 32)
	assert.True(t, errors.Is(err, ErrKeyLengthMismatch))

	// bit 4 set in a 4 bit key
	_, err = ParseSecretKey([]byte{0x1d}, 4)
	assert.True(t, errors.Is(err, ErrKeyLengthMismatch))
}

func TestSecretKeyWipe(t *testing.T) {
	k := SecretKey{1, 1, 0, 1}
	k.Wipe()

	assert.Equal(t, SecretKey{0, 0, 0, 0}, k)

	ps := &PatchSet{Entries: []Entry{{Offset: 1, Value: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}}}
	ps.Wipe()

	assert.Equal(t, [8]byte{}, ps.Entries[0].Value)
	assert.Equal(t, int64(1), ps.Entries[0].Offset)
}
