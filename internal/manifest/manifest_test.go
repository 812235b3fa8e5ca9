// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package manifest

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/sumdb/note"
)

func testManifest() *Manifest {
	m := &Manifest{
		Device:  "UA-MKII-0042",
		BuildID: uuid.MustParse("6f1c2b9e-0d4e-4c36-9a53-3f0a4e2d7b10"),
		Bits:    32,
		Address: 0x40,
		Decoys:  "decoy",
		Time:    time.Date(2021, 11, 29, 12, 0, 0, 0, time.UTC),
	}

	m.LedgerDigest[0] = 0xaa
	m.ImageDigest[31] = 0xbb

	return m
}

func TestSignOpen(t *testing.T) {
	skey, vkey, err := GenerateKey(rand.Reader, "keyrom-provisioning")
	require.NoError(t, err)

	signer, err := NewSigner(skey + "\n")
	require.NoError(t, err)

	verifier, err := NewVerifier(vkey)
	require.NoError(t, err)

	m := testManifest()

	msg, err := Sign(m, signer)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(msg, []byte(header+"\n")))

	res, err := Open(msg, verifier)
	require.NoError(t, err)
	assert.Equal(t, m, res)
}

func TestOpenRejectsTampering(t *testing.T) {
	skey, vkey, err := GenerateKey(rand.Reader, "keyrom-provisioning")
	require.NoError(t, err)

	signer, _ := NewSigner(skey)
	verifier, _ := NewVerifier(vkey)

	msg, err := Sign(testManifest(), signer)
	require.NoError(t, err)

	tampered := bytes.Replace(msg, []byte("UA-MKII-0042"), []byte("UA-MKII-0043"), 1)

	_, err = Open(tampered, verifier)
	assert.Error(t, err)

	_, otherV, err := GenerateKey(rand.Reader, "other")
	require.NoError(t, err)

	other, _ := NewVerifier(otherV)

	_, err = Open(msg, other)

	var unknown *note.UnverifiedNoteError
	assert.True(t, errors.As(err, &unknown), "%v", err)
}

func TestSignInvalidDevice(t *testing.T) {
	skey, _, err := GenerateKey(rand.Reader, "keyrom-provisioning")
	require.NoError(t, err)

	signer, _ := NewSigner(skey)

	m := testManifest()
	m.Device = "two words"

	_, err = Sign(m, signer)
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	valid := testManifest().Text()

	for name, text := range map[string]string{
		"empty":         "",
		"header":        strings.Replace(valid, header, "other manifest", 1),
		"unknown field": strings.Replace(valid, "decoys decoy", "policy decoy", 1),
		"bad digest":    strings.Replace(valid, "ledger aa", "ledger zz", 1),
		"bad address":   strings.Replace(valid, "address 0x40", "address 0x400", 1),
		"bad build":     strings.Replace(valid, "build 6f1c", "build xx1c", 1),
		"missing line":  strings.Replace(valid, "bits 32\n", "", 1),
		"duplicate":     strings.Replace(valid, "bits 32\n", "device UA-MKII-0043\n", 1),
		"repeated time": strings.Replace(valid, "decoys decoy\n", "time 2021-11-30T12:00:00Z\n", 1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(text)
			assert.True(t, errors.Is(err, ErrInvalidManifest), "%v", err)
		})
	}
}

func TestOpenRejectsDuplicateField(t *testing.T) {
	skey, vkey, err := GenerateKey(rand.Reader, "keyrom-provisioning")
	require.NoError(t, err)

	signer, _ := NewSigner(skey)
	verifier, _ := NewVerifier(vkey)

	// a correctly signed body with the device field given twice, the second
	// occurrence replacing the build field
	text := strings.Replace(testManifest().Text(), "build 6f1c2b9e-0d4e-4c36-9a53-3f0a4e2d7b10\n", "device UA-MKII-0043\n", 1)

	msg, err := note.Sign(&note.Note{Text: text}, signer)
	require.NoError(t, err)

	_, err = Open(msg, verifier)
	assert.True(t, errors.Is(err, ErrInvalidManifest), "%v", err)
}

func TestText(t *testing.T) {
	text := testManifest().Text()

	assert.Contains(t, text, "device UA-MKII-0042\n")
	assert.Contains(t, text, "address 0x40\n")
	assert.Contains(t, text, "time 2021-11-29T12:00:00Z\n")
	assert.Equal(t, 9, strings.Count(text, "\n"))
}
