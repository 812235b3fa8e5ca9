// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/armory-keyrom/internal/patch"
	"github.com/f-secure-foundry/armory-keyrom/internal/placement"
)

func TestDefault(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())

	assert.Equal(t, 32, p.Bits)

	order, err := p.Order()
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, order)

	policy, err := p.Policy()
	require.NoError(t, err)
	assert.Equal(t, patch.Policy{Address: 0, Decoys: patch.Decoy}, policy)

	assert.Equal(t, placement.DefaultLayout(), p.PlacementLayout())
}

func TestLoad(t *testing.T) {
	p, err := Load([]byte(`
bits: 8
byte_order: little
readback_address: 0x40
decoys: retain
layout:
  origin_x: 10
`))
	require.NoError(t, err)

	assert.Equal(t, 8, p.Bits)
	assert.Equal(t, uint8(0x40), p.ReadBackAddress)

	order, err := p.Order()
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian, order)

	policy, err := p.Policy()
	require.NoError(t, err)
	assert.Equal(t, patch.Retain, policy.Decoys)

	// unspecified fields keep their default
	assert.Equal(t, 10, p.Layout.OriginX)
	assert.Equal(t, placement.DefaultOriginY, p.Layout.OriginY)
	assert.Equal(t, placement.DefaultMaxRedraws, p.MaxRedraws)
	assert.Equal(t, "SLICE_X10Y50/A6LUT", p.PlacementLayout().Label(0, 0))
}

func TestLoadEmpty(t *testing.T) {
	p, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadRejects(t *testing.T) {
	for name, in := range map[string]string{
		"width":         "bits: 33\n",
		"zero width":    "bits: 0\n",
		"byte order":    "byte_order: middle\n",
		"policy":        "decoys: random\n",
		"address":       "readback_address: 256\n",
		"unknown field": "key: 0x1234\n",
		"redraws":       "max_redraws: -1\n",
		"prefix":        "layout:\n  prefix: \"\"\n",
		"syntax":        "bits: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	p, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	name := filepath.Join(t.TempDir(), "keyrom.yaml")

	buf, err := Default().Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(name, buf, 0600))

	p, err = LoadFile(name)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
