// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config implements the provisioning profile shared by all
// provisioning steps of a product line.
package config

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/f-secure-foundry/armory-keyrom/internal/patch"
	"github.com/f-secure-foundry/armory-keyrom/internal/placement"
	"github.com/f-secure-foundry/armory-keyrom/internal/release"
	"github.com/f-secure-foundry/armory-keyrom/internal/rom"
)

// Profile represents a provisioning profile.
type Profile struct {
	// ROM word width in bits
	Bits int `yaml:"bits"`
	// image byte order of LUT INIT words, "big" or "little"
	ByteOrder string `yaml:"byte_order"`
	// canonical read-back address
	ReadBackAddress uint8 `yaml:"readback_address"`
	// non-live slot policy, "decoy" or "retain"
	Decoys string `yaml:"decoys"`
	// placement generator redraw limit
	MaxRedraws int `yaml:"max_redraws"`

	Layout LayoutProfile `yaml:"layout"`

	Release ReleaseProfile `yaml:"release"`
}

// LayoutProfile represents the physical placement of the key ROM.
type LayoutProfile struct {
	OriginX int    `yaml:"origin_x"`
	OriginY int    `yaml:"origin_y"`
	Prefix  string `yaml:"prefix"`
	PBlock  string `yaml:"pblock"`
}

// ReleaseProfile represents the location of gateware releases.
type ReleaseProfile struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// Default returns the default profile.
func Default() *Profile {
	layout := placement.DefaultLayout()

	return &Profile{
		Bits:            rom.MaxBits,
		ByteOrder:       "big",
		ReadBackAddress: 0x00,
		Decoys:          patch.Decoy.String(),
		MaxRedraws:      placement.DefaultMaxRedraws,
		Layout: LayoutProfile{
			OriginX: layout.OriginX,
			OriginY: layout.OriginY,
			Prefix:  layout.Prefix,
			PBlock:  layout.PBlock,
		},
		Release: ReleaseProfile{
			Owner: release.DefaultOwner,
			Repo:  release.DefaultRepo,
		},
	}
}

// Load parses a profile, fields not present keep their default value.
func Load(buf []byte) (p *Profile, err error) {
	p = Default()

	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)

	if err = dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid profile, %v", err)
	}

	if err = p.Validate(); err != nil {
		return nil, err
	}

	return
}

// LoadFile parses the named profile, an empty name returns the default
// profile.
func LoadFile(name string) (*Profile, error) {
	if len(name) == 0 {
		return Default(), nil
	}

	buf, err := os.ReadFile(name)

	if err != nil {
		return nil, err
	}

	return Load(buf)
}

// Validate checks the profile values.
func (p *Profile) Validate() (err error) {
	if p.Bits < 1 || p.Bits > rom.MaxBits {
		return fmt.Errorf("invalid profile, bits must be within 1 and %d", rom.MaxBits)
	}

	if _, err = p.Order(); err != nil {
		return
	}

	if _, err = p.DecoyPolicy(); err != nil {
		return
	}

	if p.MaxRedraws < 0 {
		return fmt.Errorf("invalid profile, negative max_redraws")
	}

	if len(p.Layout.Prefix) == 0 || len(p.Layout.PBlock) == 0 {
		return fmt.Errorf("invalid profile, empty layout names")
	}

	return
}

// Order returns the image byte order.
func (p *Profile) Order() (binary.ByteOrder, error) {
	switch p.ByteOrder {
	case "big", "":
		return binary.BigEndian, nil
	case "little":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("invalid profile, unknown byte order %q", p.ByteOrder)
	}
}

// DecoyPolicy returns the non-live slot policy.
func (p *Profile) DecoyPolicy() (patch.DecoyPolicy, error) {
	return patch.ParseDecoyPolicy(p.Decoys)
}

// Policy returns the patcher policy.
func (p *Profile) Policy() (policy patch.Policy, err error) {
	policy.Address = p.ReadBackAddress
	policy.Decoys, err = p.DecoyPolicy()

	return
}

// PlacementLayout returns the key ROM layout.
func (p *Profile) PlacementLayout() placement.Layout {
	return placement.Layout{
		OriginX: p.Layout.OriginX,
		OriginY: p.Layout.OriginY,
		Prefix:  p.Layout.Prefix,
		PBlock:  p.Layout.PBlock,
	}
}

// Marshal returns the profile YAML encoding.
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
