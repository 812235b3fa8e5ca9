// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package tamper implements the irreversible destruction of battery-retained
// key storage.
//
// The destruction output is left floating (Hi-Z) until requested, a driven
// idle level is more susceptible to being flipped by a power glitch. Once
// requested the output is driven for good, only a physical power cycle of
// the circuit returns it to idle.
package tamper

import (
	"sync/atomic"
)

// State represents the destruction latch.
type State uint32

const (
	// Idle is the power-on state, the output is not driven.
	Idle State = iota
	// Armed indicates that the output is asserted.
	Armed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	default:
		return "invalid"
	}
}

// Polarity represents the output level which triggers destruction.
type Polarity bool

const (
	ActiveLow  Polarity = false
	ActiveHigh Polarity = true
)

// Pin represents the destruction output.
type Pin interface {
	// Float releases the output (high impedance).
	Float()
	// Drive sets the output level.
	Drive(high bool)
}

// Driver controls the destruction output.
type Driver struct {
	pin      Pin
	polarity Polarity
	state    uint32
}

// New returns a driver for the argument pin, which is floated.
func New(pin Pin, polarity Polarity) *Driver {
	pin.Float()

	return &Driver{
		pin:      pin,
		polarity: polarity,
	}
}

// Destroy asserts the destruction output. It never blocks on other
// components and can be called any number of times, every call re-asserts
// the output.
func (d *Driver) Destroy() {
	atomic.CompareAndSwapUint32(&d.state, uint32(Idle), uint32(Armed))
	d.pin.Drive(bool(d.polarity))
}

// State returns the current latch state.
func (d *Driver) State() State {
	return State(atomic.LoadUint32(&d.state))
}

// Armed returns whether destruction has been requested.
func (d *Driver) Armed() bool {
	return d.State() == Armed
}
