// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package power tracks whether externally retained memory may be assumed to
// hold valid data and whether the device is safe to shut down.
//
// States use the encoding of the power control register state field:
//
//	00  off or not ready
//	01  init, the reset value, retained memory accessible once out of reset
//	10  on and safe to shut down
//	11  on and not safe to shut down
package power

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when a request is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("invalid power state transition")

// State represents the power state.
type State uint8

const (
	Off         State = 0b00
	Init        State = 0b01
	RunVolatile State = 0b10
	RunRetain   State = 0b11
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Init:
		return "init"
	case RunVolatile:
		return "run (volatile)"
	case RunRetain:
		return "run (retain)"
	default:
		return fmt.Sprintf("State(%#02b)", uint8(s))
	}
}

// Coordinator tracks the power state, driven by platform reset and init
// signals and by explicit safe/unsafe requests.
type Coordinator struct {
	mu    sync.Mutex
	state State
	reset bool
}

// NewCoordinator returns a coordinator in the Off state.
func NewCoordinator() *Coordinator {
	return &Coordinator{state: Off}
}

func (c *Coordinator) transition(from []State, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == to {
		return nil
	}

	for _, s := range from {
		if c.state == s {
			c.state = to
			return nil
		}
	}

	return fmt.Errorf("%w from %v to %v", ErrInvalidTransition, c.state, to)
}

// State returns the current power state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Reset handles assertion of the platform reset, entering Init from any
// state.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Init
	c.reset = true
}

// ReleaseReset handles deassertion of the platform reset.
func (c *Coordinator) ReleaseReset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset = false
}

// InitComplete handles completion of platform initialization, moving from
// Init to RunRetain. The reset is released if still asserted.
func (c *Coordinator) InitComplete() (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Init {
		return fmt.Errorf("%w from %v to %v", ErrInvalidTransition, c.state, RunRetain)
	}

	c.state = RunRetain
	c.reset = false

	return
}

// MarkSafe declares that retained memory no longer holds data which must
// survive, moving from RunRetain to RunVolatile.
func (c *Coordinator) MarkSafe() error {
	return c.transition([]State{RunRetain}, RunVolatile)
}

// MarkUnsafe declares that retained memory holds data which must survive,
// moving from RunVolatile to RunRetain.
func (c *Coordinator) MarkUnsafe() error {
	return c.transition([]State{RunVolatile}, RunRetain)
}

// PowerOff handles loss of power, entering Off from any state.
func (c *Coordinator) PowerOff() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Off
	c.reset = false
}

// RetentionValid returns whether consumers may assume that externally
// retained memory holds valid data, which is the case when state bit 0 is
// set outside of reset.
func (c *Coordinator) RetentionValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state&1 == 1 && !c.reset
}

// SafeToShutdown returns whether the device can lose power without loss of
// retained data.
func (c *Coordinator) SafeToShutdown() bool {
	return c.State() == RunVolatile
}
