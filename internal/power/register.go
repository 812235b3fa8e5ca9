// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package power

import (
	"fmt"

	"github.com/f-secure-foundry/armory-keyrom/internal/tamper"
)

// Control register fields.
const (
	StateMask    = 0b11
	SelfDestruct = 1 << 7
)

// Register implements the power control register, shared between the power
// state and the destruction trigger.
type Register struct {
	Coordinator *Coordinator
	Tamper      *tamper.Driver
}

// Write handles a register write. The self-destruct bit is acted upon first,
// without taking the coordinator lock, then the state field is applied: 00
// powers off, 10 marks safe, 11 marks unsafe and 01 is only accepted while
// in Init.
//
// The state field is applied on every write, a bare SelfDestruct (0x80) also
// powers off. Callers triggering destruction without a power state change
// write Read()&StateMask | SelfDestruct.
func (r *Register) Write(v uint8) (err error) {
	if v&SelfDestruct != 0 {
		r.Tamper.Destroy()
	}

	switch s := State(v & StateMask); s {
	case Off:
		r.Coordinator.PowerOff()
	case Init:
		if cur := r.Coordinator.State(); cur != Init {
			err = fmt.Errorf("%w from %v to %v", ErrInvalidTransition, cur, s)
		}
	case RunVolatile:
		err = r.Coordinator.MarkSafe()
	case RunRetain:
		err = r.Coordinator.MarkUnsafe()
	}

	return
}

// Read returns the register value.
func (r *Register) Read() (v uint8) {
	v = uint8(r.Coordinator.State())

	if r.Tamper.Armed() {
		v |= SelfDestruct
	}

	return
}
