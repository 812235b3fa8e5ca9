// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package power

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/armory-keyrom/internal/tamper"
)

func TestLifecycle(t *testing.T) {
	c := NewCoordinator()

	assert.Equal(t, Off, c.State())
	assert.False(t, c.RetentionValid())

	c.Reset()
	assert.Equal(t, Init, c.State())
	assert.False(t, c.RetentionValid())

	c.ReleaseReset()
	assert.True(t, c.RetentionValid())

	require.NoError(t, c.InitComplete())
	assert.Equal(t, RunRetain, c.State())
	assert.True(t, c.RetentionValid())
	assert.False(t, c.SafeToShutdown())

	require.NoError(t, c.MarkSafe())
	assert.Equal(t, RunVolatile, c.State())
	assert.False(t, c.RetentionValid())
	assert.True(t, c.SafeToShutdown())

	require.NoError(t, c.MarkUnsafe())
	assert.Equal(t, RunRetain, c.State())

	c.PowerOff()
	assert.Equal(t, Off, c.State())
	assert.False(t, c.RetentionValid())
}

func TestInitCompleteReleasesReset(t *testing.T) {
	c := NewCoordinator()
	c.Reset()

	require.NoError(t, c.InitComplete())
	assert.True(t, c.RetentionValid())
}

func TestResetFromAnyState(t *testing.T) {
	c := NewCoordinator()
	c.Reset()
	require.NoError(t, c.InitComplete())
	require.NoError(t, c.MarkSafe())

	c.Reset()
	assert.Equal(t, Init, c.State())
	assert.False(t, c.RetentionValid())
}

func TestInvalidTransitions(t *testing.T) {
	for name, tt := range map[string]struct {
		setup func(c *Coordinator)
		op    func(c *Coordinator) error
	}{
		"init complete while off": {
			func(c *Coordinator) {},
			(*Coordinator).InitComplete,
		},
		"init complete while running": {
			func(c *Coordinator) { c.Reset(); c.InitComplete() },
			(*Coordinator).InitComplete,
		},
		"mark safe while off": {
			func(c *Coordinator) {},
			(*Coordinator).MarkSafe,
		},
		"mark safe during init": {
			func(c *Coordinator) { c.Reset() },
			(*Coordinator).MarkSafe,
		},
		"mark unsafe during init": {
			func(c *Coordinator) { c.Reset() },
			(*Coordinator).MarkUnsafe,
		},
		"mark unsafe while off": {
			func(c *Coordinator) {},
			(*Coordinator).MarkUnsafe,
		},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewCoordinator()
			tt.setup(c)
			before := c.State()

			err := tt.op(c)

			assert.True(t, errors.Is(err, ErrInvalidTransition), "%v", err)
			assert.Equal(t, before, c.State())
		})
	}
}

func TestMarkIdempotent(t *testing.T) {
	c := NewCoordinator()
	c.Reset()
	require.NoError(t, c.InitComplete())

	assert.NoError(t, c.MarkUnsafe())
	assert.NoError(t, c.MarkSafe())
	assert.NoError(t, c.MarkSafe())
	assert.Equal(t, RunVolatile, c.State())
}

func newRegister() (*Register, *tamper.MemPin) {
	pin := &tamper.MemPin{}

	return &Register{
		Coordinator: NewCoordinator(),
		Tamper:      tamper.New(pin, tamper.ActiveHigh),
	}, pin
}

func TestRegister(t *testing.T) {
	r, pin := newRegister()

	r.Coordinator.Reset()
	assert.Equal(t, uint8(0b01), r.Read())

	// writing the reset value during init is accepted
	assert.NoError(t, r.Write(0b01))

	require.NoError(t, r.Coordinator.InitComplete())
	assert.Equal(t, uint8(0b11), r.Read())

	require.NoError(t, r.Write(0b10))
	assert.Equal(t, RunVolatile, r.Coordinator.State())
	assert.Equal(t, uint8(0b10), r.Read())

	require.NoError(t, r.Write(0b11))
	assert.Equal(t, RunRetain, r.Coordinator.State())

	assert.True(t, errors.Is(r.Write(0b01), ErrInvalidTransition))
	assert.Equal(t, tamper.HiZ, pin.Level())

	require.NoError(t, r.Write(0b00))
	assert.Equal(t, Off, r.Coordinator.State())
}

func TestRegisterSelfDestruct(t *testing.T) {
	r, pin := newRegister()

	r.Coordinator.Reset()
	require.NoError(t, r.Coordinator.InitComplete())

	// destruction is not blocked by the retain state
	require.NoError(t, r.Write(SelfDestruct|uint8(RunRetain)))

	assert.True(t, r.Tamper.Armed())
	assert.Equal(t, tamper.High, pin.Level())
	assert.Equal(t, uint8(SelfDestruct|0b11), r.Read())

	// an invalid state request still arms the driver
	r, pin = newRegister()

	err := r.Write(SelfDestruct | uint8(RunVolatile))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, r.Tamper.Armed())
	assert.Equal(t, tamper.High, pin.Level())
}

func TestRegisterSelfDestructStateField(t *testing.T) {
	r, pin := newRegister()

	r.Coordinator.Reset()
	require.NoError(t, r.Coordinator.InitComplete())
	require.Equal(t, RunRetain, r.Coordinator.State())

	// the state field is preserved from a read
	require.NoError(t, r.Write(r.Read()&StateMask|SelfDestruct))

	assert.True(t, r.Tamper.Armed())
	assert.Equal(t, RunRetain, r.Coordinator.State())

	// a bare self-destruct carries state 00
	r, pin = newRegister()

	r.Coordinator.Reset()
	require.NoError(t, r.Coordinator.InitComplete())

	require.NoError(t, r.Write(SelfDestruct))

	assert.True(t, r.Tamper.Armed())
	assert.Equal(t, tamper.High, pin.Level())
	assert.Equal(t, Off, r.Coordinator.State())
	assert.Equal(t, uint8(SelfDestruct), r.Read())
}

func TestRegisterSelfDestructWhileLocked(t *testing.T) {
	r, pin := newRegister()

	r.Coordinator.Reset()
	require.NoError(t, r.Coordinator.InitComplete())

	// a wedged component holding the coordinator
	r.Coordinator.mu.Lock()

	done := make(chan error)

	go func() {
		done <- r.Write(SelfDestruct | uint8(RunRetain))
	}()

	assert.Eventually(t, r.Tamper.Armed, time.Second, time.Millisecond)
	assert.Equal(t, tamper.High, pin.Level())

	r.Coordinator.mu.Unlock()

	assert.NoError(t, <-done)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "run (retain)", RunRetain.String())
	assert.Equal(t, "off", Off.String())
}
