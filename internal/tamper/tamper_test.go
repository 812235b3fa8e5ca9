// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tamper

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriverIdle(t *testing.T) {
	pin := &MemPin{level: Low}
	d := New(pin, ActiveLow)

	assert.Equal(t, HiZ, pin.Level())
	assert.Equal(t, Idle, d.State())
	assert.False(t, d.Armed())
	assert.Equal(t, []Level{HiZ}, pin.History())
}

func TestDestroy(t *testing.T) {
	for _, tt := range []struct {
		polarity Polarity
		level    Level
	}{
		{ActiveLow, Low},
		{ActiveHigh, High},
	} {
		pin := &MemPin{}
		d := New(pin, tt.polarity)

		d.Destroy()

		assert.Equal(t, Armed, d.State())
		assert.Equal(t, tt.level, pin.Level())

		// idempotent
		d.Destroy()
		d.Destroy()

		assert.True(t, d.Armed())
		assert.Equal(t, tt.level, pin.Level())
		assert.Equal(t, []Level{HiZ, tt.level, tt.level, tt.level}, pin.History())
	}
}

func TestDestroyConcurrent(t *testing.T) {
	pin := &MemPin{}
	d := New(pin, ActiveLow)

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			d.Destroy()
		}()
	}

	wg.Wait()

	assert.Equal(t, Armed, d.State())
	assert.Equal(t, Low, pin.Level())
	assert.NotContains(t, pin.History()[1:], HiZ)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "armed", Armed.String())
	assert.Equal(t, "hi-z", HiZ.String())
}
