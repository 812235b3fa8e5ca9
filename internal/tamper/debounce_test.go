// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tamper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebounceSingleGlitch(t *testing.T) {
	d := &Debouncer{Samples: 3}

	for i := 0; i < 10; i++ {
		assert.False(t, d.Sample(true))
		assert.False(t, d.Sample(false))
	}

	assert.False(t, d.Sample(true))
	assert.False(t, d.Sample(true))
	assert.False(t, d.Sample(false))
	assert.False(t, d.Sample(true))
}

func TestDebounceConsecutive(t *testing.T) {
	d := &Debouncer{Samples: 3}

	assert.False(t, d.Sample(true))
	assert.False(t, d.Sample(true))
	assert.True(t, d.Sample(true))
	assert.True(t, d.Sample(true))

	assert.False(t, d.Sample(false))
	assert.False(t, d.Sample(true))
}

func TestDebounceDefault(t *testing.T) {
	d := &Debouncer{}

	for i := 1; i < DefaultSamples; i++ {
		assert.False(t, d.Sample(true), "sample %d", i)
	}

	assert.True(t, d.Sample(true))
}
