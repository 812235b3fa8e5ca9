// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tamper

// DefaultSamples is the number of consecutive active samples required by a
// zero value Debouncer.
const DefaultSamples = 8

// Debouncer filters a sampled trigger input, it only reports the input as
// active after Samples consecutive active samples. Any inactive sample
// restarts the count.
type Debouncer struct {
	// consecutive active samples required, defaults to DefaultSamples
	Samples int

	count int
}

// Sample records an input sample and returns whether the input is
// considered active.
func (d *Debouncer) Sample(active bool) bool {
	n := d.Samples

	if n <= 0 {
		n = DefaultSamples
	}

	if !active {
		d.count = 0
		return false
	}

	if d.count < n {
		d.count++
	}

	return d.count >= n
}
