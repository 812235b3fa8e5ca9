// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tamper

import (
	"sync"
)

// Level represents the electrical state of a pin.
type Level int

const (
	HiZ Level = iota
	Low
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return "hi-z"
	}
}

// MemPin records the levels applied to a pin, for use without hardware.
type MemPin struct {
	sync.Mutex

	level   Level
	history []Level
}

func (p *MemPin) set(l Level) {
	p.Lock()
	defer p.Unlock()

	p.level = l
	p.history = append(p.history, l)
}

// Float implements Pin.
func (p *MemPin) Float() {
	p.set(HiZ)
}

// Drive implements Pin.
func (p *MemPin) Drive(high bool) {
	if high {
		p.set(High)
	} else {
		p.set(Low)
	}
}

// Level returns the current pin level.
func (p *MemPin) Level() Level {
	p.Lock()
	defer p.Unlock()

	return p.level
}

// History returns every level applied to the pin.
func (p *MemPin) History() []Level {
	p.Lock()
	defer p.Unlock()

	return append([]Level{}, p.history...)
}
