// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"log"
	"runtime"

	"github.com/f-secure-foundry/armory-keyrom/internal/power"
)

// initialized at compile time (-ldflags -X)
var Build string
var Revision string

func init() {
	log.SetFlags(0)
}

func banner() {
	log.Printf("armory-keyrom • %s/%s (%s) • %s %s", runtime.GOOS, runtime.GOARCH, runtime.Version(), Revision, Build)
}

func logState(reg *power.Register) {
	log.Printf("power state %v, retention valid %v, destruction armed %v",
		reg.Coordinator.State(), reg.Coordinator.RetentionValid(), reg.Tamper.Armed())
}
