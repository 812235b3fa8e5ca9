// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/f-secure-foundry/armory-keyrom/internal/power"
	"github.com/f-secure-foundry/armory-keyrom/internal/tamper"

	"github.com/f-secure-foundry/tamago/soc/imx6"

	"github.com/f-secure-foundry/tamago/board/f-secure/usbarmory/mark-two"
)

const pollInterval = 10 * time.Millisecond

func init() {
	if err := imx6.SetARMFreq(900); err != nil {
		panic(fmt.Sprintf("WARNING: error setting ARM frequency: %v\n", err))
	}
}

func main() {
	usbarmory.LED("blue", false)
	usbarmory.LED("white", false)

	banner()

	out, err := newGPIOPin(TAMPER_OUT, IOMUXC_SW_MUX_CTL_PAD_CSI_DATA00, IOMUXC_SW_PAD_CTL_PAD_CSI_DATA00)

	if err != nil {
		log.Fatal(err)
	}

	// the driver floats the line before anything else
	driver := tamper.New(out, tamper.ActiveHigh)

	enclosure, err := newInputPin(TAMPER_IN, IOMUXC_SW_MUX_CTL_PAD_CSI_DATA01, IOMUXC_SW_PAD_CTL_PAD_CSI_DATA01)

	if err != nil {
		log.Fatal(err)
	}

	shutdown, err := newInputPin(SHUTDOWN_IN, IOMUXC_SW_MUX_CTL_PAD_CSI_DATA02, IOMUXC_SW_PAD_CTL_PAD_CSI_DATA02)

	if err != nil {
		log.Fatal(err)
	}

	reg := &power.Register{
		Coordinator: power.NewCoordinator(),
		Tamper:      driver,
	}

	reg.Coordinator.Reset()
	reg.Coordinator.ReleaseReset()

	if err = reg.Coordinator.InitComplete(); err != nil {
		log.Fatal(err)
	}

	logState(reg)

	go stateFeedback(reg)

	monitor(reg, enclosure, shutdown)
}

// monitor polls the board inputs and turns them into control register
// writes. An enclosure input held low for tamper.DefaultSamples consecutive
// polls sets the self-destruct bit while preserving the state field, the
// shutdown request (active low, debounced alike) marks retained memory as no
// longer needed.
func monitor(reg *power.Register, enclosure *gpioPin, shutdown *gpioPin) {
	var reported bool
	var open, request tamper.Debouncer

	for {
		if open.Sample(!enclosure.Value()) {
			err := reg.Write(reg.Read()&power.StateMask | power.SelfDestruct)

			if !reported {
				log.Printf("enclosure open, destruction triggered")
				reported = true
			}

			if err != nil {
				log.Printf("power state request refused, %v", err)
			}
		}

		if request.Sample(!shutdown.Value()) && !reg.Coordinator.SafeToShutdown() {
			if err := reg.Write(uint8(power.RunVolatile)); err != nil {
				log.Printf("shutdown request refused, %v", err)
			} else {
				logState(reg)
			}
		}

		runtime.Gosched()
		time.Sleep(pollInterval)
	}
}

// stateFeedback blinks the blue LED while the device is not safe to shut
// down and turns on the white LED once destruction has been triggered.
func stateFeedback(reg *power.Register) {
	var on bool

	for {
		v := reg.Read()

		if v&power.SelfDestruct != 0 {
			usbarmory.LED("white", true)
		}

		if power.State(v&power.StateMask) == power.RunVolatile {
			on = true
		} else {
			on = !on
		}

		usbarmory.LED("blue", on)

		runtime.Gosched()
		time.Sleep(500 * time.Millisecond)
	}
}
