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

	"github.com/f-secure-foundry/tamago/soc/imx6"
)

// i.MX6ULL pads routed to the FPGA carrier
const (
	// destruction output (CSI_DATA00, GPIO4_IO21)
	IOMUXC_SW_MUX_CTL_PAD_CSI_DATA00 = 0x020e01e4
	IOMUXC_SW_PAD_CTL_PAD_CSI_DATA00 = 0x020e0470
	TAMPER_OUT                       = 21

	// enclosure switch input (CSI_DATA01, GPIO4_IO22)
	IOMUXC_SW_MUX_CTL_PAD_CSI_DATA01 = 0x020e01e8
	IOMUXC_SW_PAD_CTL_PAD_CSI_DATA01 = 0x020e0474
	TAMPER_IN                        = 22

	// shutdown request input (CSI_DATA02, GPIO4_IO23)
	IOMUXC_SW_MUX_CTL_PAD_CSI_DATA02 = 0x020e01ec
	IOMUXC_SW_PAD_CTL_PAD_CSI_DATA02 = 0x020e0478
	SHUTDOWN_IN                      = 23

	GPIO_INSTANCE = 4
)

// Pad control for inputs: hysteresis, 100K pull-up, so that an
// unconnected line reads high (enclosure closed, no shutdown request).
const (
	PAD_CTL_HYS         = 1 << 16
	PAD_CTL_PUS_100K_UP = 0b10 << 14
	PAD_CTL_PUE         = 1 << 13
	PAD_CTL_PKE         = 1 << 12

	INPUT_PAD_CTL = PAD_CTL_HYS | PAD_CTL_PUS_100K_UP | PAD_CTL_PUE | PAD_CTL_PKE
)

// gpioPin drives a SoC GPIO as tamper line, it implements tamper.Pin.
type gpioPin struct {
	gpio *imx6.GPIO
}

func newGPIOPin(num int, mux uint32, ctl uint32) (p *gpioPin, err error) {
	gpio, err := imx6.NewGPIO(num, GPIO_INSTANCE, mux, ctl)

	if err != nil {
		return nil, fmt.Errorf("could not configure GPIO%d_IO%d, %v", GPIO_INSTANCE, num, err)
	}

	return &gpioPin{gpio: gpio}, nil
}

// newInputPin configures a GPIO as input with pull-up.
func newInputPin(num int, mux uint32, ctl uint32) (p *gpioPin, err error) {
	if p, err = newGPIOPin(num, mux, ctl); err != nil {
		return
	}

	pad, err := imx6.NewPad(mux, ctl, 0)

	if err != nil {
		return nil, fmt.Errorf("could not configure pad for GPIO%d_IO%d, %v", GPIO_INSTANCE, num, err)
	}

	pad.Ctl(INPUT_PAD_CTL)
	p.gpio.In()

	return
}

// Float releases the line by switching it to input.
func (p *gpioPin) Float() {
	p.gpio.In()
}

// Drive sets the output level before enabling the output, so that the line
// never glitches to the opposite level.
func (p *gpioPin) Drive(high bool) {
	if high {
		p.gpio.High()
	} else {
		p.gpio.Low()
	}

	p.gpio.Out()
}

func (p *gpioPin) Value() bool {
	return p.gpio.Value()
}
