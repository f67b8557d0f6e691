//go:build examples
// +build examples

// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds3231_test

import (
	"fmt"
	"log"

	"github.com/JimMerkle/go-soft-i2c/ds3231"
	"github.com/JimMerkle/go-soft-i2c/softi2c"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Example reads the clock through a bit banged bus on the Raspberry Pi
// header I²C pins, which already carry pull up resistors.
func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	scl := gpioreg.ByName("GPIO3")
	sda := gpioreg.ByName("GPIO2")
	if scl == nil || sda == nil {
		log.Fatal("pins not found, is this a Raspberry Pi?")
	}
	bus, err := softi2c.New(scl, sda, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	dev, err := ds3231.NewI2C(bus, ds3231.Addr, nil)
	if err != nil {
		log.Fatal(err)
	}
	lost, err := dev.LostPower()
	if err != nil {
		log.Fatal(err)
	}
	if lost {
		log.Print("clock lost power, the time below is not trustworthy")
	}
	now, err := dev.Now()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(now.Format("2006-01-02 15:04:05"))
}
