// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2cscan walks the 7 bit address space of an I²C bus and
// reports which addresses acknowledge, in the style of Linux's
// i2cdetect tool.
package i2cscan

import (
	"fmt"
	"io"
	"strings"
)

// First and last addresses a scan will touch. The I²C specification
// reserves 0x00-0x02 and 0x78-0x7F for special purposes like general
// call and 10 bit addressing, so probing them can confuse devices.
const (
	AddrFirst uint16 = 0x03
	AddrLast  uint16 = 0x77
)

// Prober detects a device at a 7 bit address without transferring any
// data.
//
// *softi2c.Bus implements it.
type Prober interface {
	Probe(addr uint16) (bool, error)
}

// Scan probes every address between AddrFirst and AddrLast in
// ascending order and returns the ones that acknowledged.
//
// Reserved addresses are never probed. On error the addresses found so
// far are returned along with the error.
func Scan(p Prober) ([]uint16, error) {
	var found []uint16
	for addr := AddrFirst; addr <= AddrLast; addr++ {
		ok, err := p.Probe(addr)
		if err != nil {
			return found, fmt.Errorf("i2cscan: probing address %#02x: %w", addr, err)
		}
		if ok {
			found = append(found, addr)
		}
	}
	return found, nil
}

// Fprint writes the scan result as an i2cdetect style table. Found
// addresses print as hex, absent ones as "--" and reserved ones as
// blanks:
//
//	I2C Scan - scanning I2C addresses 0x03 - 0x77
//	     0  1  2  3  4  5  6  7  8  9  A  B  C  D  E  F
//	00:          -- -- -- -- -- -- -- -- -- -- -- -- --
//	10: -- -- -- -- -- -- -- -- -- -- -- -- -- -- -- --
//	...
//	60: -- -- -- -- -- -- -- -- 68 -- -- -- -- -- -- --
//	70: -- -- -- -- -- -- -- --
func Fprint(w io.Writer, found []uint16) error {
	_, err := io.WriteString(w, table(found, false))
	return err
}

// FprintColor is Fprint with the found addresses highlighted in green
// using ANSI escape codes.
//
// On Windows, pass a writer wrapped by colorable.NewColorableStdout()
// or the escape codes will print as garbage.
func FprintColor(w io.Writer, found []uint16) error {
	_, err := io.WriteString(w, table(found, true))
	return err
}

func table(found []uint16, color bool) string {
	hits := make(map[uint16]struct{}, len(found))
	for _, a := range found {
		hits[a] = struct{}{}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I2C Scan - scanning I2C addresses 0x%02X - 0x%02X\n", AddrFirst, AddrLast)
	b.WriteString("    ")
	for i := 0; i <= 0x0F; i++ {
		fmt.Fprintf(&b, " %X ", i)
	}
	for addr := uint16(0); addr <= AddrLast; addr++ {
		if addr%16 == 0 {
			fmt.Fprintf(&b, "\n%02X: ", addr)
		}
		if addr < AddrFirst {
			b.WriteString("   ")
			continue
		}
		if _, ok := hits[addr]; ok {
			if color {
				fmt.Fprintf(&b, "\033[1;32m%02X\033[0m ", addr)
			} else {
				fmt.Fprintf(&b, "%02X ", addr)
			}
		} else {
			b.WriteString("-- ")
		}
	}
	b.WriteString("\n")
	return b.String()
}
