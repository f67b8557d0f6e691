// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds3231 controls a Maxim DS3231 real time clock over I²C.
//
// The DS3231 keeps wall clock time with no notion of a time zone. SetTime
// stores the calendar fields of the given time exactly as presented and Now
// returns them stamped UTC; pick the zone before writing and after reading.
//
// The device also exposes the die temperature its oscillator compensation
// runs on, with a resolution of 0.25°C.
//
// Every register is fetched in its own bus transaction, so the driver works
// on masters that cannot acknowledge multi byte reads. Time registers are
// re-read for coherency when the seconds counter ticks mid fetch.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS3231.pdf
package ds3231
