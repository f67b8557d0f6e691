// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package softi2c is a container for a software I²C bus master and its
// tooling.
//
// The bus itself lives in softi2c/, the bus scanner in i2cscan/, the signal
// capture and waveform rendering in sigtrace/, and a DS3231 real time clock
// driver in ds3231/. cmd/i2cmon ties them together as an interactive monitor.
package softi2c
