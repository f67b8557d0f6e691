// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package softi2c implements an I²C bus master purely in software by timed
// toggling of two open drain GPIO lines.
//
// It is meant for hosts where the hardware I²C peripheral is unavailable,
// reserved, or deliberately bypassed so the wire traffic can be captured on
// an oscilloscope or logic analyzer. Start, Stop, WriteByte and ReadByte stay
// exported for exactly that purpose; regular callers use Tx and Probe, or
// hand the Bus to any driver speaking i2c.Bus.
//
// Both lines need external pull up resistors. The master only ever drives a
// line low or releases it to float; a released line reads high only when no
// other party holds it down.
//
// The clock runs at a fixed nominal 100kHz. Clock stretching is not
// honored: after releasing SCL the master assumes the pull up wins
// immediately, so a slave holding the clock low stalls the transfer without
// any timeout. There is no multi master arbitration and no bus recovery for
// a stuck line. Acknowledge bits sampled while writing are discarded by Tx;
// Probe is the way to test for a device.
//
// # Datasheet
//
// https://www.nxp.com/docs/en/user-guide/UM10204.pdf
//
// https://www.st.com/resource/en/application_note/an1045-st7-sw-implementation-of-i2c-bus-master-stmicroelectronics.pdf
package softi2c
