// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package softi2ctest

import (
	"periph.io/x/conn/v3/gpio"
)

type phase int

const (
	phaseIdle phase = iota
	phaseShiftAddr
	phaseAckAddr
	phaseShiftWrite
	phaseAckWrite
	phaseShiftRead
	phaseAckRead
	phaseDone
)

// Slave is a pin level I²C device clocked purely by the observed line
// transitions. It detects START and STOP, shifts address and data bits on
// the clock edges, acknowledges its own address, records bytes written to it
// and serves bytes back during read transfers.
//
// Data and acknowledge levels are driven on falling clock edges and sampled
// on rising ones, matching a master that only changes SDA while SCL is low.
// Clock stretching is never performed.
type Slave struct {
	// Addr is the 7 bit address the device answers to.
	Addr uint16
	// AckAll makes the device acknowledge every address, which is handy for
	// scanner coverage.
	AckAll bool
	// Resp is served one byte per read transfer, in order. When exhausted
	// and Echo is set, bytes previously written to the device are served
	// oldest first; after that the released line reads as 0xFF.
	Resp []byte
	// Echo serves back written bytes once Resp is exhausted.
	Echo bool

	scl *Line
	sda *Line
	drv *Driver

	phase     phase
	shift     byte
	nbits     int
	rawAddr   byte
	matched   bool
	cur       byte
	bitOut    int
	masterAck bool
	respPos   int
	echoPos   int

	starts int
	stops  int
	addrs  []byte
	wr     []byte
	rd     []byte
}

// Attach puts the device on the two wires. It must be called exactly once,
// before any bus traffic.
func (s *Slave) Attach(scl, sda *Line) {
	s.scl = scl
	s.sda = sda
	s.drv = sda.Driver()
	sda.Watch(s.onSDA)
	scl.Watch(s.onSCL)
}

// Starts returns how many START conditions were observed.
func (s *Slave) Starts() int {
	return s.starts
}

// Stops returns how many STOP conditions were observed.
func (s *Slave) Stops() int {
	return s.stops
}

// Addresses returns the raw address bytes observed, direction bit included.
func (s *Slave) Addresses() []byte {
	return append([]byte(nil), s.addrs...)
}

// Received returns the data bytes written to the device while selected.
func (s *Slave) Received() []byte {
	return append([]byte(nil), s.wr...)
}

// Served returns the data bytes clocked out to the master.
func (s *Slave) Served() []byte {
	return append([]byte(nil), s.rd...)
}

// Reset clears the observation logs, not the configuration.
func (s *Slave) Reset() {
	s.starts = 0
	s.stops = 0
	s.addrs = nil
	s.wr = nil
	s.rd = nil
	s.respPos = 0
	s.echoPos = 0
}

// A START is SDA falling while SCL is high, a STOP is SDA rising while SCL
// is high. SDA movement while SCL is low is bit setup and means nothing.
func (s *Slave) onSDA(lvl gpio.Level) {
	if s.scl.Level() != gpio.High {
		return
	}
	if lvl == gpio.Low {
		s.starts++
		s.phase = phaseShiftAddr
		s.shift = 0
		s.nbits = 0
		s.matched = false
		return
	}
	s.stops++
	s.phase = phaseIdle
	s.matched = false
	s.drv.Drive(false)
}

func (s *Slave) onSCL(lvl gpio.Level) {
	if lvl == gpio.High {
		s.onRise()
	} else {
		s.onFall()
	}
}

func (s *Slave) onRise() {
	switch s.phase {
	case phaseShiftAddr, phaseShiftWrite:
		s.shift <<= 1
		if s.sda.Level() == gpio.High {
			s.shift |= 1
		}
		s.nbits++
	case phaseAckRead:
		s.masterAck = s.sda.Level() == gpio.Low
	}
}

func (s *Slave) onFall() {
	switch s.phase {
	case phaseShiftAddr:
		if s.nbits < 8 {
			return
		}
		s.rawAddr = s.shift
		s.addrs = append(s.addrs, s.shift)
		s.matched = s.AckAll || uint16(s.shift>>1) == s.Addr
		if s.matched {
			s.drv.Drive(true)
		}
		s.phase = phaseAckAddr
	case phaseAckAddr:
		s.drv.Drive(false)
		if !s.matched {
			s.phase = phaseDone
			return
		}
		if s.rawAddr&1 != 0 {
			s.loadByte()
			s.driveBit()
			s.phase = phaseShiftRead
			return
		}
		s.shift = 0
		s.nbits = 0
		s.phase = phaseShiftWrite
	case phaseShiftWrite:
		if s.nbits < 8 {
			return
		}
		s.wr = append(s.wr, s.shift)
		s.drv.Drive(true)
		s.phase = phaseAckWrite
	case phaseAckWrite:
		s.drv.Drive(false)
		s.shift = 0
		s.nbits = 0
		s.phase = phaseShiftWrite
	case phaseShiftRead:
		if s.bitOut < 8 {
			s.driveBit()
			return
		}
		s.drv.Drive(false)
		s.phase = phaseAckRead
	case phaseAckRead:
		if s.masterAck {
			s.loadByte()
			s.driveBit()
			s.phase = phaseShiftRead
			return
		}
		s.phase = phaseDone
	}
}

// loadByte picks the next byte to serve and records it.
func (s *Slave) loadByte() {
	b := byte(0xFF)
	switch {
	case s.respPos < len(s.Resp):
		b = s.Resp[s.respPos]
		s.respPos++
	case s.Echo && s.echoPos < len(s.wr):
		b = s.wr[s.echoPos]
		s.echoPos++
	}
	s.cur = b
	s.bitOut = 0
	s.rd = append(s.rd, b)
}

// driveBit presents the next MSB on the wire. A one releases the line, a
// zero holds it low.
func (s *Slave) driveBit() {
	bit := s.cur&(0x80>>uint(s.bitOut)) != 0
	s.bitOut++
	s.drv.Drive(!bit)
}
