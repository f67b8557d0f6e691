// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package softi2c

import (
	"fmt"
	"runtime"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Half cycle and condition hold times in microseconds. 5µs low plus 5µs high
// gives the nominal 100kHz clock.
const (
	sclLowDelay  = 5
	sclHighDelay = 5
	startDelay   = 5
	stopDelay    = 5
)

// NominalFreq is the clock rate the fixed delays produce.
const NominalFreq = 100 * physic.KiloHertz

// Opts holds the configuration options.
type Opts struct {
	// Timer paces the bus. Leave nil to derive the microsecond counter from
	// the host monotonic clock.
	Timer Timer
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{}

// New returns an I²C bus master bit banged over two open drain pins.
//
// Both lines are released on return, the idle bus state.
func New(scl, sda gpio.PinIO, opts *Opts) (*Bus, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	t := opts.Timer
	if t == nil {
		t = SystemTimer()
	}
	b := &Bus{scl: scl, sda: sda, t: t}
	if err := b.sclOut(true); err != nil {
		return nil, fmt.Errorf("softi2c: releasing %s: %w", scl.Name(), err)
	}
	if err := b.sdaOut(true); err != nil {
		return nil, fmt.Errorf("softi2c: releasing %s: %w", sda.Name(), err)
	}
	return b, nil
}

// Bus is an I²C master implemented by timed toggling of two GPIO pins.
//
// It implements i2c.Bus. A transaction owns both lines for its whole
// duration, so the mutex serializes callers at transaction scope, never per
// bit: an interrupted START or STOP leaves the physical bus in an invalid
// state.
type Bus struct {
	mu  sync.Mutex
	scl gpio.PinIO
	sda gpio.PinIO
	t   Timer
}

func (b *Bus) String() string {
	return fmt.Sprintf("softi2c(%s, %s)", b.scl, b.sda)
}

// Close releases both lines, leaving the bus idle. Implements i2c.BusCloser.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.sdaOut(true); err != nil {
		return err
	}
	return b.sclOut(true)
}

// SetSpeed implements i2c.Bus. The clock is fixed at the nominal rate.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	return fmt.Errorf("softi2c: %w: clock is fixed at %s", ErrUnsupportedFeature, NominalFreq)
}

// SCL implements i2c.Pins.
func (b *Bus) SCL() gpio.PinIO {
	return b.scl
}

// SDA implements i2c.Pins.
func (b *Bus) SDA() gpio.PinIO {
	return b.sda
}

// Emulated open drain: drive low with the output stage, release by switching
// the pin to input and letting the pull up take the line high.
func (b *Bus) sdaOut(high bool) error {
	if high {
		return b.sda.In(gpio.PullUp, gpio.NoEdge)
	}
	return b.sda.Out(gpio.Low)
}

func (b *Bus) sclOut(high bool) error {
	if high {
		return b.scl.In(gpio.PullUp, gpio.NoEdge)
	}
	return b.scl.Out(gpio.Low)
}

// Start generates a START condition: SDA falls while SCL is high.
//
// Both lines must be floating high on entry. It leaves SCL and SDA low,
// ready for an address byte. Callers bypassing Tx must hold sole ownership
// of the bus for the whole transaction.
func (b *Bus) Start() error {
	if err := b.sdaOut(false); err != nil {
		return err
	}
	Delay(b.t, startDelay)
	return b.sclOut(false)
}

// Stop generates a STOP condition: SDA rises while SCL is high.
//
// SCL must be low on entry. It leaves both lines floating high, the idle
// bus state.
func (b *Bus) Stop() error {
	if err := b.sdaOut(false); err != nil {
		return err
	}
	Delay(b.t, sclLowDelay)
	if err := b.sclOut(true); err != nil {
		return err
	}
	Delay(b.t, stopDelay)
	return b.sdaOut(true)
}

// WriteByte clocks out one byte MSB first and samples the acknowledge bit.
//
// SCL must be low on entry and is left low. The returned level is the raw
// state of SDA during the ninth clock: gpio.Low means the slave held the
// line down, acknowledging the byte. No interpretation or retry happens
// here.
func (b *Bus) WriteByte(data byte) (gpio.Level, error) {
	for i := 0; i < 8; i++ {
		if err := b.sdaOut(data&0x80 != 0); err != nil {
			return gpio.High, err
		}
		data <<= 1
		Delay(b.t, sclLowDelay)
		if err := b.sclOut(true); err != nil {
			return gpio.High, err
		}
		Delay(b.t, sclHighDelay)
		if err := b.sclOut(false); err != nil {
			return gpio.High, err
		}
	}
	// Ninth clock: release SDA so the slave can drive the acknowledge.
	if err := b.sdaOut(true); err != nil {
		return gpio.High, err
	}
	Delay(b.t, sclLowDelay)
	if err := b.sclOut(true); err != nil {
		return gpio.High, err
	}
	ack := b.sda.Read()
	Delay(b.t, sclHighDelay)
	return ack, b.sclOut(false)
}

// ReadByte clocks in one byte MSB first and drives the acknowledge bit.
//
// SCL must be low on entry; it is left low and SDA released. ack true pulls
// SDA low during the ninth clock, telling the slave another byte is wanted.
// false leaves the line released, ending the read.
func (b *Bus) ReadByte(ack bool) (byte, error) {
	var data byte
	if err := b.sdaOut(true); err != nil {
		return 0, err
	}
	for i := 0; i < 8; i++ {
		Delay(b.t, sclLowDelay)
		if err := b.sclOut(true); err != nil {
			return 0, err
		}
		data <<= 1
		if b.sda.Read() == gpio.High {
			data |= 1
		}
		Delay(b.t, sclHighDelay)
		if err := b.sclOut(false); err != nil {
			return 0, err
		}
	}
	// Ninth clock: drive the acknowledge level, then release the line.
	if err := b.sdaOut(!ack); err != nil {
		return 0, err
	}
	Delay(b.t, sclLowDelay)
	if err := b.sclOut(true); err != nil {
		return 0, err
	}
	Delay(b.t, sclHighDelay)
	if err := b.sclOut(false); err != nil {
		return 0, err
	}
	return data, b.sdaOut(true)
}

// Probe addresses a device in write direction and reports whether it
// acknowledged. The bus is left idle.
func (b *Bus) Probe(addr uint16) (bool, error) {
	if addr > 0x7F {
		return false, fmt.Errorf("softi2c: %w: %#02x", ErrInvalidAddress, addr)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := b.Start(); err != nil {
		return false, err
	}
	ack, err := b.WriteByte(byte(addr) << 1)
	if serr := b.Stop(); err == nil {
		err = serr
	}
	return err == nil && ack == gpio.Low, err
}

// Tx implements i2c.Bus.
//
// A non empty w runs as its own write transaction: START, address in write
// direction, the bytes, STOP. A non empty r then runs as a separate read
// transaction: START, address in read direction, each byte answered with a
// not-acknowledge, STOP. The phases never share a START. With both buffers
// empty nothing toggles at all.
//
// Acknowledge bits sampled during the write phase are discarded, so a write
// to an absent device completes without error; use Probe to test presence.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		// 10 bit addressing needs a dedicated prefix byte, not implemented.
		return fmt.Errorf("softi2c: %w: %#02x", ErrInvalidAddress, addr)
	}
	if len(w) == 0 && len(r) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if len(w) != 0 {
		if err := b.writeTxn(byte(addr), w); err != nil {
			return err
		}
	}
	if len(r) != 0 {
		if err := b.readTxn(byte(addr), r); err != nil {
			return err
		}
	}
	return nil
}

// writeTxn runs one write phase. STOP is attempted even after a pin failure
// so the bus returns to idle.
func (b *Bus) writeTxn(addr byte, w []byte) error {
	if err := b.Start(); err != nil {
		return err
	}
	_, err := b.WriteByte(addr << 1)
	for i := 0; err == nil && i < len(w); i++ {
		_, err = b.WriteByte(w[i])
	}
	if serr := b.Stop(); err == nil {
		err = serr
	}
	return err
}

func (b *Bus) readTxn(addr byte, r []byte) error {
	if err := b.Start(); err != nil {
		return err
	}
	_, err := b.WriteByte(addr<<1 | 1)
	for i := 0; err == nil && i < len(r); i++ {
		r[i], err = b.ReadByte(false)
	}
	if serr := b.Stop(); err == nil {
		err = serr
	}
	return err
}

var _ i2c.Bus = &Bus{}
var _ i2c.BusCloser = &Bus{}
var _ i2c.Pins = &Bus{}
