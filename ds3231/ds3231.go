// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds3231

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Addr is the only I²C address the DS3231 answers on. It is hardwired.
const Addr uint16 = 0x68

// SquareWave selects what the INT/SQW pin outputs.
type SquareWave int

const (
	// SquareWaveUnchanged leaves the pin configuration alone.
	SquareWaveUnchanged SquareWave = iota
	// SquareWaveOff routes the pin to the alarm interrupt instead.
	SquareWaveOff
	SquareWave1Hz
	SquareWave1024Hz
	SquareWave4096Hz
	SquareWave8192Hz
)

// Opts holds the device configuration.
type Opts struct {
	// SquareWave programs the INT/SQW pin on startup.
	SquareWave SquareWave
}

// DefaultOpts leaves the device configuration untouched.
var DefaultOpts = Opts{}

// NewI2C returns a Dev driving a DS3231 on the given bus.
//
// addr must be Addr; the parameter exists so wiring mistakes fail loudly
// instead of addressing some other device.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if addr != Addr {
		return nil, fmt.Errorf("ds3231: address %#02x is invalid, the part answers on %#02x only", addr, Addr)
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}}
	if opts.SquareWave != SquareWaveUnchanged {
		if err := d.setSquareWave(opts.SquareWave); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Dev is an open handle to a DS3231.
type Dev struct {
	d *i2c.Dev

	mu   sync.Mutex
	stop chan struct{}
}

func (d *Dev) String() string {
	return fmt.Sprintf("ds3231{%s}", d.d)
}

// Now reads the current time off the clock.
//
// Each register travels in its own transaction. If the seconds register
// ticked while the others were in flight the whole set is fetched again.
func (d *Dev) Now() (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for attempt := 0; attempt < 2; attempt++ {
		var regs [7]byte
		for i := range regs {
			v, err := d.readReg(byte(i))
			if err != nil {
				return time.Time{}, err
			}
			regs[i] = v
		}
		check, err := d.readReg(_REGISTER_SECONDS)
		if err != nil {
			return time.Time{}, err
		}
		if check != regs[_REGISTER_SECONDS] {
			continue
		}
		return decodeTime(regs), nil
	}
	return time.Time{}, fmt.Errorf("ds3231: seconds kept ticking across two reads")
}

// SetTime writes the calendar fields of t to the clock and clears the
// oscillator stop flag, marking the time as trustworthy again.
func (d *Dev) SetTime(t time.Time) error {
	year := t.Year()
	if year < 2000 || year > 2199 {
		return fmt.Errorf("ds3231: year %d is outside the chip's 2000-2199 range", year)
	}
	month := encodeBCD(byte(t.Month()))
	if year >= 2100 {
		month |= _MONTH_CENTURY
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w := []byte{
		_REGISTER_SECONDS,
		encodeBCD(byte(t.Second())),
		encodeBCD(byte(t.Minute())),
		encodeBCD(byte(t.Hour())),
		byte(t.Weekday()) + 1,
		encodeBCD(byte(t.Day())),
		month,
		encodeBCD(byte(year % 100)),
	}
	if err := d.d.Tx(w, nil); err != nil {
		return fmt.Errorf("ds3231: writing time: %w", err)
	}
	status, err := d.readReg(_REGISTER_STATUS)
	if err != nil {
		return err
	}
	if status&_STATUS_OSF != 0 {
		err = d.d.Tx([]byte{_REGISTER_STATUS, status &^ _STATUS_OSF}, nil)
		if err != nil {
			return fmt.Errorf("ds3231: clearing oscillator stop flag: %w", err)
		}
	}
	return nil
}

// LostPower reports whether the oscillator stopped since the time was last
// set, which means the time read back cannot be trusted.
func (d *Dev) LostPower() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, err := d.readReg(_REGISTER_STATUS)
	if err != nil {
		return false, err
	}
	return status&_STATUS_OSF != 0, nil
}

// Sense reads the die temperature the oscillator compensation runs on.
func (d *Dev) Sense(e *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	msb, err := d.readReg(_REGISTER_TEMP_MSB)
	if err != nil {
		return err
	}
	lsb, err := d.readReg(_REGISTER_TEMP_LSB)
	if err != nil {
		return err
	}
	quarters := int32(int8(msb))*4 + int32(lsb>>6)
	e.Temperature = physic.ZeroCelsius + physic.Temperature(quarters)*250*physic.MilliKelvin
	return nil
}

// SenseContinuous reads the temperature every interval until Halt.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil, fmt.Errorf("ds3231: already sensing continuously")
	}
	stop := make(chan struct{})
	d.stop = stop
	ch := make(chan physic.Env)
	go func() {
		defer close(ch)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				var e physic.Env
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case ch <- e:
				case <-stop:
					return
				}
			}
		}
	}()
	return ch, nil
}

// Precision reports the temperature resolution.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = 250 * physic.MilliKelvin
}

// Halt stops continuous sensing. The clock itself keeps running.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	return nil
}

func (d *Dev) setSquareWave(sw SquareWave) error {
	ctl, err := d.readReg(_REGISTER_CONTROL)
	if err != nil {
		return err
	}
	ctl &^= _CONTROL_INTCN | _CONTROL_RS1 | _CONTROL_RS2
	switch sw {
	case SquareWaveOff:
		ctl |= _CONTROL_INTCN
	case SquareWave1Hz:
	case SquareWave1024Hz:
		ctl |= _CONTROL_RS1
	case SquareWave4096Hz:
		ctl |= _CONTROL_RS2
	case SquareWave8192Hz:
		ctl |= _CONTROL_RS1 | _CONTROL_RS2
	default:
		return fmt.Errorf("ds3231: unknown square wave setting %d", sw)
	}
	if err := d.d.Tx([]byte{_REGISTER_CONTROL, ctl}, nil); err != nil {
		return fmt.Errorf("ds3231: writing control register: %w", err)
	}
	return nil
}

// readReg fetches one register in a dedicated write then read transaction.
func (d *Dev) readReg(reg byte) (byte, error) {
	var buf [1]byte
	if err := d.d.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("ds3231: reading register %#02x: %w", reg, err)
	}
	return buf[0], nil
}

func decodeTime(regs [7]byte) time.Time {
	sec := int(decodeBCD(regs[_REGISTER_SECONDS] & 0x7F))
	min := int(decodeBCD(regs[_REGISTER_MINUTES] & 0x7F))
	hr := regs[_REGISTER_HOURS]
	var hour int
	if hr&_HOURS_12H != 0 {
		hour = int(decodeBCD(hr & 0x1F))
		if hour == 12 {
			hour = 0
		}
		if hr&_HOURS_PM != 0 {
			hour += 12
		}
	} else {
		hour = int(decodeBCD(hr & 0x3F))
	}
	day := int(decodeBCD(regs[_REGISTER_DATE] & 0x3F))
	month := int(decodeBCD(regs[_REGISTER_MONTH] & 0x1F))
	year := 2000 + int(decodeBCD(regs[_REGISTER_YEAR]))
	if regs[_REGISTER_MONTH]&_MONTH_CENTURY != 0 {
		year += 100
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

func decodeBCD(b byte) byte {
	return b>>4*10 + b&0x0F
}

func encodeBCD(v byte) byte {
	return v/10<<4 | v%10
}

const (
	_REGISTER_SECONDS  = 0x00
	_REGISTER_MINUTES  = 0x01
	_REGISTER_HOURS    = 0x02
	_REGISTER_DAY      = 0x03
	_REGISTER_DATE     = 0x04
	_REGISTER_MONTH    = 0x05
	_REGISTER_YEAR     = 0x06
	_REGISTER_CONTROL  = 0x0E
	_REGISTER_STATUS   = 0x0F
	_REGISTER_TEMP_MSB = 0x11
	_REGISTER_TEMP_LSB = 0x12

	_HOURS_12H     = 0x40
	_HOURS_PM      = 0x20
	_MONTH_CENTURY = 0x80
	_STATUS_OSF    = 0x80
	_CONTROL_INTCN = 0x04
	_CONTROL_RS1   = 0x08
	_CONTROL_RS2   = 0x10
)

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
