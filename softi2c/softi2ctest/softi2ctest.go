// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package softi2ctest provides deterministic pin level doubles for
// exercising the softi2c bus master without hardware.
//
// A Line models one open drain wire. Pin exposes a Line as a gpio.PinIO for
// the master side, Slave sits on the two lines as a clocked I²C device, and
// Recorder captures every resolved transition so tests can assert on the
// exact waveform. Timer advances one microsecond per poll, so delays finish
// in simulated time instead of blocking the test.
package softi2ctest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var errPWM = errors.New("softi2ctest: pwm not supported")

// Timer is a deterministic microsecond counter. Every poll advances it by
// one, so softi2c.Delay returns after as many polls as requested
// microseconds. Preset Now close to 0xFFFF to cover counter rollover.
type Timer struct {
	Now uint16
}

// Micros implements softi2c.Timer.
func (t *Timer) Micros() uint16 {
	t.Now++
	return t.Now
}

// Line is one open drain bus wire with its pull up. Any driver holding it
// low wins; with every driver released the pull up takes the line high.
type Line struct {
	name     string
	holds    []bool
	watchers []func(gpio.Level)
}

// NewLine returns an idle wire.
func NewLine(name string) *Line {
	return &Line{name: name}
}

// Name returns the wire name.
func (l *Line) Name() string {
	return l.name
}

// Level returns the resolved electrical level.
func (l *Line) Level() gpio.Level {
	for _, low := range l.holds {
		if low {
			return gpio.Low
		}
	}
	return gpio.High
}

// Watch registers f to run after every resolved level transition. Watchers
// run synchronously in registration order.
func (l *Line) Watch(f func(gpio.Level)) {
	l.watchers = append(l.watchers, f)
}

// Driver registers a new party allowed to hold the wire low. It starts
// released.
func (l *Line) Driver() *Driver {
	l.holds = append(l.holds, false)
	return &Driver{l: l, id: len(l.holds) - 1}
}

// Driver is one party's hold on a Line.
type Driver struct {
	l  *Line
	id int
}

// Drive pulls the wire low when low is true, releases it otherwise. Watchers
// fire only if the resolved level actually changed.
func (d *Driver) Drive(low bool) {
	before := d.l.Level()
	d.l.holds[d.id] = low
	after := d.l.Level()
	if before == after {
		return
	}
	for _, f := range d.l.watchers {
		f(after)
	}
}

// Pin exposes a Line to the master side as an open drain gpio.PinIO:
// Out(gpio.Low) holds the wire down, In releases it to the pull up, and
// Read returns the resolved wire level.
type Pin struct {
	name string
	num  int
	l    *Line
	d    *Driver
	pull gpio.Pull
	fn   string
}

// NewPin returns a Pin driving l.
func NewPin(name string, num int, l *Line) *Pin {
	return &Pin{name: name, num: num, l: l, d: l.Driver(), pull: gpio.Float, fn: "In"}
}

func (p *Pin) String() string {
	return p.name
}

func (p *Pin) Name() string {
	return p.name
}

func (p *Pin) Number() int {
	return p.num
}

func (p *Pin) Function() string {
	return p.fn
}

func (p *Pin) Halt() error {
	p.d.Drive(false)
	return nil
}

// In releases the wire. Edge detection is not modeled.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.pull = pull
	p.fn = "In"
	p.d.Drive(false)
	return nil
}

func (p *Pin) Read() gpio.Level {
	return p.l.Level()
}

func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

func (p *Pin) Pull() gpio.Pull {
	return p.pull
}

func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Out treats gpio.Low as driving the wire and gpio.High as releasing it,
// the way an open drain output stage behaves.
func (p *Pin) Out(l gpio.Level) error {
	p.fn = "Out"
	p.d.Drive(l == gpio.Low)
	return nil
}

func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errPWM
}

// Event is one resolved transition on a wire.
type Event struct {
	T     uint16
	Line  string
	Level gpio.Level
}

func (e Event) String() string {
	s := "fall"
	if e.Level == gpio.High {
		s = "rise"
	}
	return fmt.Sprintf("%s %s @%dµs", e.Line, s, e.T)
}

// Recorder captures ordered transitions on a set of lines, stamped with the
// shared test timer.
type Recorder struct {
	mu     sync.Mutex
	t      *Timer
	events []Event
}

// NewRecorder watches every given line.
func NewRecorder(t *Timer, lines ...*Line) *Recorder {
	r := &Recorder{t: t}
	for _, l := range lines {
		l := l
		l.Watch(func(lvl gpio.Level) {
			r.mu.Lock()
			r.events = append(r.events, Event{T: r.t.Micros(), Line: l.name, Level: lvl})
			r.mu.Unlock()
		})
	}
	return r
}

// Events returns the transitions captured so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Reset drops the captured transitions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Count returns how many transitions to level were seen on line.
func (r *Recorder) Count(line string, level gpio.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Line == line && e.Level == level {
			n++
		}
	}
	return n
}

// Bench is a fully wired test bus: two lines, the master pin pair, the
// fast forward timer and a recorder. Attach a Slave to SCL/SDA as needed.
type Bench struct {
	SCL    *Line
	SDA    *Line
	PinSCL *Pin
	PinSDA *Pin
	Timer  *Timer
	Rec    *Recorder
}

// NewBench returns an idle bus.
func NewBench() *Bench {
	scl := NewLine("SCL")
	sda := NewLine("SDA")
	t := &Timer{}
	return &Bench{
		SCL:    scl,
		SDA:    sda,
		PinSCL: NewPin("SCL1", 1, scl),
		PinSDA: NewPin("SDA1", 2, sda),
		Timer:  t,
		Rec:    NewRecorder(t, scl, sda),
	}
}

var _ gpio.PinIO = &Pin{}
