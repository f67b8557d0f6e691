// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sigtrace captures the line transitions a bit banged bus master
// makes on its GPIO pins and renders them as a logic analyzer style
// waveform, either as terminal art or as a PNG.
//
// The trace observes the master side of the pins only: it records what the
// master drives and when it releases a line, not what other devices pull.
// An acknowledge driven by a slave therefore shows as a released (high)
// line. For wire level observation use a real logic analyzer.
package sigtrace

import (
	"fmt"
	"sync"

	"github.com/JimMerkle/go-soft-i2c/softi2c"
	"periph.io/x/conn/v3/gpio"
)

// Event is one master side line transition.
type Event struct {
	// T is in microseconds since the last Arm.
	T uint64
	// Line is the name given to Pin.
	Line string
	// Level is the new line level.
	Level gpio.Level
}

func (e Event) String() string {
	d := "rise"
	if e.Level == gpio.Low {
		d = "fall"
	}
	return fmt.Sprintf("%s %s @%dµs", e.Line, d, e.T)
}

// Trace accumulates events from the pins it wraps.
//
// A Trace records only between Arm and Disarm, like a single shot trigger
// on an oscilloscope, so an idle instance costs nothing but the level
// bookkeeping.
type Trace struct {
	mu      sync.Mutex
	t       softi2c.Timer
	lastRaw uint16
	cursor  uint64
	epoch   uint64
	armed   bool
	order   []string
	cur     map[string]gpio.Level
	initial map[string]gpio.Level
	events  []Event
}

// New returns an empty, disarmed Trace stamping events with t.
//
// Pass the same Timer to the bus master and to New or the timestamps are
// meaningless.
func New(t softi2c.Timer) *Trace {
	return &Trace{t: t, lastRaw: t.Micros(), cur: map[string]gpio.Level{}}
}

// Pin wraps p so every drive and release is recorded under name.
//
// The returned pin delegates everything else to p and can be handed to
// softi2c.New in its place.
func (t *Trace) Pin(name string, p gpio.PinIO) gpio.PinIO {
	t.mu.Lock()
	t.order = append(t.order, name)
	t.cur[name] = gpio.High
	t.mu.Unlock()
	return &pin{PinIO: p, t: t, line: name}
}

// Arm clears the trace and starts recording.
//
// The levels at the moment of arming become the left edge of the render.
func (t *Trace) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()
	t.epoch = t.cursor
	t.events = t.events[:0]
	t.initial = make(map[string]gpio.Level, len(t.cur))
	for k, v := range t.cur {
		t.initial[k] = v
	}
	t.armed = true
}

// Disarm stops recording. The captured events stay until the next Arm.
func (t *Trace) Disarm() {
	t.mu.Lock()
	t.armed = false
	t.mu.Unlock()
}

// Events returns a copy of the capture, in chronological order.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Len returns the number of captured events.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

func (t *Trace) add(line string, l gpio.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()
	if t.cur[line] == l {
		return
	}
	t.cur[line] = l
	if !t.armed {
		return
	}
	t.events = append(t.events, Event{T: t.cursor - t.epoch, Line: line, Level: l})
}

// advance folds the wrapping 16 bit counter into a monotonic cursor. The
// delta is exact as long as advance runs at least once per 65ms, which any
// bus activity guarantees.
func (t *Trace) advance() {
	raw := t.t.Micros()
	t.cursor += uint64(raw - t.lastRaw)
	t.lastRaw = raw
}

// snapshot returns render input without holding the lock during rendering.
func (t *Trace) snapshot() ([]string, map[string]gpio.Level, []Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	order := append([]string(nil), t.order...)
	initial := make(map[string]gpio.Level, len(t.order))
	for _, n := range order {
		lvl, ok := t.initial[n]
		if !ok {
			lvl = gpio.High
		}
		initial[n] = lvl
	}
	return order, initial, append([]Event(nil), t.events...)
}

// pin records the drives and releases applied through it.
type pin struct {
	gpio.PinIO
	t    *Trace
	line string
}

func (p *pin) Out(l gpio.Level) error {
	if err := p.PinIO.Out(l); err != nil {
		return err
	}
	p.t.add(p.line, l)
	return nil
}

// In releases the line. With the pull up that an open drain bus requires,
// a released line reads high unless somebody else drives it.
func (p *pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := p.PinIO.In(pull, edge); err != nil {
		return err
	}
	p.t.add(p.line, gpio.High)
	return nil
}

var _ gpio.PinIO = &pin{}
