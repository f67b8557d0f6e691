// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package softi2c

import (
	"errors"
	"testing"

	"github.com/JimMerkle/go-soft-i2c/softi2c/softi2ctest"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newBus(t *testing.T, b *softi2ctest.Bench) *Bus {
	t.Helper()
	bus, err := New(b.PinSCL, b.PinSDA, &Opts{Timer: b.Timer})
	if err != nil {
		t.Fatal(err)
	}
	return bus
}

// edges strips the timestamps so captures compare on shape alone.
func edges(ev []softi2ctest.Event) []string {
	var out []string
	for _, e := range ev {
		s := e.Line + " fall"
		if e.Level == gpio.High {
			s = e.Line + " rise"
		}
		out = append(out, s)
	}
	return out
}

// sdaMovesWhileSCLHigh replays a capture and returns the SDA transitions
// seen inside an SCL high window. sclStart is the clock level before the
// first event.
func sdaMovesWhileSCLHigh(ev []softi2ctest.Event, sclStart gpio.Level) []softi2ctest.Event {
	scl := sclStart
	var bad []softi2ctest.Event
	for _, e := range ev {
		switch e.Line {
		case "SCL":
			scl = e.Level
		case "SDA":
			if scl == gpio.High {
				bad = append(bad, e)
			}
		}
	}
	return bad
}

func TestNew(t *testing.T) {
	b := softi2ctest.NewBench()
	b.PinSCL.Out(gpio.Low)
	b.PinSDA.Out(gpio.Low)
	bus := newBus(t, b)
	if b.SCL.Level() != gpio.High || b.SDA.Level() != gpio.High {
		t.Fatal("New must release both lines")
	}
	if bus.SCL() != b.PinSCL || bus.SDA() != b.PinSDA {
		t.Fatal("pin accessors must return the wired pins")
	}
	if b.PinSCL.Pull() != gpio.PullUp || b.PinSDA.Pull() != gpio.PullUp {
		t.Fatal("released pins must be configured with the pull up")
	}
}

func TestNewGpiotest(t *testing.T) {
	scl := &gpiotest.Pin{N: "SCL0", Num: 4}
	sda := &gpiotest.Pin{N: "SDA0", Num: 5}
	bus, err := New(scl, sda, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bus.SCL() != scl || bus.SDA() != sda {
		t.Fatal("pin accessors must return the wired pins")
	}
}

func TestString(t *testing.T) {
	b := softi2ctest.NewBench()
	bus := newBus(t, b)
	if s := bus.String(); s != "softi2c(SCL1, SDA1)" {
		t.Fatalf("String() = %q", s)
	}
}

func TestSetSpeed(t *testing.T) {
	b := softi2ctest.NewBench()
	bus := newBus(t, b)
	err := bus.SetSpeed(NominalFreq)
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("SetSpeed error = %v", err)
	}
}

func TestStartStop(t *testing.T) {
	b := softi2ctest.NewBench()
	s := &softi2ctest.Slave{Addr: 0x68}
	s.Attach(b.SCL, b.SDA)
	bus := newBus(t, b)
	b.Rec.Reset()

	if err := bus.Start(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Stop(); err != nil {
		t.Fatal(err)
	}

	want := []string{"SDA fall", "SCL fall", "SCL rise", "SDA rise"}
	if diff := cmp.Diff(want, edges(b.Rec.Events())); diff != "" {
		t.Fatalf("capture mismatch (-want +got):\n%s", diff)
	}
	if b.SCL.Level() != gpio.High || b.SDA.Level() != gpio.High {
		t.Fatal("bus must idle with both lines floating high")
	}
	if s.Starts() != 1 || s.Stops() != 1 {
		t.Fatalf("slave saw %d starts, %d stops; want 1, 1", s.Starts(), s.Stops())
	}
}

func TestWriteByteClocks(t *testing.T) {
	for _, data := range []byte{0x00, 0xFF, 0xA5, 0x5A, 0xD0} {
		b := softi2ctest.NewBench()
		s := &softi2ctest.Slave{AckAll: true}
		s.Attach(b.SCL, b.SDA)
		bus := newBus(t, b)
		if err := bus.Start(); err != nil {
			t.Fatal(err)
		}
		b.Rec.Reset()

		ack, err := bus.WriteByte(data)
		if err != nil {
			t.Fatal(err)
		}
		if ack != gpio.Low {
			t.Fatalf("%#02x: ack level = %v, want Low", data, ack)
		}
		// 8 data bits plus the acknowledge: exactly 9 clock pulses.
		if n := b.Rec.Count("SCL", gpio.High); n != 9 {
			t.Fatalf("%#02x: %d clock rises, want 9", data, n)
		}
		// SDA only ever moves while the clock is low.
		if bad := sdaMovesWhileSCLHigh(b.Rec.Events(), gpio.Low); len(bad) != 0 {
			t.Fatalf("%#02x: SDA moved during SCL high: %v", data, bad)
		}
		if diff := cmp.Diff([]byte{data}, s.Addresses()); diff != "" {
			t.Fatalf("%#02x: shifted byte mismatch (-want +got):\n%s", data, diff)
		}
	}
}

func TestWriteByteNoDevice(t *testing.T) {
	b := softi2ctest.NewBench()
	bus := newBus(t, b)
	if err := bus.Start(); err != nil {
		t.Fatal(err)
	}
	ack, err := bus.WriteByte(0xD0)
	if err != nil {
		t.Fatal(err)
	}
	if ack != gpio.High {
		t.Fatal("a silent bus must sample the acknowledge as high")
	}
}

func TestReadByte(t *testing.T) {
	for _, data := range []byte{0xA5, 0x00, 0xFF, 0x37} {
		b := softi2ctest.NewBench()
		s := &softi2ctest.Slave{Addr: 0x68, Resp: []byte{data}}
		s.Attach(b.SCL, b.SDA)
		bus := newBus(t, b)

		if err := bus.Start(); err != nil {
			t.Fatal(err)
		}
		if _, err := bus.WriteByte(0x68<<1 | 1); err != nil {
			t.Fatal(err)
		}
		got, err := bus.ReadByte(false)
		if err != nil {
			t.Fatal(err)
		}
		if err := bus.Stop(); err != nil {
			t.Fatal(err)
		}
		if got != data {
			t.Fatalf("read %#02x, want %#02x", got, data)
		}
	}
}

func TestReadByteAckContinues(t *testing.T) {
	b := softi2ctest.NewBench()
	s := &softi2ctest.Slave{Addr: 0x68, Resp: []byte{1, 2, 3}}
	s.Attach(b.SCL, b.SDA)
	bus := newBus(t, b)

	if err := bus.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := bus.WriteByte(0x68<<1 | 1); err != nil {
		t.Fatal(err)
	}
	var got []byte
	for i := 0; i < 3; i++ {
		d, err := bus.ReadByte(i < 2)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, d)
	}
	if err := bus.Stop(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, got); diff != "" {
		t.Fatalf("read back (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, s.Served()); diff != "" {
		t.Fatalf("served (-want +got):\n%s", diff)
	}
}

func TestTx(t *testing.T) {
	for _, tc := range []struct {
		name       string
		addr       uint16
		w          []byte
		readLen    int
		resp       []byte
		absent     bool
		wantAddrs  []byte
		wantData   []byte
		wantRead   []byte
		wantStarts int
		wantStops  int
		wantRises  int
	}{
		{
			name:       "write only",
			addr:       0x68,
			w:          []byte{0x00},
			wantAddrs:  []byte{0xD0},
			wantData:   []byte{0x00},
			wantStarts: 1,
			wantStops:  1,
			wantRises:  19,
		},
		{
			name:       "read only",
			addr:       0x68,
			readLen:    1,
			resp:       []byte{0x37},
			wantAddrs:  []byte{0xD1},
			wantRead:   []byte{0x37},
			wantStarts: 1,
			wantStops:  1,
			wantRises:  19,
		},
		{
			name:       "write then read",
			addr:       0x68,
			w:          []byte{0x11},
			readLen:    1,
			resp:       []byte{0xAA},
			wantAddrs:  []byte{0xD0, 0xD1},
			wantData:   []byte{0x11},
			wantRead:   []byte{0xAA},
			wantStarts: 2,
			wantStops:  2,
			wantRises:  38,
		},
		{
			// Every read byte is answered with a not-acknowledge, so a
			// protocol correct device releases the bus after the first one
			// and the rest read as 0xFF. Callers poll one byte per
			// transaction.
			name:       "multi byte read serves only the first byte",
			addr:       0x68,
			readLen:    2,
			resp:       []byte{0xAA, 0x55},
			wantAddrs:  []byte{0xD1},
			wantRead:   []byte{0xAA, 0xFF},
			wantStarts: 1,
			wantStops:  1,
			wantRises:  28,
		},
		{
			name: "empty is a no-op",
			addr: 0x68,
		},
		{
			name:       "write to absent device is not an error",
			addr:       0x50,
			w:          []byte{0x01, 0x02},
			absent:     true,
			wantStarts: 1,
			wantStops:  1,
			wantRises:  28,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := softi2ctest.NewBench()
			s := &softi2ctest.Slave{Addr: tc.addr, Resp: tc.resp}
			if !tc.absent {
				s.Attach(b.SCL, b.SDA)
			}
			bus := newBus(t, b)
			b.Rec.Reset()

			var r []byte
			if tc.readLen != 0 {
				r = make([]byte, tc.readLen)
			}
			if err := bus.Tx(tc.addr, tc.w, r); err != nil {
				t.Fatal(err)
			}

			if tc.wantRises == 0 {
				if n := len(b.Rec.Events()); n != 0 {
					t.Fatalf("%d line transitions, want none", n)
				}
				return
			}
			if n := b.Rec.Count("SCL", gpio.High); n != tc.wantRises {
				t.Fatalf("%d clock rises, want %d", n, tc.wantRises)
			}
			if bad := sdaMovesWhileSCLHigh(b.Rec.Events(), gpio.High); len(bad) != tc.wantStarts+tc.wantStops {
				t.Fatalf("unexpected SDA movement during SCL high: %v", bad)
			}
			if diff := cmp.Diff(tc.wantRead, r); diff != "" {
				t.Fatalf("read buffer (-want +got):\n%s", diff)
			}
			if tc.absent {
				return
			}
			if s.Starts() != tc.wantStarts || s.Stops() != tc.wantStops {
				t.Fatalf("slave saw %d starts, %d stops; want %d, %d",
					s.Starts(), s.Stops(), tc.wantStarts, tc.wantStops)
			}
			if diff := cmp.Diff(tc.wantAddrs, s.Addresses()); diff != "" {
				t.Fatalf("addresses (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantData, s.Received()); diff != "" {
				t.Fatalf("received (-want +got):\n%s", diff)
			}
			if b.SCL.Level() != gpio.High || b.SDA.Level() != gpio.High {
				t.Fatal("bus must return to idle")
			}
		})
	}
}

func TestTxInvalidAddress(t *testing.T) {
	b := softi2ctest.NewBench()
	bus := newBus(t, b)
	b.Rec.Reset()
	err := bus.Tx(0x80, []byte{0x00}, nil)
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("Tx error = %v", err)
	}
	if n := len(b.Rec.Events()); n != 0 {
		t.Fatalf("%d line transitions after a rejected address, want none", n)
	}
}

func TestProbe(t *testing.T) {
	b := softi2ctest.NewBench()
	s := &softi2ctest.Slave{Addr: 0x68}
	s.Attach(b.SCL, b.SDA)
	bus := newBus(t, b)

	present, err := bus.Probe(0x68)
	if err != nil {
		t.Fatal(err)
	}
	if !present {
		t.Fatal("device at 0x68 must be reported present")
	}
	present, err = bus.Probe(0x42)
	if err != nil {
		t.Fatal(err)
	}
	if present {
		t.Fatal("nothing lives at 0x42")
	}
	if _, err = bus.Probe(0x80); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("Probe error = %v", err)
	}
	if b.SCL.Level() != gpio.High || b.SDA.Level() != gpio.High {
		t.Fatal("bus must return to idle")
	}
}

func TestRoundTrip(t *testing.T) {
	b := softi2ctest.NewBench()
	s := &softi2ctest.Slave{Addr: 0x2A, Echo: true}
	s.Attach(b.SCL, b.SDA)
	bus := newBus(t, b)

	for _, data := range []byte{0x00, 0x01, 0x80, 0xA5, 0xFF} {
		s.Reset()
		r := make([]byte, 1)
		if err := bus.Tx(0x2A, []byte{data}, r); err != nil {
			t.Fatal(err)
		}
		if r[0] != data {
			t.Fatalf("wrote %#02x, read back %#02x", data, r[0])
		}
	}
}

func TestClose(t *testing.T) {
	b := softi2ctest.NewBench()
	bus := newBus(t, b)
	if err := bus.Start(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if b.SCL.Level() != gpio.High || b.SDA.Level() != gpio.High {
		t.Fatal("Close must leave the bus idle")
	}
}

func TestDelayWraps(t *testing.T) {
	tm := &softi2ctest.Timer{Now: 0xFFF0}
	start := tm.Now
	Delay(tm, 0x40)
	if got := tm.Now - start; got < 0x40 {
		t.Fatalf("elapsed %dµs, want at least %d", got, 0x40)
	}
}
