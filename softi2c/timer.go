// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package softi2c

import "time"

// Timer is the free running microsecond counter that paces the bus lines.
//
// The counter wraps at 65536µs. Implementations must count up monotonically
// between wraps; Delay tolerates the wrap itself.
type Timer interface {
	// Micros returns the current counter value.
	Micros() uint16
}

// Delay busy waits until at least us microseconds have elapsed on t.
//
// Elapsed time is computed as an unsigned delta against the counter, so a
// counter rollover during the wait does not cut the wait short. The wait is
// a pure spin; the calling goroutine yields to nobody.
func Delay(t Timer, us uint16) {
	start := t.Micros()
	for t.Micros()-start < us {
	}
}

// SystemTimer returns a Timer backed by the host monotonic clock.
//
// New uses one implicitly when Opts.Timer is nil. Construct one explicitly
// to share the same time base with other consumers, like a signal trace.
func SystemTimer() Timer {
	return &sysTimer{start: time.Now()}
}

// sysTimer derives the counter from the host monotonic clock.
type sysTimer struct {
	start time.Time
}

func (t *sysTimer) Micros() uint16 {
	return uint16(time.Since(t.start).Microseconds())
}
