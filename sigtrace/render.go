// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sigtrace

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/maruel/ansi256"
	"golang.org/x/image/font"
	"periph.io/x/conn/v3/gpio"
)

// RenderOpts controls both the terminal and the PNG renderers.
type RenderOpts struct {
	// UsPerCol is the horizontal resolution in microseconds per text
	// column. Zero means 5µs, one bus timing quantum, so every clock phase
	// lands in its own column.
	UsPerCol int
	// Palette, when not nil, appends a per column bus activity strip of
	// colored blocks under the waveforms: green while every line is
	// released, amber with one line driven low, red with more. The writer
	// must understand ANSI escape codes; on Windows wrap it with
	// colorable.NewColorableStdout().
	Palette *ansi256.Palette
	// Face overrides the PNG label font. Nil parses the embedded Go
	// Regular face.
	Face font.Face

	_ struct{}
}

// DefaultRenderOpts renders plain ASCII at one column per 5µs.
var DefaultRenderOpts = RenderOpts{}

// Render writes the capture as two text rows per line, high rail over low
// rail, the way bus timing diagrams are drawn in datasheets:
//
//	    _     __
//	SCL  \/\_/
//
//	           _
//	SDA \_____/
//
// A backslash is a falling edge, a slash a rising edge and a pipe a column
// containing both.
func (t *Trace) Render(w io.Writer, opts *RenderOpts) error {
	if opts == nil {
		opts = &DefaultRenderOpts
	}
	step := opts.UsPerCol
	if step <= 0 {
		step = 5
	}
	order, initial, events := t.snapshot()
	cols, span := gridSize(events, step)
	labelW := 3
	for _, n := range order {
		if len(n) > labelW {
			labelW = len(n)
		}
	}
	labelW++

	var b strings.Builder
	grid := make([][]gpio.Level, len(order))
	for i, name := range order {
		top, bot, levels := rails(name, initial[name], events, step, cols)
		grid[i] = levels
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat(" ", labelW), trimRight(top))
		fmt.Fprintf(&b, "%-*s%s\n", labelW, name, trimRight(bot))
		b.WriteString("\n")
	}
	if opts.Palette != nil {
		fmt.Fprintf(&b, "%-*s", labelW, "bus")
		for c := 0; c < cols; c++ {
			low := 0
			for i := range grid {
				if grid[i][c] == gpio.Low {
					low++
				}
			}
			b.WriteString(opts.Palette.Block(activityColor(low)))
		}
		b.WriteString("\033[0m\n\n")
	}
	fmt.Fprintf(&b, "%dµs/column, %dµs captured\n", step, span)
	_, err := io.WriteString(w, b.String())
	return err
}

// gridSize returns the column count and the captured span in microseconds.
// One extra column holds the settled final state.
func gridSize(events []Event, step int) (int, uint64) {
	var span uint64
	if len(events) > 0 {
		span = events[len(events)-1].T
	}
	return int(span/uint64(step)) + 2, span
}

// rails buckets one line's events into columns and draws its two rail
// rows. It also returns the level at the end of each column for the
// activity strip.
func rails(line string, lvl gpio.Level, events []Event, step int, cols int) ([]byte, []byte, []gpio.Level) {
	top := make([]byte, cols)
	bot := make([]byte, cols)
	levels := make([]gpio.Level, cols)
	ei := 0
	for c := 0; c < cols; c++ {
		limit := uint64((c + 1) * step)
		edges := 0
		for ei < len(events) && events[ei].T < limit {
			if events[ei].Line == line && events[ei].Level != lvl {
				lvl = events[ei].Level
				edges++
			}
			ei++
		}
		levels[c] = lvl
		top[c] = ' '
		bot[c] = ' '
		switch {
		case edges > 1:
			bot[c] = '|'
		case edges == 1 && lvl == gpio.Low:
			bot[c] = '\\'
		case edges == 1:
			bot[c] = '/'
		case lvl == gpio.High:
			top[c] = '_'
		default:
			bot[c] = '_'
		}
	}
	return top, bot, levels
}

func trimRight(row []byte) string {
	return strings.TrimRight(string(row), " ")
}

func activityColor(low int) color.NRGBA {
	switch low {
	case 0:
		return color.NRGBA{R: 0x00, G: 0x87, B: 0x00, A: 0xFF}
	case 1:
		return color.NRGBA{R: 0xFF, G: 0xAF, B: 0x00, A: 0xFF}
	default:
		return color.NRGBA{R: 0xD7, G: 0x00, B: 0x00, A: 0xFF}
	}
}
