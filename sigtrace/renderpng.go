// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sigtrace

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/gpio"
)

const (
	pngPxPerUs = 3
	pngLabelW  = 56
	pngRowH    = 56
	pngSwing   = 28
	pngMargin  = 12
)

var lineColors = [][3]int{
	{0x00, 0x87, 0xD7},
	{0xD7, 0x87, 0x00},
	{0xAF, 0x00, 0xAF},
	{0x00, 0x87, 0x00},
}

// RenderPNG draws the capture as step waveforms on a white canvas, one row
// per line with a light time grid every 25µs.
func (t *Trace) RenderPNG(w io.Writer, opts *RenderOpts) error {
	if opts == nil {
		opts = &DefaultRenderOpts
	}
	order, initial, events := t.snapshot()
	var span uint64
	if len(events) > 0 {
		span = events[len(events)-1].T
	}
	width := pngLabelW + int(span)*pngPxPerUs + 2*pngMargin + 20
	if width < 320 {
		width = 320
	}
	height := 2*pngMargin + len(order)*pngRowH + 20
	if height < 120 {
		height = 120
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	face := opts.Face
	if face == nil {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			return fmt.Errorf("sigtrace: parsing builtin font: %w", err)
		}
		face = truetype.NewFace(f, &truetype.Options{Size: 12})
	}
	dc.SetFontFace(face)

	x0 := float64(pngLabelW + pngMargin)
	dc.SetRGB(0.85, 0.85, 0.85)
	dc.SetLineWidth(1)
	for us := uint64(0); us <= span; us += 25 {
		x := x0 + float64(us)*pngPxPerUs
		dc.DrawLine(x, float64(pngMargin), x, float64(height-pngMargin-16))
		dc.Stroke()
	}
	dc.SetRGB(0.4, 0.4, 0.4)
	for us := uint64(0); us <= span; us += 50 {
		x := x0 + float64(us)*pngPxPerUs
		dc.DrawString(fmt.Sprintf("%dµs", us), x+2, float64(height-pngMargin))
	}

	for i, name := range order {
		c := lineColors[i%len(lineColors)]
		yHigh := float64(pngMargin + i*pngRowH + 14)
		yLow := yHigh + pngSwing
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawString(name, float64(pngMargin), yLow)
		dc.SetRGB255(c[0], c[1], c[2])
		dc.SetLineWidth(2)
		y := yHigh
		if initial[name] == gpio.Low {
			y = yLow
		}
		dc.MoveTo(x0, y)
		for _, e := range events {
			if e.Line != name {
				continue
			}
			x := x0 + float64(e.T)*pngPxPerUs
			dc.LineTo(x, y)
			if e.Level == gpio.High {
				y = yHigh
			} else {
				y = yLow
			}
			dc.LineTo(x, y)
		}
		dc.LineTo(x0+float64(span+5)*pngPxPerUs, y)
		dc.Stroke()
	}
	return dc.EncodePNG(w)
}
