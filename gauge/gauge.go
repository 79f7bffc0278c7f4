// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gauge renders environment readings as a colored bar on the
// terminal (stdout) using ANSI color codes.
//
// Useful to eyeball an AM2301 while wiring it up, without any display
// hardware attached: the bar fills with relative humidity and its color
// follows the temperature.
package gauge

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// Opts represents the options available for the gauge.
type Opts struct {
	// Cells is the number of block characters the bar spans. The bar
	// fills from 0%RH on the left to 100%RH on the right.
	Cells   int
	Palette *ansi256.Palette
	// Writer overrides the output destination. Defaults to a colorable
	// stdout.
	Writer io.Writer

	_ struct{}
}

// Dev is a terminal renderer for environment readings.
type Dev struct {
	w       io.Writer
	cells   int
	palette ansi256.Palette

	buf bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.Writer
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	cells := opts.Cells
	if cells <= 0 {
		cells = 40
	}
	return &Dev{w: w, cells: cells, palette: *p}
}

func (d *Dev) String() string {
	return "am2301 gauge"
}

// Halt implements conn.Resource.
//
// It resets the terminal attributes so the shell is not left colored.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Update redraws the gauge in place with the given reading.
func (d *Dev) Update(e physic.Env) error {
	// This code is designed to minimize the amount of memory allocated
	// per call.
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")

	filled := int(int64(e.Humidity) * int64(d.cells) / int64(100*physic.PercentRH))
	if filled < 0 {
		filled = 0
	}
	if filled > d.cells {
		filled = d.cells
	}
	c := tempColor(e.Temperature)
	for i := 0; i < d.cells; i++ {
		if i < filled {
			_, _ = io.WriteString(&d.buf, d.palette.Block(c))
		} else {
			_, _ = io.WriteString(&d.buf, d.palette.Block(colorEmpty))
		}
	}
	_, _ = fmt.Fprintf(&d.buf, "\033[0m %8s %9s ", e.Temperature, e.Humidity)
	_, err := d.buf.WriteTo(d.w)
	return err
}

var colorEmpty = color.NRGBA{0x20, 0x20, 0x20, 255}

// tempColor maps the temperature onto a blue-to-red ramp over 0°C..40°C,
// clamped outside that range.
func tempColor(t physic.Temperature) color.NRGBA {
	c := t.Celsius()
	if c < 0 {
		c = 0
	}
	if c > 40 {
		c = 40
	}
	r := byte(255 * c / 40)
	return color.NRGBA{r, 0x30, 255 - r, 255}
}

var _ conn.Resource = &Dev{}
var _ fmt.Stringer = &Dev{}
