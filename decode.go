// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package am2301

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Timing of the AM2301 single-wire exchange. These are protocol constants
// from the datasheet, not tunables.
const (
	// Host wake pulse. The datasheet minimum is 800µs; 1ms adds margin
	// while staying well below the sensor's tolerance.
	wakePulse = time.Millisecond

	// The sensor must start its acknowledgment within 20-40µs of the
	// line being released.
	ackStartTimeout = 100 * time.Microsecond

	// Acceptance window for the two acknowledgment phases, nominally
	// 80µs each.
	ackMin = 40 * time.Microsecond
	ackMax = 120 * time.Microsecond

	// Upper bound on any single in-frame pulse. A level held longer
	// than this means the line is desynchronized.
	pulseTimeout = 200 * time.Microsecond

	// High-phase width separating a 0 bit (~26µs) from a 1 bit (~70µs).
	// A width of exactly bitThreshold decodes as 1.
	bitThreshold = 50 * time.Microsecond

	// Minimum spacing between the starts of two exchanges.
	minInterval = 2 * time.Second
)

var errLevelTimeout = errors.New("am2301: line level did not change in time")

// gate enforces minInterval between exchanges. It suspends the calling
// goroutine for the remainder of the interval, then stamps the attempt
// unconditionally so that a failed exchange cannot be retried faster than
// the sensor tolerates.
func (d *Dev) gate() {
	if !d.lastWake.IsZero() {
		if wait := minInterval - d.now().Sub(d.lastWake); wait > 0 {
			d.sleep(wait)
		}
	}
	d.lastWake = d.now()
}

// measureLevel busy-polls the pin until it leaves level and reports how
// long the level was held. There is deliberately no yield inside the
// loop: the protocol windows are tighter than scheduler granularity, so
// suspending mid-pulse would desynchronize the exchange.
func (d *Dev) measureLevel(level gpio.Level, timeout time.Duration) (time.Duration, error) {
	start := d.now()
	for d.p.Read() == level {
		if d.now().Sub(start) > timeout {
			return 0, errLevelTimeout
		}
	}
	return d.now().Sub(start), nil
}

// readFrame runs one full exchange and returns the validated 5-byte
// frame: humidity high/low, temperature high/low, checksum. It aborts on
// the first timing violation; retrying is up to the caller and goes
// through the 2 second gate again.
func (d *Dev) readFrame() ([5]byte, error) {
	var f [5]byte

	// Wake the sensor: hold the line low, then hand it over by releasing
	// it to the pull-up.
	if err := d.p.Out(gpio.Low); err != nil {
		return f, fmt.Errorf("am2301: failed to drive the line low: %w", err)
	}
	d.sleep(wakePulse)
	if err := d.p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		d.p.Out(gpio.High)
		return f, fmt.Errorf("am2301: failed to release the line: %w", err)
	}
	// Park the line high once the exchange is over, pass or fail, so the
	// next wake starts from a settled level.
	defer d.p.Out(gpio.High)

	// The sensor acknowledges by pulling the line low for ~80µs, then
	// driving it high for ~80µs, before the first bit.
	if _, err := d.measureLevel(gpio.High, ackStartTimeout); err != nil {
		return f, &NoResponseError{}
	}
	low, err := d.measureLevel(gpio.Low, pulseTimeout)
	if err != nil {
		return f, &ProtocolError{Phase: "ack low", Width: pulseTimeout}
	}
	if low < ackMin || low > ackMax {
		return f, &ProtocolError{Phase: "ack low", Width: low}
	}
	high, err := d.measureLevel(gpio.High, pulseTimeout)
	if err != nil {
		return f, &ProtocolError{Phase: "ack high", Width: pulseTimeout}
	}
	if high < ackMin || high > ackMax {
		return f, &ProtocolError{Phase: "ack high", Width: high}
	}

	// 40 bits, most significant bit first. Each bit is a ~50µs low
	// separator followed by a high phase whose width encodes the value.
	for i := 0; i < 40; i++ {
		if _, err := d.measureLevel(gpio.Low, pulseTimeout); err != nil {
			return f, &ProtocolError{Phase: "bit separator", Width: pulseTimeout}
		}
		w, err := d.measureLevel(gpio.High, pulseTimeout)
		if err != nil {
			return f, &ProtocolError{Phase: "bit pulse", Width: pulseTimeout}
		}
		f[i/8] <<= 1
		if w >= bitThreshold {
			f[i/8] |= 1
		}
	}

	// The checksum byte is the wrapping sum of the four payload bytes.
	if sum := f[0] + f[1] + f[2] + f[3]; sum != f[4] {
		return f, &ChecksumError{Received: f[4], Computed: sum}
	}
	return f, nil
}
