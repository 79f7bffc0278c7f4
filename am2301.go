// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package am2301 controls an AOSONG AM2301 (DHT21) temperature/humidity
// sensor over its proprietary single-wire protocol, using one GPIO pin
// with an external pull-up.
//
// The sensor answers a host wake pulse with a 40-bit frame in which each
// bit is encoded by pulse width, so a read is timing critical: the decode
// busy-polls the pin for a few milliseconds without yielding. The
// datasheet mandates at least 2 seconds between measurements; Sense
// enforces that interval transparently and sleeps for the remainder when
// called earlier, whether or not the previous attempt succeeded.
//
// The pin must not be shared with any other task while a measurement is
// in flight; the driver owns the line for the duration of one exchange.
//
// # Datasheet
//
// https://cdn-shop.adafruit.com/datasheets/AM2301.pdf
package am2301

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Dev represents an AM2301 sensor on a single GPIO pin.
type Dev struct {
	p gpio.PinIO

	mu       sync.Mutex
	shutdown chan struct{}

	// Clock access, swapped out by tests. sleep is the cooperative
	// suspension primitive used for the long waits; the decode
	// busy-poll only ever calls now.
	now   func() time.Time
	sleep func(time.Duration)

	// Start time of the previous exchange. Zero means no exchange has
	// happened yet and the first one may proceed immediately.
	lastWake time.Time
}

// New returns a Dev that communicates with an AM2301 connected to pin p.
//
// The line is open-drain and needs an external pull-up. The pin is driven
// high at construction so the first wake pulse starts from a settled
// level.
func New(p gpio.PinIO) (*Dev, error) {
	if p == nil {
		return nil, errors.New("am2301: pin is required")
	}
	d := &Dev{p: p, now: time.Now, sleep: time.Sleep}
	if err := d.p.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("am2301: failed to park the line high: %w", err)
	}
	return d, nil
}

// Sense implements physic.SenseEnv. It performs one protocol exchange and
// fills in the temperature and humidity; pressure is always 0 since the
// AM2301 does not measure it.
//
// When called less than 2 seconds after the previous attempt, Sense
// sleeps for the remainder of the interval first. The interval is counted
// from the start of the previous attempt regardless of its outcome, so
// retrying a failed read cannot hammer the sensor.
func (d *Dev) Sense(e *physic.Env) error {
	e.Temperature = 0
	e.Pressure = 0
	e.Humidity = 0

	d.mu.Lock()
	defer d.mu.Unlock()

	d.gate()
	f, err := d.readFrame()
	if err != nil {
		return err
	}

	// Humidity is transmitted in tenths of a percent.
	h := int32(f[0])<<8 | int32(f[1])
	e.Humidity = physic.RelativeHumidity(h) * physic.MilliRH

	// Temperature is sign-magnitude in tenths of a degree: the top bit
	// of the high byte is the sign, the remaining 15 bits the magnitude.
	t := int32(f[2]&0x7f)<<8 | int32(f[3])
	if f[2]&0x80 != 0 {
		t = -t
	}
	e.Temperature = physic.ZeroCelsius + physic.Temperature(t)*physic.Celsius/10

	return nil
}

// SenseContinuous returns a channel that receives a measurement roughly
// every interval. The minimum interval is 2 seconds, the fastest the
// sensor can be sampled. Readings that fail are skipped. To end the
// readings, call Halt().
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < minInterval {
		return nil, errors.New("am2301: invalid interval. minimum 2 seconds")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		return nil, errors.New("am2301: sense continuous already running")
	}

	d.shutdown = make(chan struct{})
	stop := d.shutdown
	ch := make(chan physic.Env, 16)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				close(ch)
				return
			case <-ticker.C:
				e := physic.Env{}
				if err := d.Sense(&e); err == nil {
					ch <- e
				}
			}
		}
	}()
	return ch, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Celsius / 10
	e.Pressure = 0
	e.Humidity = physic.MilliRH
}

// Halt implements conn.Resource. It interrupts a running
// SenseContinuous().
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		close(d.shutdown)
		d.shutdown = nil
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("am2301: %s", d.p)
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
