// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package am2301

import (
	"fmt"
	"time"
)

// NoResponseError is returned when the sensor never starts its
// acknowledgment after the wake pulse. The sensor is likely disconnected
// or still powering up.
type NoResponseError struct{}

func (e *NoResponseError) Error() string {
	return "am2301: no response. Sensor did not acknowledge the wake pulse."
}

// ProtocolError is returned when an observed pulse falls outside its
// valid timing window: line noise, desynchronization or bad wiring.
type ProtocolError struct {
	// Phase of the exchange during which the pulse was observed.
	Phase string
	// Width of the offending pulse. Equal to the poll timeout when the
	// level never changed at all.
	Width time.Duration
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("am2301: protocol error. %s pulse of %s is outside its timing window.", e.Phase, e.Width)
}

// ChecksumError is returned when a full frame was decoded but its
// checksum byte does not match the sum of the payload, meaning a bit was
// corrupted in transmission. The frame is discarded.
type ChecksumError struct {
	// Received is the checksum byte transmitted by the sensor.
	Received uint8
	// Computed is the wrapping sum of the four payload bytes.
	Computed uint8
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("am2301: checksum mismatch. Frame carries %#02x, sum of payload is %#02x.", e.Received, e.Computed)
}
