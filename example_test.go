// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package am2301_test

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/thomas-god/am2301"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// The AM2301 data line, wired with an external pull-up.
	p := gpioreg.ByName("GPIO4")
	if p == nil {
		log.Fatal("failed to find GPIO4")
	}

	d, err := am2301.New(p)
	if err != nil {
		log.Fatalf("failed to initialize am2301: %v", err)
	}

	// Read temperature and humidity from the sensor. Sense enforces the
	// sensor's 2 second minimum interval by itself.
	e := physic.Env{}
	if err := d.Sense(&e); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%8s %9s\n", e.Temperature, e.Humidity)
}
