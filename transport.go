// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"time"

	"github.com/google/gousb"
)

// Transport abstracts the raw USB access the bootloader protocol needs.
// The production implementation sits on top of gousb (see usb.go); tests
// inject a deterministic fake.
type Transport interface {
	// Devices returns all connected devices carrying the punt
	// vendor/product id pair. The caller owns the returned devices and has
	// to close every one it does not connect to.
	Devices() ([]Device, error)

	// Close releases the underlying USB context.
	Close() error
}

// Device is one enumerated USB device. It is a descriptor level view; no
// protocol traffic happens before Connect.
type Device interface {
	BusNumber() int
	BusAddress() int
	VendorID() gousb.ID
	ProductID() gousb.ID

	// Descriptor strings, read in the device's first reported language.
	Manufacturer() (string, error)
	Product() (string, error)
	SerialNumber() (string, error)

	// Connect hands the device over to a connection. After a successful
	// Connect the connection owns the device and Close must not be called
	// on the device anymore.
	Connect() (Conn, error)

	Close() error
}

// Conn is an exclusively owned connection to one opened device. All
// transfer primitives respect the supplied timeout and report transport
// failures verbatim; mapping them into the library's error set is the
// caller's job.
type Conn interface {
	// BufferSizes reports the max packet sizes of the bulk-in and bulk-out
	// endpoints of the active configuration's first interface.
	BufferSizes() (in int, out int, err error)

	// Claim takes exclusive access to the protocol interface. Every claim
	// has to be paired with a Release.
	Claim() error
	Release() error

	// Control issues the zero-payload vendor control transfer carrying a
	// command opcode (host to device, recipient device).
	Control(request byte, timeout time.Duration) error

	// BulkWrite sends data over the fixed bulk-out channel. Only valid
	// between Claim and Release.
	BulkWrite(data []byte, timeout time.Duration) (int, error)

	// BulkRead fills buf from the fixed bulk-in channel. Only valid
	// between Claim and Release.
	BulkRead(buf []byte, timeout time.Duration) (int, error)

	Close() error
}
