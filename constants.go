// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"time"

	"github.com/google/gousb"
)

// USB identity of a punt target. The vendor/product pair is the shared
// V-USB id space, so it is necessary but not sufficient: the manufacturer
// and product descriptor strings have to match exactly as well before a
// device is treated as a punt bootloader.
const (
	puntVid gousb.ID = 0x16c0
	puntPid gousb.ID = 0x05dc

	expectedManufacturer = "kleinert.dev"
	expectedProduct      = "punt"
)

type command byte

// Commands understood by the punt bootloader, carried as the request value
// of a vendor control transfer. See commands.h in the bootloader firmware.
const (
	cmdBootloaderInfo command = 0x01
	cmdReadCrc        command = 0x02
	cmdReadMemory     command = 0x03
	cmdErasePage      command = 0x04
	cmdProgram        command = 0x05
	cmdExit           command = 0xff
)

// usb endpoint and transfer definitions
const (
	usbConfiguration = 1
	usbInterface     = 0

	usbBulkOutEndpointNo = 2
	usbBulkInEndpointNo  = 1

	// every single transfer of a transaction is bounded by this timeout
	usbTransactionTimeout = 500 * time.Millisecond
)

// flash geometry of the target microcontroller
const (
	// FlashBase is the address of the first byte of the target's flash.
	FlashBase uint32 = 0x08000000

	// PageSize is the size of one erasable flash page in bytes.
	PageSize uint32 = 1024

	// page indices are transferred as a single byte
	pageCount = 256
)

// erase status codes reported by the ErasePage command
const (
	eraseStatusOk           = 0x00
	eraseStatusProhibited   = 0x01
	eraseStatusVerifyFailed = 0x02
)

// the Program command prefixes every chunk with its target address
const programHeaderSize = 4

// size of the receive buffer for the BootloaderInfo response
const infoPacketSize = 64
