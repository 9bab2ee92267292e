// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"encoding/binary"
)

// TargetHandle drives the raw bootloader command set over one exclusively
// owned connection. It performs no bounds checking of its own; callers
// either go through Target, which validates every request against the
// application flash window, or are expected to have done their own checks.
type TargetHandle struct {
	conn Conn

	// endpoint buffer sizes, discovered once at open time
	inBufferLength  int
	outBufferLength int
}

func newTargetHandle(conn Conn) (*TargetHandle, error) {
	in, out, err := conn.BufferSizes()
	if err != nil {
		return nil, ioError("endpoint inspection", err)
	}

	logger.Debugf("endpoint buffer sizes: in %d, out %d", in, out)

	return &TargetHandle{
		conn:            conn,
		inBufferLength:  in,
		outBufferLength: out,
	}, nil
}

// MaxReadChunkSize returns the largest chunk a single ReadMemory
// transaction can transfer, limited by the bulk-in endpoint buffer.
func (h *TargetHandle) MaxReadChunkSize() int {
	return h.inBufferLength
}

// MaxProgramChunkSize returns the largest data chunk a single Program
// transaction can carry. The payload shares the bulk-out buffer with the
// 4-byte address header.
func (h *TargetHandle) MaxProgramChunkSize() int {
	return h.outBufferLength - programHeaderSize
}

// BootloaderInfo queries the bootloader metadata from the target.
func (h *TargetHandle) BootloaderInfo() (*BootloaderInfo, error) {
	packet := make([]byte, infoPacketSize)

	read, err := h.transaction(cmdBootloaderInfo, nil, packet)
	if err != nil {
		return nil, err
	}

	return decodeBootloaderInfo(packet[:read])
}

// ReadCrc queries the target's checksum of the given memory area.
func (h *TargetHandle) ReadCrc(start uint32, length int) (uint32, error) {
	crcPacket := make([]byte, 4)

	_, err := h.transaction(cmdReadCrc, encodeAreaRequest(start, length), crcPacket)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(crcPacket), nil
}

// Verify compares the target memory at address against data with a
// checksum query. A mismatch is reported as ErrVerification.
func (h *TargetHandle) Verify(data []byte, address uint32) error {
	crc, err := h.ReadCrc(address, len(data))
	if err != nil {
		return err
	}

	if crc != Crc32(data) {
		return ErrVerification
	}

	return nil
}

// readChunk fills buf from target memory starting at the given address.
// Chunks must not exceed MaxReadChunkSize.
func (h *TargetHandle) readChunk(start uint32, buf []byte) error {
	_, err := h.transaction(cmdReadMemory, encodeAreaRequest(start, len(buf)), buf)
	return err
}

// programChunk writes one chunk into flash starting at the given address.
// The area has to be erased beforehand. Chunks must not exceed
// MaxProgramChunkSize.
func (h *TargetHandle) programChunk(start uint32, data []byte) error {
	_, err := h.transaction(cmdProgram, encodeProgramRequest(start, data), nil)
	return err
}

// ErasePage erases a single flash page. Caution: the page index is
// unchecked against the application flash window.
func (h *TargetHandle) ErasePage(page Page) error {
	statusPacket := make([]byte, 1)

	_, err := h.transaction(cmdErasePage, encodeErasePageRequest(page), statusPacket)
	if err != nil {
		return err
	}

	return decodeEraseStatus(statusPacket[0])
}

// ExitBootloader signals the target to leave the bootloader and start the
// application. The handle is unusable afterwards.
func (h *TargetHandle) ExitBootloader() error {
	_, err := h.transaction(cmdExit, nil, nil)
	return err
}

// Close releases the underlying connection.
func (h *TargetHandle) Close() error {
	return h.conn.Close()
}

// transaction performs one full command exchange: claim the protocol
// interface, issue the control transfer carrying the opcode, send the
// request payload if there is one, read the response if one is expected,
// release the interface. Any failing step fails the whole transaction as
// an *IoError; there is no retry at this layer. Returns the number of
// response bytes read.
func (h *TargetHandle) transaction(cmd command, writeData []byte, readData []byte) (int, error) {
	if err := h.conn.Claim(); err != nil {
		return 0, ioError("interface claim", err)
	}

	read, err := h.exchange(cmd, writeData, readData)

	if relErr := h.conn.Release(); err == nil && relErr != nil {
		err = ioError("interface release", relErr)
	}

	return read, err
}

func (h *TargetHandle) exchange(cmd command, writeData []byte, readData []byte) (int, error) {
	logger.Tracef("command 0x%02x: %d bytes out, up to %d bytes in",
		byte(cmd), len(writeData), len(readData))

	if err := h.conn.Control(byte(cmd), usbTransactionTimeout); err != nil {
		return 0, ioError("control transfer", err)
	}

	if len(writeData) > 0 {
		if _, err := h.conn.BulkWrite(writeData, usbTransactionTimeout); err != nil {
			return 0, ioError("bulk write", err)
		}
	}

	read := 0
	if len(readData) > 0 {
		var err error
		read, err = h.conn.BulkRead(readData, usbTransactionTimeout)
		if err != nil {
			return 0, ioError("bulk read", err)
		}
	}

	return read, nil
}
