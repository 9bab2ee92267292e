// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"unicode/utf8"
)

// Request packet layouts, all integers little-endian. Every builder
// returns the complete bulk-out payload for one command; the opcode itself
// travels in the control transfer, not in the payload.

// encodeAreaRequest builds the 8-byte start/length payload shared by the
// ReadCrc and ReadMemory commands.
func encodeAreaRequest(start uint32, length int) []byte {
	buf := NewBuffer(8)
	buf.WriteUint32LE(start)
	buf.WriteUint32LE(uint32(length))
	return buf.Bytes()
}

// encodeProgramRequest builds a Program payload: the chunk's absolute
// start address followed by the chunk data.
func encodeProgramRequest(start uint32, data []byte) []byte {
	buf := NewBuffer(programHeaderSize + len(data))
	buf.WriteUint32LE(start)
	buf.Write(data)
	return buf.Bytes()
}

// encodeErasePageRequest builds the single-byte ErasePage payload.
func encodeErasePageRequest(page Page) []byte {
	return []byte{byte(page)}
}

// decodeEraseStatus maps the 1-byte ErasePage response onto the erase
// error taxonomy. Status 0 is success, everything else is an *EraseError
// carrying the raw code.
func decodeEraseStatus(status byte) error {
	if status == eraseStatusOk {
		return nil
	}
	return &EraseError{Code: status}
}

// decodeBootloaderInfo parses a BootloaderInfo response packet. The four
// 32-bit fields are mandatory; the version/identifier suffix is optional
// (older bootloader revisions do not send it), but if a version is present
// the identifier bytes have to decode as a terminated string.
func decodeBootloaderInfo(packet []byte) (*BootloaderInfo, error) {
	if len(packet) < 16 {
		return nil, ErrMalformedResponse
	}

	date, err := formatBuildDate(binary.LittleEndian.Uint32(packet[0:4]))
	if err != nil {
		return nil, err
	}

	info := &BootloaderInfo{
		BuildDate:       date,
		BuildNumber:     binary.LittleEndian.Uint32(packet[4:8]),
		ApplicationBase: binary.LittleEndian.Uint32(packet[8:12]),
		ApplicationSize: int(binary.LittleEndian.Uint32(packet[12:16])),
	}

	suffix := packet[16:]
	if len(suffix) == 0 {
		return info, nil
	}

	if len(suffix) < 3 {
		return nil, ErrMalformedResponse
	}

	info.Version = Version{Major: suffix[0], Minor: suffix[1], Patch: suffix[2]}

	info.Identifier, err = decodeIdentifier(suffix[3:])
	if err != nil {
		return nil, err
	}

	return info, nil
}

// formatBuildDate turns the raw date integer (e.g. 20200614) into
// YYYY-MM-DD by inserting the separators at fixed offsets.
func formatBuildDate(raw uint32) (string, error) {
	digits := strconv.FormatUint(uint64(raw), 10)
	if len(digits) != 8 {
		return "", ErrMalformedResponse
	}

	return digits[:4] + "-" + digits[4:6] + "-" + digits[6:], nil
}

// decodeIdentifier converts the identifier bytes occupying the rest of an
// info packet. A single trailing NUL terminator is tolerated; an interior
// NUL or invalid UTF-8 is a malformed response.
func decodeIdentifier(raw []byte) (string, error) {
	raw = bytes.TrimSuffix(raw, []byte{0})

	if bytes.IndexByte(raw, 0) >= 0 || !utf8.Valid(raw) {
		return "", ErrMalformedResponse
	}

	return string(raw), nil
}
