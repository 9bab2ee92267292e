// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

// CRC32 parameters matching the MPEG-2 convention used by the bootloader's
// hardware CRC unit: unreflected, no final xor.
const (
	crc32Polynomial   = 0x04c11db7
	crc32InitialValue = 0xffffffff
	crc32HighBitMask  = 0x80000000
)

// Crc32 computes the checksum of buf exactly the way the punt firmware
// does: the input is processed in 4-byte words, a short final word is
// zero-padded at its tail, and each word's byte order is reversed before
// it is folded into the running CRC. The result is byte-exact with the
// value the ReadCrc command reports for the same data.
func Crc32(buf []byte) uint32 {
	crc := uint32(crc32InitialValue)

	for i := 0; i < len(buf); i += 4 {
		var word [4]byte
		copy(word[:], buf[i:])

		for j := 3; j >= 0; j-- {
			crc = crc32Byte(crc, word[j])
		}
	}

	return crc
}

func crc32Byte(crc uint32, b byte) uint32 {
	crc ^= uint32(b) << 24

	for i := 0; i < 8; i++ {
		if crc&crc32HighBitMask != 0 {
			crc = (crc << 1) ^ crc32Polynomial
		} else {
			crc = crc << 1
		}
	}

	return crc
}
