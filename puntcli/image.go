// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
)

// loadImage reads a firmware image. Intel HEX files carry their own
// addresses; gaps between segments are padded with 0xff, the erased flash
// value. Raw binaries are placed at fallbackAddress. Returns the image
// data and the address it belongs at.
func loadImage(path string, fallbackAddress uint32) ([]byte, uint32, error) {
	if strings.EqualFold(filepath.Ext(path), ".hex") {
		return loadHex(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	return data, fallbackAddress, nil
}

func loadHex(path string) ([]byte, uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(file); err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", path, err)
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, 0, fmt.Errorf("%s contains no data", path)
	}

	base := segments[0].Address
	end := base
	for _, s := range segments {
		if s.Address < base {
			base = s.Address
		}
		if segEnd := s.Address + uint32(len(s.Data)); segEnd > end {
			end = segEnd
		}
	}

	data := make([]byte, end-base)
	for i := range data {
		data[i] = 0xff
	}
	for _, s := range segments {
		copy(data[s.Address-base:], s.Data)
	}

	return data, base, nil
}
