// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"fmt"
)

// Version is the bootloader firmware version.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// BootloaderInfo is the metadata the bootloader reports about itself and
// the application flash window. It is fetched once when a target is opened
// and not re-validated afterwards.
type BootloaderInfo struct {
	// BuildNumber of the bootloader firmware.
	BuildNumber uint32

	// BuildDate formatted as an ISO 8601 date (YYYY-MM-DD).
	BuildDate string

	// ApplicationBase is the start address of the application flash.
	ApplicationBase uint32

	// ApplicationSize is the application flash size in bytes.
	ApplicationSize int

	// Version of the bootloader firmware.
	Version Version

	// Identifier string, usually the MCU part number.
	Identifier string
}

// containsArea reports whether [start, start+length) lies fully within the
// application flash window.
func (i *BootloaderInfo) containsArea(start uint32, length int) bool {
	base := uint64(i.ApplicationBase)
	end := base + uint64(i.ApplicationSize)

	return uint64(start) >= base && uint64(start)+uint64(length) <= end
}

// containsPage reports whether the whole page lies within the application
// flash window.
func (i *BootloaderInfo) containsPage(page Page) bool {
	return i.containsArea(page.Begin(), int(PageSize))
}

func (i *BootloaderInfo) String() string {
	return fmt.Sprintf("Firmware version: %s\n"+
		"Firmware build number: %d\n"+
		"Firmware build date: %s\n"+
		"Bootloader identifier: %s\n"+
		"Application flash base address: 0x%08x\n"+
		"Application flash size: %d KiB\n",
		i.Version, i.BuildNumber, i.BuildDate, i.Identifier,
		i.ApplicationBase, i.ApplicationSize/1024)
}
