// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

// TargetInfo identifies one enumerated punt target. It is an ephemeral
// discovery result, not a live connection; the device may re-enumerate
// between discovery and Open.
type TargetInfo struct {
	// BusNumber of the USB bus the target is connected to.
	BusNumber int

	// BusAddress of the target on its bus.
	BusAddress int

	// Serial number string from the device descriptor, with any trailing
	// terminator stripped.
	Serial string
}

// Target is an opened punt bootloader session. It owns the device
// connection exclusively and validates every memory operation against the
// application flash window before any transaction is issued. Operations
// must not be driven concurrently on one target.
type Target struct {
	handle *TargetHandle

	// Info is the metadata snapshot fetched when the target was opened.
	Info *BootloaderInfo
}

// Handle exposes the raw, unvalidated command layer. Callers using it are
// responsible for their own bounds checking.
func (t *Target) Handle() *TargetHandle {
	return t.handle
}

// ReadCrc queries the target's checksum for a memory area.
func (t *Target) ReadCrc(address uint32, length int) (uint32, error) {
	return t.handle.ReadCrc(address, length)
}

// Verify checks the target memory at address against data with a checksum
// query and returns ErrVerification on a mismatch.
func (t *Target) Verify(data []byte, address uint32) error {
	return t.handle.Verify(data, address)
}

// ErasePage erases a single page after checking that it lies within the
// application flash.
func (t *Target) ErasePage(page Page) error {
	if !t.Info.containsPage(page) {
		return ErrInvalidRequest
	}

	return t.handle.ErasePage(page)
}

// ErasePages builds an erase operation over an explicit, not necessarily
// contiguous set of pages. Duplicates collapse; pages are erased in
// ascending index order.
func (t *Target) ErasePages(pages []Page) (*EraseOperation, error) {
	for _, page := range pages {
		if !t.Info.containsPage(page) {
			return nil, ErrInvalidRequest
		}
	}

	plan := newErasePlan()
	plan.addPages(pages)

	return newEraseOperation(t.handle, plan.pages()), nil
}

// EraseArea builds an erase operation over the minimal set of pages
// covering [start, start+length). Due to the page-wise erase this will in
// general erase a larger area than requested.
func (t *Target) EraseArea(start uint32, length int) (*EraseOperation, error) {
	if !t.Info.containsArea(start, length) {
		return nil, ErrInvalidRequest
	}

	plan := newErasePlan()
	plan.addArea(start, length)

	return newEraseOperation(t.handle, plan.pages()), nil
}

// ProgramAt builds a program operation writing data to flash starting at
// address. The area has to be erased beforehand for programming to
// succeed.
func (t *Target) ProgramAt(data []byte, address uint32) (*ProgramOperation, error) {
	if !t.Info.containsArea(address, len(data)) {
		return nil, ErrInvalidRequest
	}

	// programming works halfword-wise, the bootloader crashes on an
	// unaligned start address
	if address%2 != 0 {
		return nil, ErrInvalidRequest
	}

	return newProgramOperation(t.handle, data, address), nil
}

// ReadAt builds a read operation filling buffer from target memory
// starting at address.
func (t *Target) ReadAt(buffer []byte, address uint32) (*ReadOperation, error) {
	if !t.Info.containsArea(address, len(buffer)) {
		return nil, ErrInvalidRequest
	}

	return newReadOperation(t.handle, buffer, address), nil
}

// ExitBootloader signals the target to start its application. The target
// is unusable afterwards and should be closed.
func (t *Target) ExitBootloader() error {
	return t.handle.ExitBootloader()
}

// Close releases the device connection.
func (t *Target) Close() error {
	return t.handle.Close()
}
