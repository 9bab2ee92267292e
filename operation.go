// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

// Operation is a lazily evaluated multi-transaction sequence, e.g. erasing
// or transferring a larger memory area in endpoint-sized steps.
// Constructing an operation performs no USB traffic; every Step issues
// exactly one transaction. This is what makes step-wise progress reporting
// possible without any background execution.
//
// Step returns the cumulative progress after a successful transaction.
// When the sequence is exhausted it returns ok == false and no error.
// After the first failing transaction the operation is fused: the error is
// returned once and every later Step reports exhaustion without touching
// the transport again.
type Operation interface {
	// Total returns the fixed denominator the progress values count
	// towards: pages for an erase, bytes for a program or read.
	Total() int

	// Step performs one transaction.
	Step() (progress int, ok bool, err error)
}

// Execute drives an operation to completion, discarding intermediate
// progress values, and returns the first error to occur.
func Execute(op Operation) error {
	for {
		_, ok, err := op.Step()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// EraseOperation erases a set of pages, one page per step. Progress is
// the number of pages erased so far.
type EraseOperation struct {
	handle *TargetHandle
	pages  []Page
	count  int
	done   bool
}

func newEraseOperation(handle *TargetHandle, pages []Page) *EraseOperation {
	return &EraseOperation{
		handle: handle,
		pages:  pages,
		count:  len(pages),
		done:   len(pages) == 0,
	}
}

func (op *EraseOperation) Total() int {
	return op.count
}

func (op *EraseOperation) Step() (int, bool, error) {
	if op.done {
		return 0, false, nil
	}

	page := op.pages[0]
	op.pages = op.pages[1:]

	if len(op.pages) == 0 {
		op.done = true
	}

	if err := op.handle.ErasePage(page); err != nil {
		op.done = true
		return 0, false, err
	}

	return op.count - len(op.pages), true, nil
}

// ProgramOperation writes a buffer into flash in chunks sized to the
// bulk-out endpoint. Progress is the number of bytes written so far.
type ProgramOperation struct {
	handle    *TargetHandle
	data      []byte
	address   uint32
	chunkSize int
	written   int
	done      bool
}

func newProgramOperation(handle *TargetHandle, data []byte, address uint32) *ProgramOperation {
	return &ProgramOperation{
		handle:    handle,
		data:      data,
		address:   address,
		chunkSize: handle.MaxProgramChunkSize(),
		done:      len(data) == 0,
	}
}

func (op *ProgramOperation) Total() int {
	return len(op.data)
}

func (op *ProgramOperation) Step() (int, bool, error) {
	if op.done {
		return 0, false, nil
	}

	end := op.written + op.chunkSize
	if end > len(op.data) {
		end = len(op.data)
	}
	chunk := op.data[op.written:end]

	if err := op.handle.programChunk(op.address+uint32(op.written), chunk); err != nil {
		op.done = true
		return 0, false, err
	}

	op.written = end
	if op.written == len(op.data) {
		op.done = true
	}

	return op.written, true, nil
}

// ReadOperation fills a caller supplied buffer from target memory in
// chunks sized to the bulk-in endpoint. Progress is the number of bytes
// read so far.
type ReadOperation struct {
	handle    *TargetHandle
	buffer    []byte
	address   uint32
	chunkSize int
	read      int
	done      bool
}

func newReadOperation(handle *TargetHandle, buffer []byte, address uint32) *ReadOperation {
	return &ReadOperation{
		handle:    handle,
		buffer:    buffer,
		address:   address,
		chunkSize: handle.MaxReadChunkSize(),
		done:      len(buffer) == 0,
	}
}

func (op *ReadOperation) Total() int {
	return len(op.buffer)
}

func (op *ReadOperation) Step() (int, bool, error) {
	if op.done {
		return 0, false, nil
	}

	end := op.read + op.chunkSize
	if end > len(op.buffer) {
		end = len(op.buffer)
	}

	if err := op.handle.readChunk(op.address+uint32(op.read), op.buffer[op.read:end]); err != nil {
		op.done = true
		return 0, false, err
	}

	op.read = end
	if op.read == len(op.buffer) {
		op.done = true
	}

	return op.read, true, nil
}
