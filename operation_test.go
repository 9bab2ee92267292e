// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestProgramOperationChunking(t *testing.T) {
	// bulk-out buffer of 68 leaves 64 bytes of payload per chunk
	conn := newFakeConn(64, 68)
	target := newTestTarget(conn)

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}

	op, err := target.ProgramAt(data, 0x08000000)
	if err != nil {
		t.Fatal(err)
	}

	if op.Total() != 300 {
		t.Fatalf("Total() = %d, want 300", op.Total())
	}

	wantProgress := []int{64, 128, 192, 256, 300}
	for i, want := range wantProgress {
		progress, ok, err := op.Step()
		if err != nil || !ok {
			t.Fatalf("step %d: progress %d ok %v err %v", i, progress, ok, err)
		}
		if progress != want {
			t.Fatalf("step %d: progress %d, want %d", i, progress, want)
		}
	}

	// exhausted afterwards
	if _, ok, err := op.Step(); ok || err != nil {
		t.Fatalf("exhausted operation returned ok=%v err=%v", ok, err)
	}

	if len(conn.writes) != 5 {
		t.Fatalf("issued %d transactions, want 5", len(conn.writes))
	}

	// every chunk goes to its absolute address with the data in place
	offset := 0
	for i, write := range conn.writes {
		address := binary.LittleEndian.Uint32(write[:4])
		if address != 0x08000000+uint32(offset) {
			t.Errorf("chunk %d written at 0x%08x", i, address)
		}
		if !bytes.Equal(write[4:], data[offset:offset+len(write)-4]) {
			t.Errorf("chunk %d carries wrong data", i)
		}
		offset += len(write) - 4
	}
	if offset != 300 {
		t.Errorf("chunks cover %d bytes", offset)
	}
}

func TestProgramOperationFusesAfterFailure(t *testing.T) {
	conn := newFakeConn(64, 68)
	conn.failOn = 2
	target := newTestTarget(conn)

	op, err := target.ProgramAt(make([]byte, 300), 0x08000000)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, ok, err := op.Step(); !ok || err != nil {
			t.Fatalf("step %d failed early: ok=%v err=%v", i, ok, err)
		}
	}

	_, _, err = op.Step()
	var ioErr *IoError
	if !errors.As(err, &ioErr) {
		t.Fatalf("failing step returned %v", err)
	}

	// fused: no value, no error, and no further transactions
	before := conn.transactions
	for i := 0; i < 3; i++ {
		if _, ok, err := op.Step(); ok || err != nil {
			t.Fatalf("fused operation returned ok=%v err=%v", ok, err)
		}
	}
	if conn.transactions != before {
		t.Errorf("fused operation still issued transactions")
	}
}

func TestEraseOperationMinimalPageSet(t *testing.T) {
	conn := newFakeConn(64, 68)
	conn.queueEraseStatus(1)
	target := newTestTarget(conn)

	op, err := target.EraseArea(0x08000c00, 1024)
	if err != nil {
		t.Fatal(err)
	}

	if op.Total() != 1 {
		t.Fatalf("Total() = %d, want 1", op.Total())
	}

	if err := Execute(op); err != nil {
		t.Fatal(err)
	}

	if len(conn.writes) != 1 || !bytes.Equal(conn.writes[0], []byte{3}) {
		t.Errorf("erased pages %v, want exactly page 3", conn.writes)
	}
	if len(conn.controls) != 1 || conn.controls[0] != byte(cmdErasePage) {
		t.Errorf("issued opcodes % x", conn.controls)
	}
}

func TestEraseOperationProgress(t *testing.T) {
	conn := newFakeConn(64, 68)
	conn.queueEraseStatus(3)
	target := newTestTarget(conn)

	op, err := target.EraseArea(0x08000400, 3*1024)
	if err != nil {
		t.Fatal(err)
	}
	if op.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", op.Total())
	}

	for want := 1; want <= 3; want++ {
		progress, ok, err := op.Step()
		if err != nil || !ok || progress != want {
			t.Fatalf("got progress %d ok %v err %v, want %d", progress, ok, err, want)
		}
	}
	if _, ok, _ := op.Step(); ok {
		t.Error("operation not exhausted after last page")
	}
}

func TestEraseOperationSurfacesDeviceStatus(t *testing.T) {
	tests := []struct {
		status byte
		kind   EraseErrorKind
	}{
		{2, EraseVerifyFailed},
		{9, EraseUnknown},
	}

	for _, tt := range tests {
		conn := newFakeConn(64, 68)
		conn.queueResponse([]byte{tt.status})
		target := newTestTarget(conn)

		op, err := target.EraseArea(0x08000000, 1024)
		if err != nil {
			t.Fatal(err)
		}

		err = Execute(op)
		var eraseErr *EraseError
		if !errors.As(err, &eraseErr) || eraseErr.Kind() != tt.kind {
			t.Errorf("status %d surfaced as %v", tt.status, err)
		}

		// fused after the device reported the failure
		if _, ok, err := op.Step(); ok || err != nil {
			t.Errorf("operation not fused after erase status %d", tt.status)
		}
	}
}

func TestZeroLengthOperations(t *testing.T) {
	conn := newFakeConn(64, 68)
	target := newTestTarget(conn)

	erase, err := target.EraseArea(0x08000c00, 0)
	if err != nil {
		t.Fatal(err)
	}
	program, err := target.ProgramAt(nil, 0x08000000)
	if err != nil {
		t.Fatal(err)
	}
	read, err := target.ReadAt(nil, 0x08000000)
	if err != nil {
		t.Fatal(err)
	}

	for _, op := range []Operation{erase, program, read} {
		if op.Total() != 0 {
			t.Errorf("%T Total() = %d, want 0", op, op.Total())
		}
		if _, ok, err := op.Step(); ok || err != nil {
			t.Errorf("%T not born done: ok=%v err=%v", op, ok, err)
		}
	}

	if conn.transactions != 0 {
		t.Errorf("zero-length operations issued %d transactions", conn.transactions)
	}
}

func TestReadOperationFillsBuffer(t *testing.T) {
	conn := newFakeConn(64, 68)
	target := newTestTarget(conn)

	want := make([]byte, 100)
	for i := range want {
		want[i] = byte(0x80 ^ i)
	}
	conn.queueResponse(want[:64])
	conn.queueResponse(want[64:])

	buffer := make([]byte, 100)
	op, err := target.ReadAt(buffer, 0x08000400)
	if err != nil {
		t.Fatal(err)
	}

	if err := Execute(op); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(buffer, want) {
		t.Error("read buffer does not match scripted memory")
	}

	// both chunk requests carry start address and length
	if len(conn.writes) != 2 {
		t.Fatalf("issued %d read transactions", len(conn.writes))
	}
	first := conn.writes[0]
	if binary.LittleEndian.Uint32(first[:4]) != 0x08000400 ||
		binary.LittleEndian.Uint32(first[4:]) != 64 {
		t.Errorf("first read request % x", first)
	}
	second := conn.writes[1]
	if binary.LittleEndian.Uint32(second[:4]) != 0x08000440 ||
		binary.LittleEndian.Uint32(second[4:]) != 36 {
		t.Errorf("second read request % x", second)
	}
}

func TestExecuteSurfacesFirstError(t *testing.T) {
	conn := newFakeConn(64, 68)
	conn.failOn = 1
	target := newTestTarget(conn)

	op, err := target.ProgramAt(make([]byte, 200), 0x08000000)
	if err != nil {
		t.Fatal(err)
	}

	var ioErr *IoError
	if err := Execute(op); !errors.As(err, &ioErr) {
		t.Fatalf("Execute returned %v", err)
	}
}
