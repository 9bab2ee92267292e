// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/gousb"
)

// errInjected is the transport failure the fakes produce on demand.
var errInjected = errors.New("injected transport fault")

// fakeTransport serves a fixed device list.
type fakeTransport struct {
	devices []*fakeDevice
	err     error
}

func (t *fakeTransport) Devices() ([]Device, error) {
	if t.err != nil {
		return nil, t.err
	}

	devices := make([]Device, len(t.devices))
	for i, dev := range t.devices {
		devices[i] = dev
	}
	return devices, nil
}

func (t *fakeTransport) Close() error {
	return nil
}

// fakeDevice is a punt-shaped USB device descriptor.
type fakeDevice struct {
	bus, address int
	manufacturer string
	product      string
	serial       string
	conn         *fakeConn
	closes       int
}

func newFakeDevice(serial string, conn *fakeConn) *fakeDevice {
	return &fakeDevice{
		bus:          1,
		address:      4,
		manufacturer: expectedManufacturer,
		product:      expectedProduct,
		serial:       serial,
		conn:         conn,
	}
}

func (d *fakeDevice) BusNumber() int                { return d.bus }
func (d *fakeDevice) BusAddress() int               { return d.address }
func (d *fakeDevice) VendorID() gousb.ID            { return puntVid }
func (d *fakeDevice) ProductID() gousb.ID           { return puntPid }
func (d *fakeDevice) Manufacturer() (string, error) { return d.manufacturer, nil }
func (d *fakeDevice) Product() (string, error)      { return d.product, nil }
func (d *fakeDevice) SerialNumber() (string, error) { return d.serial, nil }

func (d *fakeDevice) Connect() (Conn, error) {
	if d.conn == nil {
		return nil, errInjected
	}
	return d.conn, nil
}

func (d *fakeDevice) Close() error {
	d.closes++
	return nil
}

// fakeConn scripts the device side of transactions: queued bulk-in
// payloads, optional fault injection, and a full record of the traffic.
type fakeConn struct {
	inSize  int
	outSize int

	// bulk-in payloads, consumed one per reading transaction
	responses [][]byte

	// index of the transaction whose control transfer fails; -1 never
	failOn int

	// injected bracket failures
	claimErr   error
	releaseErr error

	// recorded traffic
	controls []byte
	writes   [][]byte

	transactions int
	claimed      bool
	closed       bool
}

func newFakeConn(inSize, outSize int) *fakeConn {
	return &fakeConn{inSize: inSize, outSize: outSize, failOn: -1}
}

func (c *fakeConn) queueResponse(data []byte) {
	c.responses = append(c.responses, data)
}

// queueEraseStatus scripts n successful ErasePage responses.
func (c *fakeConn) queueEraseStatus(n int) {
	for i := 0; i < n; i++ {
		c.queueResponse([]byte{eraseStatusOk})
	}
}

// queueInfo scripts a full BootloaderInfo response.
func (c *fakeConn) queueInfo(info testInfo) {
	packet := make([]byte, 16)
	binary.LittleEndian.PutUint32(packet[0:], info.rawDate)
	binary.LittleEndian.PutUint32(packet[4:], info.buildNumber)
	binary.LittleEndian.PutUint32(packet[8:], info.base)
	binary.LittleEndian.PutUint32(packet[12:], info.size)
	packet = append(packet, info.major, info.minor, info.patch)
	packet = append(packet, []byte(info.identifier)...)
	c.queueResponse(packet)
}

type testInfo struct {
	rawDate             uint32
	buildNumber         uint32
	base, size          uint32
	major, minor, patch byte
	identifier          string
}

var defaultTestInfo = testInfo{
	rawDate:     20200614,
	buildNumber: 42,
	base:        0x08000000,
	size:        128 * 1024,
	major:       1, minor: 2, patch: 3,
	identifier: "STM32F072C8",
}

func (c *fakeConn) BufferSizes() (int, int, error) {
	return c.inSize, c.outSize, nil
}

func (c *fakeConn) Claim() error {
	if c.claimErr != nil {
		return c.claimErr
	}
	if c.claimed {
		return errors.New("interface already claimed")
	}
	c.claimed = true
	return nil
}

func (c *fakeConn) Release() error {
	if !c.claimed {
		return errors.New("interface not claimed")
	}
	c.claimed = false
	return c.releaseErr
}

func (c *fakeConn) Control(request byte, timeout time.Duration) error {
	if c.failOn >= 0 && c.transactions == c.failOn {
		return errInjected
	}

	c.transactions++
	c.controls = append(c.controls, request)
	return nil
}

func (c *fakeConn) BulkWrite(data []byte, timeout time.Duration) (int, error) {
	if !c.claimed {
		return 0, errors.New("bulk write outside claim")
	}

	c.writes = append(c.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (c *fakeConn) BulkRead(buf []byte, timeout time.Duration) (int, error) {
	if !c.claimed {
		return 0, errors.New("bulk read outside claim")
	}
	if len(c.responses) == 0 {
		return 0, errors.New("no scripted response left")
	}

	response := c.responses[0]
	c.responses = c.responses[1:]
	return copy(buf, response), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// newTestTarget wires a Target directly onto a fake connection, skipping
// discovery.
func newTestTarget(conn *fakeConn) *Target {
	handle, err := newTargetHandle(conn)
	if err != nil {
		panic(err)
	}

	return &Target{
		handle: handle,
		Info: &BootloaderInfo{
			BuildNumber:     defaultTestInfo.buildNumber,
			BuildDate:       "2020-06-14",
			ApplicationBase: defaultTestInfo.base,
			ApplicationSize: int(defaultTestInfo.size),
			Version:         Version{1, 2, 3},
			Identifier:      defaultTestInfo.identifier,
		},
	}
}
