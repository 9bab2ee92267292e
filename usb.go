// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// usbTransport is the production Transport on top of libusb via gousb.
type usbTransport struct {
	ctx *gousb.Context
}

// NewUsbTransport initializes a libusb context and returns a Transport
// bound to it.
func NewUsbTransport() Transport {
	return &usbTransport{ctx: gousb.NewContext()}
}

func (t *usbTransport) Devices() ([]Device, error) {
	devs, err := t.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == puntVid && desc.Product == puntPid
	})

	if err != nil {
		for _, dev := range devs {
			dev.Close()
		}
		logger.Error("got error during usb device scan: ", err)
		return nil, ioError("device enumeration", err)
	}

	logger.Debugf("found %d devices matching id %04x:%04x", len(devs),
		uint16(puntVid), uint16(puntPid))

	wrapped := make([]Device, 0, len(devs))
	for _, dev := range devs {
		wrapped = append(wrapped, &usbDevice{dev: dev})
	}

	return wrapped, nil
}

func (t *usbTransport) Close() error {
	return t.ctx.Close()
}

type usbDevice struct {
	dev *gousb.Device
}

func (d *usbDevice) BusNumber() int {
	return d.dev.Desc.Bus
}

func (d *usbDevice) BusAddress() int {
	return d.dev.Desc.Address
}

func (d *usbDevice) VendorID() gousb.ID {
	return d.dev.Desc.Vendor
}

func (d *usbDevice) ProductID() gousb.ID {
	return d.dev.Desc.Product
}

func (d *usbDevice) Manufacturer() (string, error) {
	return d.dev.Manufacturer()
}

func (d *usbDevice) Product() (string, error) {
	return d.dev.Product()
}

func (d *usbDevice) SerialNumber() (string, error) {
	return d.dev.SerialNumber()
}

func (d *usbDevice) Connect() (Conn, error) {
	return &usbConn{dev: d.dev}, nil
}

func (d *usbDevice) Close() error {
	return d.dev.Close()
}

type usbConn struct {
	dev *gousb.Device

	// valid between Claim and Release
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
}

func (c *usbConn) BufferSizes() (int, int, error) {
	cfg, ok := c.dev.Desc.Configs[usbConfiguration]
	if !ok || len(cfg.Interfaces) == 0 || len(cfg.Interfaces[0].AltSettings) == 0 {
		return 0, 0, fmt.Errorf("device has no configuration %d", usbConfiguration)
	}

	var in, out int
	for _, ep := range cfg.Interfaces[0].AltSettings[0].Endpoints {
		switch {
		case ep.Number == usbBulkInEndpointNo && ep.Direction == gousb.EndpointDirectionIn:
			in = ep.MaxPacketSize
		case ep.Number == usbBulkOutEndpointNo && ep.Direction == gousb.EndpointDirectionOut:
			out = ep.MaxPacketSize
		}
	}

	if in == 0 || out == 0 {
		return 0, 0, fmt.Errorf("bulk endpoints %d/%d not present",
			usbBulkInEndpointNo, usbBulkOutEndpointNo)
	}

	return in, out, nil
}

func (c *usbConn) Claim() error {
	cfg, err := c.dev.Config(usbConfiguration)
	if err != nil {
		return err
	}

	intf, err := cfg.Interface(usbInterface, 0)
	if err != nil {
		cfg.Close()
		return err
	}

	in, err := intf.InEndpoint(usbBulkInEndpointNo)
	if err != nil {
		intf.Close()
		cfg.Close()
		return err
	}

	out, err := intf.OutEndpoint(usbBulkOutEndpointNo)
	if err != nil {
		intf.Close()
		cfg.Close()
		return err
	}

	c.cfg, c.intf, c.in, c.out = cfg, intf, in, out
	return nil
}

func (c *usbConn) Release() error {
	if c.intf != nil {
		c.intf.Close()
		c.intf = nil
	}

	var err error
	if c.cfg != nil {
		err = c.cfg.Close()
		c.cfg = nil
	}

	c.in, c.out = nil, nil
	return err
}

func (c *usbConn) Control(request byte, timeout time.Duration) error {
	c.dev.ControlTimeout = timeout

	_, err := c.dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		request, 0, 0, nil)
	return err
}

func (c *usbConn) BulkWrite(data []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	written, err := c.out.WriteContext(ctx, data)
	if err != nil {
		return written, err
	}

	logger.Tracef("wrote %d bytes to bulk out endpoint", written)
	return written, nil
}

func (c *usbConn) BulkRead(buf []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	read, err := c.in.ReadContext(ctx, buf)
	if err != nil {
		return read, err
	}

	logger.Tracef("read %d bytes from bulk in endpoint", read)
	return read, nil
}

func (c *usbConn) Close() error {
	c.Release()
	return c.dev.Close()
}
