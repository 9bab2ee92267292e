// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package gopunt talks to microcontrollers running the punt bootloader
// over USB. It discovers connected targets, validates that a device really
// speaks the punt protocol, queries bootloader and flash metadata and
// performs erase, program and read-verify cycles against the application
// flash.
//
// A typical flashing session:
//
//	ctx, err := gopunt.NewContext()
//	// ...
//	defer ctx.Close()
//
//	info, err := ctx.PickTarget("")
//	target, err := ctx.Open(info)
//	defer target.Close()
//
//	erase, err := target.EraseArea(target.Info.ApplicationBase, len(image))
//	err = gopunt.Execute(erase)
//
//	program, err := target.ProgramAt(image, target.Info.ApplicationBase)
//	err = gopunt.Execute(program)
//
//	err = target.Verify(image, target.Info.ApplicationBase)
package gopunt

import (
	"strings"
)

// Context owns the transport used for discovery and session setup.
type Context struct {
	transport Transport
}

// NewContext creates a context backed by the real USB stack.
func NewContext() (*Context, error) {
	return &Context{transport: NewUsbTransport()}, nil
}

// NewContextWithTransport creates a context on a caller supplied
// transport, e.g. a deterministic fake in tests.
func NewContextWithTransport(t Transport) *Context {
	return &Context{transport: t}
}

// Close releases the transport.
func (c *Context) Close() error {
	return c.transport.Close()
}

// FindTargets returns information about all connected targets in
// bootloader mode. Devices that merely share the punt vendor/product id
// but fail the descriptor string check are skipped silently, as are
// devices whose strings cannot be read at all (they may have disconnected
// mid-scan).
func (c *Context) FindTargets() ([]TargetInfo, error) {
	devices, err := c.transport.Devices()
	if err != nil {
		return nil, err
	}

	var targets []TargetInfo
	for _, dev := range devices {
		serial, err := checkIdentity(dev)
		if err == nil {
			targets = append(targets, TargetInfo{
				BusNumber:  dev.BusNumber(),
				BusAddress: dev.BusAddress(),
				Serial:     serial,
			})
			logger.Debugf("found punt target %s on bus %03d:%03d",
				serial, dev.BusNumber(), dev.BusAddress())
		}
		dev.Close()
	}

	return targets, nil
}

// PickTarget selects one target. With a serial number it returns the
// matching target or ErrTargetNotFound. Without one it returns the single
// connected target, ErrTargetNotFound if there is none, or
// ErrTooManyMatches if the choice would be ambiguous.
func (c *Context) PickTarget(serial string) (TargetInfo, error) {
	targets, err := c.FindTargets()
	if err != nil {
		return TargetInfo{}, err
	}

	if serial != "" {
		for _, target := range targets {
			if target.Serial == serial {
				return target, nil
			}
		}
		return TargetInfo{}, ErrTargetNotFound
	}

	switch len(targets) {
	case 0:
		return TargetInfo{}, ErrTargetNotFound
	case 1:
		return targets[0], nil
	default:
		return TargetInfo{}, ErrTooManyMatches
	}
}

// Open connects to the target described by info. The device is re-located
// by bus number and address and its identity is checked again, so that no
// commands are ever sent to an unrelated device that re-enumerated onto
// the same address in the meantime. The bootloader metadata is fetched
// once as part of opening.
func (c *Context) Open(info TargetInfo) (*Target, error) {
	devices, err := c.transport.Devices()
	if err != nil {
		return nil, err
	}

	var target *Target
	firstErr := error(nil)

	for _, dev := range devices {
		if target != nil || firstErr != nil {
			dev.Close()
			continue
		}

		if dev.BusNumber() != info.BusNumber || dev.BusAddress() != info.BusAddress {
			dev.Close()
			continue
		}

		serial, err := checkIdentity(dev)
		switch {
		case err != nil:
			firstErr = err
			dev.Close()
		case serial != info.Serial:
			firstErr = ErrTargetNotFound
			dev.Close()
		default:
			target, firstErr = connect(dev)
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if target == nil {
		return nil, ErrTargetNotFound
	}

	return target, nil
}

func connect(dev Device) (*Target, error) {
	conn, err := dev.Connect()
	if err != nil {
		dev.Close()
		return nil, ioError("device open", err)
	}

	handle, err := newTargetHandle(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	info, err := handle.BootloaderInfo()
	if err != nil {
		conn.Close()
		return nil, err
	}

	logger.Debugf("opened punt target, application window 0x%08x+%d",
		info.ApplicationBase, info.ApplicationSize)

	return &Target{handle: handle, Info: info}, nil
}

// checkIdentity verifies the descriptor strings of a device that already
// matched the shared vendor/product id and returns its serial number with
// any trailing terminator stripped. A string mismatch is
// ErrUnsupportedTarget.
func checkIdentity(dev Device) (string, error) {
	manufacturer, err := dev.Manufacturer()
	if err != nil {
		return "", ioError("descriptor read", err)
	}

	product, err := dev.Product()
	if err != nil {
		return "", ioError("descriptor read", err)
	}

	if manufacturer != expectedManufacturer || product != expectedProduct {
		return "", ErrUnsupportedTarget
	}

	serial, err := dev.SerialNumber()
	if err != nil {
		return "", ioError("descriptor read", err)
	}

	return strings.TrimRight(serial, "\x00"), nil
}
