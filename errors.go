// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gopunt

import (
	"errors"
	"fmt"
)

// The closed set of errors produced by this library. Every failing call
// returns exactly one of the sentinels below, an *EraseError or an
// *IoError.
var (
	// ErrTargetNotFound is returned when no connected target matches the
	// selection criteria.
	ErrTargetNotFound = errors.New("target not found")

	// ErrUnsupportedTarget is returned when a device carries the punt
	// vendor/product id but its descriptor strings do not match.
	ErrUnsupportedTarget = errors.New("target is unsupported")

	// ErrTooManyMatches is returned when more than one target is connected
	// and no serial number was given to disambiguate.
	ErrTooManyMatches = errors.New("too many matches")

	// ErrInvalidRequest is returned when a requested memory area lies
	// outside the application flash or violates alignment rules. No
	// transaction has been issued.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrVerification is returned when the checksum reported by the target
	// does not match the locally computed one.
	ErrVerification = errors.New("verification error")

	// ErrMalformedResponse is returned when a response packet cannot be
	// decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// EraseErrorKind classifies the nonzero status codes of the ErasePage
// command.
type EraseErrorKind uint8

const (
	EraseProhibited EraseErrorKind = iota
	EraseVerifyFailed
	EraseUnknown
)

// EraseError reports a nonzero status byte returned by the ErasePage
// command. Code holds the raw value from the wire.
type EraseError struct {
	Code byte
}

func (e *EraseError) Kind() EraseErrorKind {
	switch e.Code {
	case eraseStatusProhibited:
		return EraseProhibited
	case eraseStatusVerifyFailed:
		return EraseVerifyFailed
	default:
		return EraseUnknown
	}
}

func (e *EraseError) Error() string {
	switch e.Kind() {
	case EraseProhibited:
		return "flash erase error: page is prohibited"
	case EraseVerifyFailed:
		return "flash erase error: erase verification failed"
	default:
		return fmt.Sprintf("flash erase error: unknown status code 0x%02x", e.Code)
	}
}

// IoError wraps a transport level failure, including timeouts and
// disconnects. Op names the transaction step that failed.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("usb i/o error during %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

func ioError(op string, err error) error {
	return &IoError{Op: op, Err: err}
}
