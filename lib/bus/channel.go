// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus defines the byte channel that storage devices are reached
// through.
//
// A Channel moves framed byte sequences to and from a fixed target
// address on a shared serial bus. It knows nothing about memory
// addresses or pages; those belong to the device layer above (see
// lib/eeprom). Two implementations exist: lib/bus/i2cdev talks to a
// Linux i2c-dev character device, and lib/bus/simbus simulates a
// 24C-series EEPROM in memory for tests and image preparation.
//
// Acknowledgement is reported through transfer counts, not errors. A
// target that does not acknowledge (for example because it is busy
// completing an internal write cycle) produces a count shorter than
// requested with a nil error. A non-nil error means the channel itself
// failed and the operation cannot continue.
package bus

import "fmt"

// Condition selects how a transfer ends.
type Condition int

const (
	// Stop releases the bus after the transfer.
	Stop Condition = iota

	// RepeatedStart keeps the bus claimed for a following transfer.
	RepeatedStart
)

// String returns the condition name used in traces and logs.
func (c Condition) String() string {
	switch c {
	case Stop:
		return "stop"
	case RepeatedStart:
		return "repeated-start"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// Channel is a master-side serial bus connection.
type Channel interface {
	// Send transmits data to target and returns the number of bytes
	// the target acknowledged.
	Send(target uint16, data []byte, condition Condition) (int, error)

	// Receive reads up to len(buf) bytes from target and returns the
	// number received.
	Receive(target uint16, buf []byte, condition Condition) (int, error)

	// BusBusy reports whether another transaction holds the bus.
	BusBusy() bool
}

// Aborter is implemented by channels that can cancel a half-finished
// transaction and return the controller to idle.
type Aborter interface {
	Abort() error
}

// Abort aborts the current transaction on channel if it supports
// Aborter. Channels without abort support are left as they are.
func Abort(channel Channel) error {
	aborter, ok := channel.(Aborter)
	if !ok {
		return nil
	}
	return aborter.Abort()
}

// Closer is implemented by channels that hold an operating system
// resource.
type Closer interface {
	Close() error
}

// Close releases channel's resources if it has any.
func Close(channel Channel) error {
	closer, ok := channel.(Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}
