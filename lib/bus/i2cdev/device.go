// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package i2cdev implements bus.Channel over a Linux i2c-dev character
// device such as /dev/i2c-1.
//
// Each Send or Receive is one plain read(2) or write(2) on the device
// node, which the kernel frames as a single transfer terminated by a
// stop condition. The requested condition is therefore advisory: a
// RepeatedStart request still ends with stop. Targets that do not
// acknowledge surface from the kernel as EREMOTEIO or ENXIO and are
// reported as a zero-byte transfer.
package i2cdev

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/keyprov/lib/bus"
)

// ioctlSlave is I2C_SLAVE from linux/i2c-dev.h: select the target
// address for subsequent read/write calls.
const ioctlSlave = 0x0703

// Channel is an open i2c-dev adapter.
type Channel struct {
	path string

	mu       sync.Mutex
	fd       int
	target   uint16
	selected bool
	closed   bool
}

var _ bus.Channel = (*Channel)(nil)

// Open opens the adapter device node at path.
func Open(path string) (*Channel, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening i2c adapter %s: %w", path, err)
	}
	return &Channel{path: path, fd: fd}, nil
}

// Path returns the device node this channel was opened on.
func (c *Channel) Path() string { return c.path }

// Send writes data to target in one transfer.
func (c *Channel) Send(target uint16, data []byte, condition bus.Condition) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.selectTarget(target); err != nil {
		return 0, err
	}
	written, err := unix.Write(c.fd, data)
	if err != nil {
		if notAcknowledged(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("i2c write to 0x%02x on %s: %w", target, c.path, err)
	}
	return written, nil
}

// Receive reads up to len(buf) bytes from target in one transfer.
func (c *Channel) Receive(target uint16, buf []byte, condition bus.Condition) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.selectTarget(target); err != nil {
		return 0, err
	}
	read, err := unix.Read(c.fd, buf)
	if err != nil {
		if notAcknowledged(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("i2c read from 0x%02x on %s: %w", target, c.path, err)
	}
	return read, nil
}

// BusBusy always reports false. The kernel adapter driver arbitrates
// the bus and blocks read/write until it is free.
func (c *Channel) BusBusy() bool { return false }

// Close closes the device node. Further transfers fail.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}

func (c *Channel) selectTarget(target uint16) error {
	if c.closed {
		return fmt.Errorf("i2c adapter %s is closed", c.path)
	}
	if c.selected && c.target == target {
		return nil
	}
	if target > 0x7f {
		return fmt.Errorf("i2c target 0x%x is not a 7-bit address", target)
	}
	if err := unix.IoctlSetInt(c.fd, ioctlSlave, int(target)); err != nil {
		return fmt.Errorf("selecting i2c target 0x%02x on %s: %w", target, c.path, err)
	}
	c.target = target
	c.selected = true
	return nil
}

// notAcknowledged reports whether err is the kernel's way of saying
// the target did not ACK its address or a data byte.
func notAcknowledged(err error) bool {
	return errors.Is(err, unix.EREMOTEIO) || errors.Is(err, unix.ENXIO)
}
