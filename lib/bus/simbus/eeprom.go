// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package simbus simulates a 24C-series serial EEPROM behind a
// bus.Channel.
//
// The simulation follows the parts closely enough that the paged
// transport in lib/eeprom runs against it unchanged:
//
//   - A transfer to any address other than the configured target is not
//     acknowledged.
//   - The first two bytes of a Send set the internal address pointer
//     (big-endian). Remaining bytes are written starting at the pointer
//     and wrap within the current page, as the parts do.
//   - After a Send that carried data, the device runs an internal write
//     cycle and refuses the next WriteCycle transfers (Send or Receive)
//     with a zero-byte acknowledgement.
//   - Receive returns sequential bytes from the pointer, wrapping at
//     the end of memory.
//
// Memory contents persist across runs through image files; see
// SaveImage and LoadImage.
package simbus

import (
	"fmt"
	"sync"

	"github.com/bureau-foundation/keyprov/lib/bus"
)

const (
	// DefaultTarget is the bus address of the HDCP key EEPROM on
	// most supported boards.
	DefaultTarget = 0x53

	// DefaultCapacity is the simulated memory size in bytes.
	DefaultCapacity = 2048

	// DefaultPageSize is the write page size of 24C16-class parts.
	DefaultPageSize = 16

	// DefaultWriteCycle is how many transfers are refused after a
	// write. Real parts refuse for about 5ms, which the transport
	// sees as one or more busy polls.
	DefaultWriteCycle = 2

	// erasedByte is the content of never-written EEPROM cells.
	erasedByte = 0xff
)

// Options configures a simulated device. Zero fields take the defaults
// above; WriteCycle of zero means the default, use a negative value to
// disable the write cycle entirely.
type Options struct {
	Target     uint16
	Capacity   int
	PageSize   int
	WriteCycle int
}

func (o Options) withDefaults() Options {
	if o.Target == 0 {
		o.Target = DefaultTarget
	}
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	if o.WriteCycle == 0 {
		o.WriteCycle = DefaultWriteCycle
	}
	if o.WriteCycle < 0 {
		o.WriteCycle = 0
	}
	return o
}

func (o Options) validate() error {
	if o.Target > 0x7f {
		return fmt.Errorf("simbus: target 0x%x is not a 7-bit address", o.Target)
	}
	if !powerOfTwo(o.PageSize) {
		return fmt.Errorf("simbus: page size %d is not a power of two", o.PageSize)
	}
	if !powerOfTwo(o.Capacity) || o.Capacity < o.PageSize {
		return fmt.Errorf("simbus: capacity %d must be a power of two of at least one page", o.Capacity)
	}
	if o.Capacity > 1<<16 {
		return fmt.Errorf("simbus: capacity %d exceeds the 16-bit address space", o.Capacity)
	}
	return nil
}

func powerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// EEPROM is a simulated device. It implements bus.Channel and
// bus.Aborter and is safe for concurrent use.
type EEPROM struct {
	options Options

	mu         sync.Mutex
	memory     []byte
	pointer    int
	writeCycle int
	busy       int
	aborts     int
	writes     int
}

var (
	_ bus.Channel = (*EEPROM)(nil)
	_ bus.Aborter = (*EEPROM)(nil)
)

// New returns a blank (erased, all 0xFF) device.
func New(options Options) (*EEPROM, error) {
	options = options.withDefaults()
	if err := options.validate(); err != nil {
		return nil, err
	}
	memory := make([]byte, options.Capacity)
	for i := range memory {
		memory[i] = erasedByte
	}
	return &EEPROM{options: options, memory: memory}, nil
}

// Options returns the effective device configuration.
func (e *EEPROM) Options() Options { return e.options }

// Send implements bus.Channel.
func (e *EEPROM) Send(target uint16, data []byte, condition bus.Condition) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if target != e.options.Target || e.refuse() || len(data) == 0 {
		return 0, nil
	}
	if len(data) == 1 {
		// Half an address: the part latches the high byte and waits.
		e.pointer = (int(data[0]) << 8) & e.mask()
		return 1, nil
	}

	e.pointer = (int(data[0])<<8 | int(data[1])) & e.mask()
	payload := data[2:]
	if len(payload) == 0 {
		return len(data), nil
	}

	pageStart := e.pointer &^ (e.options.PageSize - 1)
	offset := e.pointer - pageStart
	for _, value := range payload {
		e.memory[pageStart+offset] = value
		offset = (offset + 1) & (e.options.PageSize - 1)
	}
	e.pointer = pageStart + offset
	e.writeCycle = e.options.WriteCycle
	e.writes++
	return len(data), nil
}

// Receive implements bus.Channel.
func (e *EEPROM) Receive(target uint16, buf []byte, condition bus.Condition) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if target != e.options.Target || e.refuse() {
		return 0, nil
	}
	for i := range buf {
		buf[i] = e.memory[e.pointer]
		e.pointer = (e.pointer + 1) & e.mask()
	}
	return len(buf), nil
}

// BusBusy implements bus.Channel. It reports busy once for each call
// queued by HoldBus.
func (e *EEPROM) BusBusy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.busy > 0 {
		e.busy--
		return true
	}
	return false
}

// Abort implements bus.Aborter. The device state is unaffected; the
// call is counted so tests can observe recovery behaviour.
func (e *EEPROM) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.aborts++
	return nil
}

// HoldBus makes the next n BusBusy calls report a busy bus.
func (e *EEPROM) HoldBus(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.busy = n
}

// Stats reports how many data writes and aborts the device has seen.
func (e *EEPROM) Stats() (writes, aborts int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.writes, e.aborts
}

// Memory returns a copy of the device contents.
func (e *EEPROM) Memory() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]byte(nil), e.memory...)
}

// Load replaces the device contents. data must be exactly the device
// capacity.
func (e *EEPROM) Load(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(data) != len(e.memory) {
		return fmt.Errorf("simbus: loading %d bytes into a %d-byte device", len(data), len(e.memory))
	}
	copy(e.memory, data)
	e.pointer = 0
	e.writeCycle = 0
	return nil
}

// refuse consumes one refused transfer of a pending write cycle.
func (e *EEPROM) refuse() bool {
	if e.writeCycle > 0 {
		e.writeCycle--
		return true
	}
	return false
}

func (e *EEPROM) mask() int { return len(e.memory) - 1 }
