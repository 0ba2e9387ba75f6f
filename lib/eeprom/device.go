// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eeprom

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/keyprov/lib/bus"
	"github.com/bureau-foundation/keyprov/lib/clock"
)

// addressSize is the length of the memory address prefix on every
// transfer.
const addressSize = 2

// DefaultPageSize is the write page of the reference parts.
const DefaultPageSize = 16

// Config configures a Device.
type Config struct {
	// Channel is the bus the device is attached to. Required.
	Channel bus.Channel

	// Target is the device's 7-bit bus address. Required.
	Target uint16

	// PageSize is the device write page in bytes. Zero means
	// DefaultPageSize.
	PageSize int

	// Retry bounds the priming loop.
	Retry RetryPolicy

	// Clock drives backoff waits. Nil means the real clock.
	Clock clock.Clock

	// Logger receives debug output. Required.
	Logger *slog.Logger

	// Tracer, if set, receives every transport step.
	Tracer Tracer
}

// Device is a paged EEPROM on a bus channel. A Device is not safe for
// concurrent use; the device's address pointer is shared state.
type Device struct {
	channel     bus.Channel
	target      uint16
	pageSize    int
	retryPolicy RetryPolicy
	clock       clock.Clock
	logger      *slog.Logger
	tracer      Tracer
}

// New validates config and returns a Device.
func New(config Config) (*Device, error) {
	if config.Channel == nil {
		return nil, fmt.Errorf("eeprom: channel is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("eeprom: logger is required")
	}
	if config.Target == 0 || config.Target > 0x7f {
		return nil, fmt.Errorf("eeprom: target 0x%x is not a valid 7-bit address", config.Target)
	}
	if config.PageSize == 0 {
		config.PageSize = DefaultPageSize
	}
	if config.PageSize < 0 || config.PageSize > 256 {
		return nil, fmt.Errorf("eeprom: page size %d out of range", config.PageSize)
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("eeprom: %w", err)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Device{
		channel:     config.Channel,
		target:      config.Target,
		pageSize:    config.PageSize,
		retryPolicy: config.Retry,
		clock:       config.Clock,
		logger:      config.Logger,
		tracer:      config.Tracer,
	}, nil
}

// PageSize returns the device write page size.
func (d *Device) PageSize() int { return d.pageSize }

// WritePage writes up to one page of data at address and waits for the
// device's write cycle to finish. It returns the number of data bytes
// the device acknowledged, which may be less than len(data).
//
// The data must not cross a page boundary; the device wraps within the
// page and would overwrite its start.
func (d *Device) WritePage(ctx context.Context, address uint16, data []byte) (int, error) {
	if len(data) > d.pageSize {
		return 0, fmt.Errorf("eeprom: %d bytes exceed the %d-byte page", len(data), d.pageSize)
	}

	if err := d.prime(ctx, EventPrime, address, false); err != nil {
		return 0, err
	}

	frame := make([]byte, addressSize+len(data))
	binary.BigEndian.PutUint16(frame, address)
	copy(frame[addressSize:], data)
	sent, err := d.channel.Send(d.target, frame, bus.Stop)
	clear(frame)
	if err != nil {
		return 0, fmt.Errorf("eeprom: writing page at 0x%04x: %w", address, err)
	}
	d.trace(Event{Kind: EventWrite, Address: address, Requested: len(data), Transferred: max(sent-addressSize, 0)})

	if err := d.prime(ctx, EventPoll, address, false); err != nil {
		return 0, err
	}

	written := max(sent-addressSize, 0)
	if written < len(data) {
		d.logger.Debug("short page write",
			"address", address,
			"requested", len(data),
			"written", written,
		)
	}
	return written, nil
}

// ReadPage reads up to len(out) bytes starting at address. It returns
// the number of bytes received.
func (d *Device) ReadPage(ctx context.Context, address uint16, out []byte) (int, error) {
	if err := d.prime(ctx, EventPrime, address, true); err != nil {
		return 0, err
	}

	received, err := d.channel.Receive(d.target, out, bus.Stop)
	if err != nil {
		return 0, fmt.Errorf("eeprom: reading at 0x%04x: %w", address, err)
	}
	d.trace(Event{Kind: EventReceive, Address: address, Requested: len(out), Transferred: received})
	return received, nil
}

// prime sends the address alone until the device acknowledges both
// bytes. A refused send aborts the half-finished transaction before the
// next attempt. When gated, attempts are only made while the bus is
// idle.
func (d *Device) prime(ctx context.Context, kind EventKind, address uint16, gated bool) error {
	var prefix [addressSize]byte
	binary.BigEndian.PutUint16(prefix[:], address)

	_, err := d.retry(ctx, string(kind), address, func(attempt int) (bool, error) {
		if gated && d.channel.BusBusy() {
			d.trace(Event{Kind: EventBusy, Address: address, Attempt: attempt})
			return false, nil
		}

		sent, err := d.channel.Send(d.target, prefix[:], bus.Stop)
		if err != nil {
			return false, fmt.Errorf("eeprom: addressing 0x%04x: %w", address, err)
		}
		d.trace(Event{Kind: kind, Address: address, Requested: addressSize, Transferred: sent, Attempt: attempt})
		if sent == addressSize {
			return true, nil
		}

		d.trace(Event{Kind: EventAbort, Address: address, Attempt: attempt})
		if err := bus.Abort(d.channel); err != nil {
			return false, fmt.Errorf("eeprom: aborting refused transfer at 0x%04x: %w", address, err)
		}
		return false, nil
	})
	return err
}

func (d *Device) trace(event Event) {
	if d.tracer == nil {
		return
	}
	event.Time = d.clock.Now()
	d.tracer.Trace(event)
}
