// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eeprom

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bureau-foundation/keyprov/lib/codec"
)

// EventKind names a transport step.
type EventKind string

const (
	// EventPrime is an address-only send before a page operation.
	EventPrime EventKind = "prime"

	// EventWrite is the address-plus-data send of a page write.
	EventWrite EventKind = "write"

	// EventPoll is an address-only send waiting for the write cycle.
	EventPoll EventKind = "poll"

	// EventBusy is a read prime skipped because the bus was busy.
	EventBusy EventKind = "busy"

	// EventAbort is a transaction abort after a refused send.
	EventAbort EventKind = "abort"

	// EventReceive is the data receive of a page read.
	EventReceive EventKind = "receive"

	// EventBackoff is a wait between refused attempts.
	EventBackoff EventKind = "backoff"
)

// Event is one transport step. Events carry addresses and counts,
// never the bytes transferred.
type Event struct {
	Time        time.Time     `cbor:"time"                  json:"time"`
	Kind        EventKind     `cbor:"kind"                  json:"kind"`
	Address     uint16        `cbor:"address"               json:"address"`
	Requested   int           `cbor:"requested,omitempty"   json:"requested,omitempty"`
	Transferred int           `cbor:"transferred,omitempty" json:"transferred,omitempty"`
	Attempt     int           `cbor:"attempt,omitempty"     json:"attempt,omitempty"`
	Wait        time.Duration `cbor:"wait,omitempty"        json:"wait_ns,omitempty"`
}

// String formats the event as one line for humans.
func (e Event) String() string {
	line := fmt.Sprintf("%s %-7s addr=0x%04x", e.Time.Format("15:04:05.000000"), e.Kind, e.Address)
	if e.Requested > 0 || e.Kind == EventPrime || e.Kind == EventWrite || e.Kind == EventPoll || e.Kind == EventReceive {
		line += fmt.Sprintf(" %d/%d", e.Transferred, e.Requested)
	}
	if e.Attempt > 0 {
		line += fmt.Sprintf(" attempt=%d", e.Attempt)
	}
	if e.Wait > 0 {
		line += fmt.Sprintf(" wait=%s", e.Wait)
	}
	return line
}

// Tracer receives transport events. Implementations must not block for
// long; they run inside the transfer loop.
type Tracer interface {
	Trace(Event)
}

// CBORTracer writes events to a stream as a sequence of CBOR values.
// The first write error is kept and later events are dropped.
type CBORTracer struct {
	mu      sync.Mutex
	encoder *codec.Encoder
	err     error
	count   int
}

// NewCBORTracer returns a tracer writing to w.
func NewCBORTracer(w io.Writer) *CBORTracer {
	return &CBORTracer{encoder: codec.NewEncoder(w)}
}

// Trace implements Tracer.
func (t *CBORTracer) Trace(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return
	}
	if err := t.encoder.Encode(event); err != nil {
		t.err = fmt.Errorf("writing trace event: %w", err)
		return
	}
	t.count++
}

// Err returns the first write error, if any.
func (t *CBORTracer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Count returns the number of events written.
func (t *CBORTracer) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// ReadTrace decodes events written by a CBORTracer and passes each to
// visit, stopping at end of input or at the first error from visit.
func ReadTrace(r io.Reader, visit func(Event) error) error {
	decoder := codec.NewDecoder(r)
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decoding trace event: %w", err)
		}
		if err := visit(event); err != nil {
			return err
		}
	}
}
