// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/keyprov/lib/blockcipher"
)

// ErrLayout is wrapped by every layout validation failure.
var ErrLayout = errors.New("invalid layout")

// Record names used by the default layout.
const (
	RecordSignature   = "signature"
	RecordLC128       = "lc128"
	RecordCertificate = "certificate"
	RecordKeyA        = "key-a"
	RecordKeyB        = "key-b"
)

// DefaultSignature is the plaintext stored in the signature record when
// the key bundle does not supply one. Receivers decrypt it first to
// check the password before touching the keys.
const DefaultSignature = "xilinx_hdcp_keys"

// Record is one field of the device layout.
type Record struct {
	// Name identifies the record in bundles and reports.
	Name string `yaml:"name" json:"name"`

	// Offset is the device address of the first byte.
	Offset int `yaml:"offset" json:"offset"`

	// Length is the maximum plaintext length. The record occupies
	// Length rounded up to whole cipher blocks.
	Length int `yaml:"length" json:"length"`

	// Encrypted records are stored as ciphertext.
	Encrypted bool `yaml:"encrypted" json:"encrypted"`
}

// Size returns the bytes the record occupies on the device.
func (r Record) Size() int {
	return blockcipher.RoundUp(r.Length)
}

// End returns the address just past the record.
func (r Record) End() int {
	return r.Offset + r.Size()
}

// Layout is the ordered set of records on a device.
type Layout struct {
	// Capacity is the device size in bytes.
	Capacity int `yaml:"capacity" json:"capacity"`

	// Records are in ascending offset order.
	Records []Record `yaml:"records" json:"records"`
}

// DefaultLayout returns the layout of the HDCP key EEPROM on the
// reference boards.
func DefaultLayout() Layout {
	return Layout{
		Capacity: 2048,
		Records: []Record{
			{Name: RecordSignature, Offset: 0, Length: 16, Encrypted: true},
			{Name: RecordLC128, Offset: 16, Length: 16, Encrypted: true},
			{Name: RecordCertificate, Offset: 32, Length: 512, Encrypted: true},
			{Name: RecordKeyA, Offset: 1024, Length: 320, Encrypted: true},
			{Name: RecordKeyB, Offset: 1536, Length: 320, Encrypted: true},
		},
	}
}

// Record returns the record called name.
func (l Layout) Record(name string) (Record, bool) {
	for _, record := range l.Records {
		if record.Name == name {
			return record, true
		}
	}
	return Record{}, false
}

// Names returns the record names in layout order.
func (l Layout) Names() []string {
	names := make([]string, len(l.Records))
	for i, record := range l.Records {
		names[i] = record.Name
	}
	return names
}

// End returns the address just past the last record, the extent that
// Erase clears.
func (l Layout) End() int {
	end := 0
	for _, record := range l.Records {
		end = max(end, record.End())
	}
	return end
}

// Validate checks that records are named uniquely, page aligned,
// ascending, disjoint, and within capacity. Every problem found is
// reported, each wrapping ErrLayout.
func (l Layout) Validate(pageSize int) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrLayout}, args...)...))
	}

	if l.Capacity <= 0 {
		fail("capacity must be positive, got %d", l.Capacity)
	}
	if l.Capacity > 1<<16 {
		fail("capacity %d exceeds the 16-bit address space", l.Capacity)
	}
	if pageSize <= 0 {
		fail("page size must be positive, got %d", pageSize)
		pageSize = 1
	}
	if len(l.Records) == 0 {
		fail("no records")
	}

	seen := make(map[string]bool)
	for i, record := range l.Records {
		switch {
		case record.Name == "":
			fail("record %d has no name", i)
		case seen[record.Name]:
			fail("record %q appears more than once", record.Name)
		}
		seen[record.Name] = true

		if record.Length <= 0 {
			fail("record %q length must be positive, got %d", record.Name, record.Length)
		}
		if record.Offset < 0 {
			fail("record %q offset must not be negative, got %d", record.Name, record.Offset)
		}
		if record.Offset%pageSize != 0 {
			fail("record %q offset %d is not a multiple of the %d-byte page", record.Name, record.Offset, pageSize)
		}
		if l.Capacity > 0 && record.End() > l.Capacity {
			fail("record %q ends at %d, beyond capacity %d", record.Name, record.End(), l.Capacity)
		}
		if i > 0 {
			previous := l.Records[i-1]
			if record.Offset < previous.End() {
				fail("record %q at %d overlaps or precedes %q ending at %d", record.Name, record.Offset, previous.Name, previous.End())
			}
		}
	}
	return errors.Join(errs...)
}
