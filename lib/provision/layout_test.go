// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"errors"
	"slices"
	"testing"
)

func TestDefaultLayout(t *testing.T) {
	layout := DefaultLayout()
	if err := layout.Validate(16); err != nil {
		t.Fatalf("default layout invalid: %v", err)
	}

	want := []struct {
		name   string
		offset int
		length int
	}{
		{RecordSignature, 0, 16},
		{RecordLC128, 16, 16},
		{RecordCertificate, 32, 512},
		{RecordKeyA, 1024, 320},
		{RecordKeyB, 1536, 320},
	}
	for _, expected := range want {
		record, ok := layout.Record(expected.name)
		if !ok {
			t.Fatalf("record %q missing", expected.name)
		}
		if record.Offset != expected.offset || record.Length != expected.length || !record.Encrypted {
			t.Errorf("record %q = %+v", expected.name, record)
		}
	}
	if layout.End() != 1856 {
		t.Errorf("End() = %d, want 1856", layout.End())
	}
	if !slices.Equal(layout.Names(), []string{"signature", "lc128", "certificate", "key-a", "key-b"}) {
		t.Errorf("Names() = %v", layout.Names())
	}
	if _, ok := layout.Record("key-c"); ok {
		t.Error("Record found a name that is not in the layout")
	}
}

func TestRecordSize(t *testing.T) {
	tests := []struct {
		length int
		size   int
	}{
		{1, 16},
		{16, 16},
		{17, 32},
		{320, 320},
		{522, 528},
	}
	for _, test := range tests {
		record := Record{Offset: 32, Length: test.length}
		if record.Size() != test.size {
			t.Errorf("Record{Length: %d}.Size() = %d, want %d", test.length, record.Size(), test.size)
		}
		if record.End() != 32+test.size {
			t.Errorf("Record{Length: %d}.End() = %d, want %d", test.length, record.End(), 32+test.size)
		}
	}
}

func TestLayoutValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
	}{
		{"no records", Layout{Capacity: 2048}},
		{"zero capacity", Layout{Records: []Record{{Name: "a", Length: 16}}}},
		{"huge capacity", Layout{Capacity: 1 << 17, Records: []Record{{Name: "a", Length: 16}}}},
		{"unnamed", Layout{Capacity: 2048, Records: []Record{{Length: 16}}}},
		{"duplicate", Layout{Capacity: 2048, Records: []Record{
			{Name: "a", Offset: 0, Length: 16},
			{Name: "a", Offset: 16, Length: 16},
		}}},
		{"zero length", Layout{Capacity: 2048, Records: []Record{{Name: "a", Length: 0}}}},
		{"negative offset", Layout{Capacity: 2048, Records: []Record{{Name: "a", Offset: -16, Length: 16}}}},
		{"misaligned", Layout{Capacity: 2048, Records: []Record{{Name: "a", Offset: 8, Length: 16}}}},
		{"overlap", Layout{Capacity: 2048, Records: []Record{
			{Name: "a", Offset: 0, Length: 20},
			{Name: "b", Offset: 16, Length: 16},
		}}},
		{"descending", Layout{Capacity: 2048, Records: []Record{
			{Name: "a", Offset: 64, Length: 16},
			{Name: "b", Offset: 0, Length: 16},
		}}},
		{"beyond capacity", Layout{Capacity: 1024, Records: []Record{{Name: "a", Offset: 1024 - 16, Length: 17}}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.layout.Validate(16)
			if err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !errors.Is(err, ErrLayout) {
				t.Errorf("error = %v, want ErrLayout", err)
			}
		})
	}
}

func TestLayoutValidate_ReportsEveryProblem(t *testing.T) {
	layout := Layout{Capacity: 64, Records: []Record{
		{Name: "a", Offset: 8, Length: 0},
		{Name: "a", Offset: 128, Length: 16},
	}}
	err := layout.Validate(16)
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("error %v does not join multiple problems", err)
	}
	// Zero length, misaligned, duplicate name, beyond capacity.
	if got := len(joined.Unwrap()); got != 4 {
		t.Errorf("problems = %d, want 4: %v", got, err)
	}
}

func TestLayoutValidate_AdjacentRecords(t *testing.T) {
	layout := Layout{Capacity: 64, Records: []Record{
		{Name: "a", Offset: 0, Length: 17},
		{Name: "b", Offset: 32, Length: 32},
	}}
	if err := layout.Validate(16); err != nil {
		t.Errorf("adjacent records rejected: %v", err)
	}
}
