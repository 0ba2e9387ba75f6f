// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type sampleRecord struct {
	Name   string `cbor:"name"`
	Offset int    `cbor:"offset"`
	Data   []byte `cbor:"data,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{Name: "lc128", Offset: 16, Data: []byte{0x93, 0xce, 0x5a}}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Name != original.Name || decoded.Offset != original.Offset || !bytes.Equal(decoded.Data, original.Data) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministicMapOrder(t *testing.T) {
	first, err := Marshal(map[string]int{"signature": 0, "key-b": 1536, "lc128": 16})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(map[string]int{"lc128": 16, "signature": 0, "key-b": 1536})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("map encoding depends on insertion order")
		}
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"a": 1, "a": 2}
	data := []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}
	var decoded map[string]int
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestEncoderDecoderSequence(t *testing.T) {
	type event struct {
		Time    time.Time `cbor:"time"`
		Address uint16    `cbor:"address"`
	}
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	var stream bytes.Buffer
	encoder := NewEncoder(&stream)
	for address := uint16(0); address < 48; address += 16 {
		if err := encoder.Encode(event{Time: stamp, Address: address}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&stream)
	var addresses []uint16
	for {
		var decoded event
		err := decoder.Decode(&decoded)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !decoded.Time.Equal(stamp) {
			t.Errorf("time = %v, want %v", decoded.Time, stamp)
		}
		addresses = append(addresses, decoded.Address)
	}
	if len(addresses) != 3 || addresses[2] != 32 {
		t.Errorf("decoded addresses %v", addresses)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleRecord{Name: "signature"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"signature"`) {
		t.Errorf("diagnostic %q does not mention the name", notation)
	}
}
