// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/bureau-foundation/keyprov/lib/blockcipher"
	"github.com/bureau-foundation/keyprov/lib/bus/simbus"
	"github.com/bureau-foundation/keyprov/lib/eeprom"
	"github.com/bureau-foundation/keyprov/lib/sessionkey"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newBench returns a transport backed by a simulated EEPROM.
func newBench(t *testing.T) (*eeprom.Device, *simbus.EEPROM) {
	t.Helper()
	simulated, err := simbus.New(simbus.Options{})
	if err != nil {
		t.Fatalf("simbus.New: %v", err)
	}
	device, err := eeprom.New(eeprom.Config{
		Channel: simulated,
		Target:  simbus.DefaultTarget,
		Retry:   eeprom.RetryPolicy{MaxAttempts: 16},
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("eeprom.New: %v", err)
	}
	return device, simulated
}

func testKey(t *testing.T, password string) []byte {
	t.Helper()
	key, err := sessionkey.Derive([]byte(password))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key.Bytes()
}

func signatureRecord() Record {
	record, _ := DefaultLayout().Record(RecordSignature)
	return record
}

func TestStoreVerify_Signature(t *testing.T) {
	ctx := context.Background()
	device, _ := newBench(t)
	key := testKey(t, "operator password")
	record := signatureRecord()

	written, err := Store(ctx, device, record, []byte(DefaultSignature), key)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if written != 16 {
		t.Errorf("written = %d, want 16", written)
	}

	matched, err := Verify(ctx, device, record, []byte(DefaultSignature), key, true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if matched != 16 {
		t.Errorf("matched = %d, want 16", matched)
	}
}

func TestStore_WritesCiphertextNotPlaintext(t *testing.T) {
	ctx := context.Background()
	device, simulated := newBench(t)
	key := testKey(t, "operator password")

	if _, err := Store(ctx, device, signatureRecord(), []byte(DefaultSignature), key); err != nil {
		t.Fatalf("Store: %v", err)
	}
	stored := simulated.Memory()[:16]
	if bytes.Equal(stored, []byte(DefaultSignature)) {
		t.Fatal("signature stored in plaintext")
	}

	want := []byte(DefaultSignature)
	if err := blockcipher.EncryptBlocks(want, key); err != nil {
		t.Fatalf("EncryptBlocks: %v", err)
	}
	if !bytes.Equal(stored, want) {
		t.Errorf("stored = %x, want %x", stored, want)
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	key := testKey(t, "operator password")
	record := signatureRecord()

	for index := range 16 {
		device, simulated := newBench(t)
		if _, err := Store(ctx, device, record, []byte(DefaultSignature), key); err != nil {
			t.Fatalf("Store: %v", err)
		}

		memory := simulated.Memory()
		memory[index] ^= 0x01
		if err := simulated.Load(memory); err != nil {
			t.Fatalf("Load: %v", err)
		}

		decrypted := append([]byte(nil), memory[:16]...)
		if err := blockcipher.DecryptBlocks(decrypted, key); err != nil {
			t.Fatalf("DecryptBlocks: %v", err)
		}
		firstMismatch := 0
		for firstMismatch < 16 && decrypted[firstMismatch] == DefaultSignature[firstMismatch] {
			firstMismatch++
		}

		matched, err := Verify(ctx, device, record, []byte(DefaultSignature), key, true)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if matched >= 16 {
			t.Errorf("corrupting byte %d: matched = %d, want < 16", index, matched)
		}
		if matched != firstMismatch {
			t.Errorf("corrupting byte %d: matched = %d, want first mismatch %d", index, matched, firstMismatch)
		}
	}
}

func TestVerify_WrongKey(t *testing.T) {
	ctx := context.Background()
	device, _ := newBench(t)
	record := signatureRecord()

	if _, err := Store(ctx, device, record, []byte(DefaultSignature), testKey(t, "right")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	matched, err := Verify(ctx, device, record, []byte(DefaultSignature), testKey(t, "wrong"), true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if matched == 16 {
		t.Error("signature verified under the wrong key")
	}
}

func TestEraseThenGet(t *testing.T) {
	ctx := context.Background()
	device, simulated := newBench(t)
	key := testKey(t, "operator password")
	layout := DefaultLayout()
	record := signatureRecord()

	if _, err := Store(ctx, device, record, []byte(DefaultSignature), key); err != nil {
		t.Fatalf("Store: %v", err)
	}

	written, err := Erase(ctx, device, layout)
	if err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if written != layout.End() {
		t.Errorf("erase wrote %d bytes, want %d", written, layout.End())
	}

	raw, err := Get(ctx, device, record, 16)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(raw, make([]byte, 16)) {
		t.Errorf("Get after erase = %x, want 16 zero bytes", raw)
	}

	matched, err := Verify(ctx, device, record, []byte(DefaultSignature), key, false)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if matched != 0 {
		t.Errorf("unencrypted verify after erase = %d, want 0", matched)
	}

	memory := simulated.Memory()
	for i := range layout.End() {
		if memory[i] != 0 {
			t.Fatalf("memory[%d] = %#x after erase, want 0", i, memory[i])
		}
	}
	if memory[layout.End()] == 0 {
		t.Error("erase went past the end of the layout")
	}
}

func TestStore_PadsAndChunks(t *testing.T) {
	ctx := context.Background()
	device, simulated := newBench(t)
	key := testKey(t, "operator password")
	record, _ := DefaultLayout().Record(RecordCertificate)

	certificate := bytes.Repeat([]byte{0xc3}, 500)
	written, err := Store(ctx, device, record, certificate, key)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if written != 512 {
		t.Errorf("written = %d, want 512 (500 rounded to blocks)", written)
	}
	if writes, _ := simulated.Stats(); writes != 32 {
		t.Errorf("page writes = %d, want 32", writes)
	}

	matched, err := Verify(ctx, device, record, certificate, key, true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if matched != 500 {
		t.Errorf("matched = %d, want 500", matched)
	}
}

func TestStore_RejectsOversizedMaterial(t *testing.T) {
	device, _ := newBench(t)
	if _, err := Store(context.Background(), device, signatureRecord(), make([]byte, 17), testKey(t, "x")); err == nil {
		t.Error("Store accepted 17 bytes into a 16-byte record")
	}
}

func TestStore_UnencryptedRecord(t *testing.T) {
	ctx := context.Background()
	device, simulated := newBench(t)
	record := Record{Name: "serial", Offset: 1984, Length: 10}

	if _, err := Store(ctx, device, record, []byte("SN-0000042"), nil); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if got := simulated.Memory()[1984:1994]; string(got) != "SN-0000042" {
		t.Errorf("stored = %q", got)
	}
	matched, err := Verify(ctx, device, record, []byte("SN-0000042"), nil, false)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if matched != 10 {
		t.Errorf("matched = %d, want 10", matched)
	}
}

// shortTransport reads at most limit bytes of zeros.
type shortTransport struct {
	limit int
}

func (s shortTransport) WriteRange(ctx context.Context, address uint16, data []byte) (int, error) {
	return min(len(data), s.limit), nil
}

func (s shortTransport) ReadRange(ctx context.Context, address uint16, out []byte) (int, error) {
	n := min(len(out), s.limit)
	clear(out[:n])
	return n, nil
}

func TestVerify_ShortReadNeverMatchesPadding(t *testing.T) {
	ctx := context.Background()
	record := Record{Name: "zeros", Offset: 0, Length: 32}
	expected := make([]byte, 32)

	matched, err := Verify(ctx, shortTransport{limit: 5}, record, expected, nil, false)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if matched != 5 {
		t.Errorf("unencrypted matched = %d, want 5 (bytes actually read)", matched)
	}

	// Encrypted: 20 bytes read is one whole block.
	key := testKey(t, "k")
	ciphertext := make([]byte, 32)
	blockcipher.EncryptBlocks(ciphertext, key)
	matched, err = Verify(ctx, prefixTransport{data: ciphertext, limit: 20}, record, expected, key, true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if matched != 16 {
		t.Errorf("encrypted matched = %d, want 16 (one whole block)", matched)
	}
}

// prefixTransport serves at most limit bytes of data.
type prefixTransport struct {
	data  []byte
	limit int
}

func (p prefixTransport) WriteRange(ctx context.Context, address uint16, data []byte) (int, error) {
	return 0, nil
}

func (p prefixTransport) ReadRange(ctx context.Context, address uint16, out []byte) (int, error) {
	return copy(out[:min(len(out), p.limit)], p.data), nil
}

func TestVerify_EmptyExpected(t *testing.T) {
	matched, err := Verify(context.Background(), shortTransport{limit: 16}, signatureRecord(), nil, nil, true)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if matched != 0 {
		t.Errorf("matched = %d, want 0", matched)
	}
}

func TestGet_ShortRead(t *testing.T) {
	raw, err := Get(context.Background(), shortTransport{limit: 7}, signatureRecord(), 16)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(raw) != 7 {
		t.Errorf("len = %d, want 7", len(raw))
	}
	if _, err := Get(context.Background(), shortTransport{}, signatureRecord(), -1); err == nil {
		t.Error("Get accepted a negative length")
	}
}
