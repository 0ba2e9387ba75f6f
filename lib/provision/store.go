// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/keyprov/lib/blockcipher"
	"github.com/bureau-foundation/keyprov/lib/secret"
)

// Transport moves byte ranges to and from the device. *eeprom.Device
// implements it.
type Transport interface {
	WriteRange(ctx context.Context, address uint16, data []byte) (int, error)
	ReadRange(ctx context.Context, address uint16, out []byte) (int, error)
}

// Store writes plaintext into record, padded with zeros to whole cipher
// blocks and encrypted with key when the record is encrypted. It
// returns the number of bytes the device accepted; a short count is
// reported, not treated as an error.
func Store(ctx context.Context, transport Transport, record Record, plaintext, key []byte) (int, error) {
	if len(plaintext) > record.Length {
		return 0, fmt.Errorf("%d bytes of %s material do not fit the %d-byte record", len(plaintext), record.Name, record.Length)
	}

	working := make([]byte, blockcipher.RoundUp(len(plaintext)))
	defer secret.Zero(working)
	copy(working, plaintext)

	if record.Encrypted {
		if err := blockcipher.EncryptBlocks(working, key); err != nil {
			return 0, fmt.Errorf("encrypting %s: %w", record.Name, err)
		}
	}

	written, err := transport.WriteRange(ctx, uint16(record.Offset), working)
	if err != nil {
		return written, fmt.Errorf("writing %s: %w", record.Name, err)
	}
	return written, nil
}

// Get reads length raw bytes from the start of record. Encrypted
// records come back as ciphertext. The result is shorter than length
// when the device returned fewer bytes.
func Get(ctx context.Context, transport Transport, record Record, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("negative read length %d", length)
	}
	out := make([]byte, length)
	read, err := transport.ReadRange(ctx, uint16(record.Offset), out)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", record.Name, err)
	}
	return out[:read], nil
}

// Verify reads back record, decrypts it with key when encrypted is
// set, and returns how many leading bytes equal expected. The stored
// record is fully correct exactly when the result is len(expected).
//
// Only bytes actually received take part in the comparison, and when
// decrypting only whole received blocks do, so a short read can never
// match by accident against zero padding.
func Verify(ctx context.Context, transport Transport, record Record, expected, key []byte, encrypted bool) (int, error) {
	matched, _, err := verify(ctx, transport, record, expected, key, encrypted)
	return matched, err
}

// verify is Verify that also returns the fingerprint of the raw bytes
// read.
func verify(ctx context.Context, transport Transport, record Record, expected, key []byte, encrypted bool) (int, Fingerprint, error) {
	size := blockcipher.RoundUp(len(expected))
	if size == 0 {
		return 0, Fingerprint{}, nil
	}

	stored := make([]byte, size)
	defer secret.Zero(stored)
	read, err := transport.ReadRange(ctx, uint16(record.Offset), stored)
	if err != nil {
		return 0, Fingerprint{}, fmt.Errorf("reading %s: %w", record.Name, err)
	}
	fingerprint := FingerprintOf(stored[:read])

	usable := read
	if encrypted {
		usable -= read % blockcipher.BlockSize
		if err := blockcipher.DecryptBlocks(stored[:usable], key); err != nil {
			return 0, fingerprint, fmt.Errorf("decrypting %s: %w", record.Name, err)
		}
	}

	limit := min(len(expected), usable)
	matched := 0
	for matched < limit && stored[matched] == expected[matched] {
		matched++
	}
	return matched, fingerprint, nil
}

// Erase writes zeros from address 0 to the end of the layout. It
// returns the number of bytes the device accepted.
func Erase(ctx context.Context, transport Transport, layout Layout) (int, error) {
	written, err := transport.WriteRange(ctx, 0, make([]byte, layout.End()))
	if err != nil {
		return written, fmt.Errorf("erasing: %w", err)
	}
	return written, nil
}
