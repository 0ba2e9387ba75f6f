// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies stored ciphertext without revealing it.
type Fingerprint [32]byte

// fingerprintKey is the BLAKE3 key for ciphertext fingerprints: the
// ASCII domain name zero-padded to 32 bytes.
var fingerprintKey = [32]byte{
	'k', 'e', 'y', 'p', 'r', 'o', 'v', '.', 'c', 'i', 'p', 'h', 'e', 'r', 't', 'e',
	'x', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// FingerprintOf returns the keyed BLAKE3 hash of data.
func FingerprintOf(data []byte) Fingerprint {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// NewKeyed fails only for keys that are not 32 bytes.
		panic("provision: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(data)
	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint
}

// IsZero reports whether f was never computed.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// String returns the full hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 8 bytes in hex, for tables and log lines.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:8])
}
