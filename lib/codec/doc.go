// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is keyprov's single CBOR configuration.
//
// CBOR is used for every file keyprov writes itself: key bundles,
// simulator EEPROM images, and transport traces. JSON is reserved for
// CLI --json output. Encoding follows Core Deterministic Encoding
// (RFC 8949 §4.2), so the same bundle always serializes to the same
// bytes, which keeps age ciphertext sizes and image diffs stable.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Traces are CBOR sequences written with [NewEncoder] and read back
// with [NewDecoder].
//
// Types that only ever travel as CBOR use `cbor` struct tags. Types
// that also appear in --json output use `json` tags, which fxamacker
// reads as a fallback.
package codec
