// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package blockcipher encrypts key records in the on-device format:
// AES-256 applied to each 16-byte block independently (ECB), in place.
//
// There is no chaining, nonce, or authentication. Identical plaintext
// blocks at different offsets produce identical ciphertext. That is a
// property of the format already written to deployed EEPROMs and is
// reproduced exactly; new storage formats should not build on it.
//
// Callers pad with [RoundUp] before encrypting. Buffers whose length is
// not a multiple of [BlockSize] are rejected with [ErrUnaligned].
package blockcipher
