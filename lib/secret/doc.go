// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// A [Buffer] is backed by an anonymous mmap region that is locked into
// RAM (mlock) and excluded from core dumps (MADV_DONTDUMP). Close zeroes
// the region before unmapping it, so a password or session key never
// outlives the provisioning run that created it.
//
// The package also implements operator password entry. [ReadPassword]
// reads one line into a fixed-size, zero-padded buffer and echoes a dot
// per accepted character. The fixed size matters: key derivation hashes
// the whole buffer, not just the typed characters, so the unused tail
// must be zero.
package secret
