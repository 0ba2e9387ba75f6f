// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eeprom drives a two-byte-addressed serial EEPROM through a
// bus.Channel.
//
// The device accepts at most one page per write transaction and then
// goes silent for its internal write cycle, refusing to acknowledge its
// address until the cycle completes. [Device] hides both properties:
// [Device.WriteRange] and [Device.ReadRange] split arbitrary ranges
// into page-sized operations, and every page operation primes the
// address pointer with a retry loop that treats a missing
// acknowledgement as "busy, try again".
//
// Retries follow a [RetryPolicy]. With MaxAttempts of zero the loop
// never gives up, which matches how the parts behave on a healthy bus
// but hangs on a dead one; the default policy gives up after a bounded
// number of attempts with [ErrTimeout].
//
// Transfer counts are not errors. A page write that the device only
// partly accepted returns the accepted count, and range operations
// continue from there. Errors are reserved for channel failures,
// exhausted retries, and cancelled contexts.
package eeprom
