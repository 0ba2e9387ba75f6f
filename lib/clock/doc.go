// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that retry
// backoff can be tested without real sleeps.
//
// Production code uses [Real]. Tests use [Fake], whose time only moves
// when Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go func() { done <- device.WritePage(ctx, 0, page) }()
//	c.WaitForTimers(1)             // the retry loop is now waiting
//	c.Advance(200 * time.Microsecond)
//
// WaitForTimers closes the race between a goroutine registering a wait
// and the test advancing time.
package clock
