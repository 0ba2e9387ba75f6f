// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eeprom

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the device did not acknowledge within the
// retry policy's attempt budget.
var ErrTimeout = errors.New("eeprom: device did not acknowledge")

// RetryPolicy bounds the address-priming loop.
type RetryPolicy struct {
	// MaxAttempts is the number of priming attempts before giving up.
	// Zero retries forever.
	MaxAttempts int

	// InitialBackoff is the wait after the first refused attempt.
	// Each further refusal doubles the wait up to MaxBackoff. Zero
	// retries immediately.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy allows roughly a quarter second of polling, far
// longer than the 5ms write cycle of any supported part.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    64,
		InitialBackoff: 200 * time.Microsecond,
		MaxBackoff:     10 * time.Millisecond,
	}
}

// Validate rejects negative values and a cap below the initial wait.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("retry max_attempts must not be negative, got %d", p.MaxAttempts)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return fmt.Errorf("retry backoff must not be negative")
	}
	if p.MaxBackoff > 0 && p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("retry max_backoff %s is below initial_backoff %s", p.MaxBackoff, p.InitialBackoff)
	}
	return nil
}

// backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	wait := p.InitialBackoff
	for i := 1; i < attempt && wait > 0; i++ {
		wait *= 2
		if p.MaxBackoff > 0 && wait >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && wait > p.MaxBackoff {
		return p.MaxBackoff
	}
	return wait
}

// retry calls attempt until it reports done, returns an error, the
// policy is exhausted, or ctx ends. It returns the number of attempts
// made.
func (d *Device) retry(ctx context.Context, operation string, address uint16, attempt func(number int) (bool, error)) (int, error) {
	for number := 1; ; number++ {
		if err := ctx.Err(); err != nil {
			return number - 1, err
		}

		done, err := attempt(number)
		if err != nil {
			return number, err
		}
		if done {
			if number > 1 {
				d.logger.Debug("device acknowledged after retry",
					"operation", operation,
					"address", address,
					"attempts", number,
				)
			}
			return number, nil
		}

		if d.retryPolicy.MaxAttempts > 0 && number >= d.retryPolicy.MaxAttempts {
			return number, fmt.Errorf("%s at 0x%04x: %w after %d attempts", operation, address, ErrTimeout, number)
		}

		wait := d.retryPolicy.backoff(number)
		if wait <= 0 {
			continue
		}
		d.trace(Event{Kind: EventBackoff, Address: address, Attempt: number, Wait: wait})
		select {
		case <-ctx.Done():
			return number, ctx.Err()
		case <-d.clock.After(wait):
		}
	}
}
