// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eeprom

import "context"

// WriteRange writes data starting at address as a sequence of page
// writes. Each of the len(data)/PageSize full chunks is attempted once,
// advancing by the bytes the device actually accepted; whatever is left
// after them is attempted with one more write of at most a page. The
// return value is the total accepted, which equals len(data) when no
// transfer came up short.
//
// The address should be page aligned. Chunks are cut at fixed offsets
// from address, not at device page boundaries.
func (d *Device) WriteRange(ctx context.Context, address uint16, data []byte) (int, error) {
	return d.transferRange(ctx, address, len(data), func(address uint16, cursor, size int) (int, error) {
		return d.WritePage(ctx, address, data[cursor:cursor+size])
	})
}

// ReadRange fills out starting at address as a sequence of page reads,
// chunked exactly as WriteRange. It returns the total bytes received.
func (d *Device) ReadRange(ctx context.Context, address uint16, out []byte) (int, error) {
	return d.transferRange(ctx, address, len(out), func(address uint16, cursor, size int) (int, error) {
		return d.ReadPage(ctx, address, out[cursor:cursor+size])
	})
}

func (d *Device) transferRange(ctx context.Context, address uint16, length int, page func(address uint16, cursor, size int) (int, error)) (int, error) {
	total := 0
	for range length / d.pageSize {
		transferred, err := page(address, total, d.pageSize)
		total += transferred
		if err != nil {
			return total, err
		}
		address += uint16(transferred)
	}

	if remaining := length - total; remaining > 0 {
		transferred, err := page(address, total, min(remaining, d.pageSize))
		total += transferred
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
