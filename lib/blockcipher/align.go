// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockcipher

// RoundUp returns the smallest multiple of BlockSize that is >= size.
// Every encrypted write and every verify read is sized with RoundUp, so
// a record of 17 bytes occupies 32 on the device.
func RoundUp(size int) int {
	if size%BlockSize == 0 {
		return size
	}
	return (size/BlockSize + 1) * BlockSize
}
