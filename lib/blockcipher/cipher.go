// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockcipher

import (
	"crypto/aes"
	"errors"
	"fmt"
)

// BlockSize is the cipher block size in bytes.
const BlockSize = aes.BlockSize

// KeySize is the AES-256 key size in bytes.
const KeySize = 32

var (
	// ErrUnaligned is returned for buffers that are not a whole number
	// of blocks.
	ErrUnaligned = errors.New("blockcipher: buffer length is not a multiple of the block size")

	// ErrKeySize is returned for keys that are not KeySize bytes.
	ErrKeySize = errors.New("blockcipher: key must be 32 bytes")
)

// EncryptBlocks encrypts buf in place, one block at a time.
func EncryptBlocks(buf, key []byte) error {
	return transform(buf, key, true)
}

// DecryptBlocks decrypts buf in place, one block at a time.
func DecryptBlocks(buf, key []byte) error {
	return transform(buf, key, false)
}

func transform(buf, key []byte, encrypt bool) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w (got %d)", ErrKeySize, len(key))
	}
	if len(buf)%BlockSize != 0 {
		return fmt.Errorf("%w (length %d)", ErrUnaligned, len(buf))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("blockcipher: %w", err)
	}
	for offset := 0; offset < len(buf); offset += BlockSize {
		chunk := buf[offset : offset+BlockSize]
		if encrypt {
			block.Encrypt(chunk, chunk)
		} else {
			block.Decrypt(chunk, chunk)
		}
	}
	return nil
}
