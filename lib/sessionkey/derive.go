// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessionkey turns the operator password into the AES-256 key
// used for one provisioning run.
//
// The key is SHA-256 over a PasswordSize-byte buffer holding the
// password followed by zero padding. Hashing the padded buffer rather
// than the typed characters is part of the on-device format: a device
// provisioned with "secret" can only be verified by hashing "secret"
// plus 26 zero bytes.
package sessionkey

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/bureau-foundation/keyprov/lib/secret"
)

const (
	// PasswordSize is the fixed password buffer length.
	PasswordSize = 32

	// KeySize is the derived key length (SHA-256 output).
	KeySize = sha256.Size
)

// ErrPasswordTooLong is returned for passwords that do not fit the
// fixed buffer.
var ErrPasswordTooLong = errors.New("sessionkey: password exceeds 32 bytes")

// Derive returns the session key for password. The password is
// borrowed; trailing zero bytes are indistinguishable from padding, so
// a 32-byte zero-padded buffer and its unpadded prefix derive the same
// key. An empty password is accepted and yields a valid, weak key.
//
// The caller must Close the returned buffer when the run ends.
func Derive(password []byte) (*secret.Buffer, error) {
	if len(password) > PasswordSize {
		return nil, fmt.Errorf("%w (got %d)", ErrPasswordTooLong, len(password))
	}

	padded, err := secret.New(PasswordSize)
	if err != nil {
		return nil, err
	}
	defer padded.Close()
	copy(padded.Bytes(), password)

	key, err := secret.New(KeySize)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(padded.Bytes())
	copy(key.Bytes(), digest[:])
	secret.Zero(digest[:])
	return key, nil
}
