// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts key bundles at rest with age. It wraps
// filippo.io/age for the operations keyprov needs: generate x25519
// keypairs, encrypt to one or more recipients, and decrypt with a
// private key.
//
// Ciphertext is the binary age format, written to and read from files
// as-is. Private keys and decrypted plaintext are returned as
// [secret.Buffer] values backed by mmap memory outside the Go heap
// (locked against swap, excluded from core dumps, zeroed on Close).
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair in a secret.Buffer
//   - [Encrypt] -- encrypt to age public key recipients
//   - [Decrypt] -- decrypt with a secret.Buffer key
//   - [IsEncrypted] -- detect the age header
//   - [ReadIdentityFile] / [FormatIdentityFile] -- age-keygen style key files
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
package sealed
