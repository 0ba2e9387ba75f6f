// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keybundle holds the plaintext key material that provisioning
// writes to devices.
//
// A bundle file is a CBOR map from record name to bytes, optionally
// sealed with age. Decoded material lives in secret.Buffer values, one
// per record, until the Bundle is closed.
package keybundle

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/bureau-foundation/keyprov/lib/codec"
	"github.com/bureau-foundation/keyprov/lib/sealed"
	"github.com/bureau-foundation/keyprov/lib/secret"
)

// bundleVersion is the current file format version.
const bundleVersion = 1

var (
	// ErrRecordMissing is returned when a bundle has no material for
	// a requested record.
	ErrRecordMissing = errors.New("keybundle: record missing")

	// ErrKeyRequired is returned when a sealed bundle is opened
	// without a private key.
	ErrKeyRequired = errors.New("keybundle: bundle is sealed and no private key was given")
)

type bundleFile struct {
	Version int               `cbor:"version"`
	Records map[string][]byte `cbor:"records"`
}

// Bundle is decoded key material.
type Bundle struct {
	records map[string]*secret.Buffer
	sealed  bool
}

// Encode serializes records as an unsealed bundle. The result holds the
// plaintext material; callers should zero it once written or sealed.
func Encode(records map[string][]byte) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("keybundle: no records")
	}
	for name, value := range records {
		if name == "" {
			return nil, fmt.Errorf("keybundle: record with empty name")
		}
		if len(value) == 0 {
			return nil, fmt.Errorf("keybundle: record %q is empty", name)
		}
	}
	return codec.Marshal(bundleFile{Version: bundleVersion, Records: records})
}

// Seal serializes records and encrypts them to the given age
// recipients.
func Seal(records map[string][]byte, recipients []string) ([]byte, error) {
	plaintext, err := Encode(records)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(plaintext)
	return sealed.Encrypt(plaintext, recipients)
}

// Decode parses bundle data. Sealed data is decrypted with privateKey,
// which is borrowed; it may be nil for unsealed data.
//
// The caller must Close the returned Bundle.
func Decode(data []byte, privateKey *secret.Buffer) (*Bundle, error) {
	isSealed := sealed.IsEncrypted(data)
	if isSealed {
		if privateKey == nil {
			return nil, ErrKeyRequired
		}
		plaintext, err := sealed.Decrypt(data, privateKey)
		if err != nil {
			return nil, fmt.Errorf("keybundle: %w", err)
		}
		defer plaintext.Close()
		data = plaintext.Bytes()
	}

	var file bundleFile
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("keybundle: decoding: %w", err)
	}
	if file.Version != bundleVersion {
		return nil, fmt.Errorf("keybundle: unsupported version %d (want %d)", file.Version, bundleVersion)
	}

	bundle := &Bundle{records: make(map[string]*secret.Buffer, len(file.Records)), sealed: isSealed}
	for name, value := range file.Records {
		if len(value) == 0 {
			bundle.Close()
			zeroRecords(file.Records)
			return nil, fmt.Errorf("keybundle: record %q is empty", name)
		}
		// NewFromBytes zeroes the decoded heap copy.
		buffer, err := secret.NewFromBytes(value)
		if err != nil {
			bundle.Close()
			zeroRecords(file.Records)
			return nil, fmt.Errorf("keybundle: protecting %q: %w", name, err)
		}
		bundle.records[name] = buffer
	}
	return bundle, nil
}

// LoadFile reads and decodes the bundle at path.
func LoadFile(path string, privateKey *secret.Buffer) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(data)
	return Decode(data, privateKey)
}

// IsSealed reports whether the bundle was read from age ciphertext.
func (b *Bundle) IsSealed() bool { return b.sealed }

// Lookup returns the material for name. The slice is the protected
// memory itself and is valid until Close.
func (b *Bundle) Lookup(name string) ([]byte, bool) {
	buffer, ok := b.records[name]
	if !ok {
		return nil, false
	}
	return buffer.Bytes(), true
}

// Require returns the material for name or an error wrapping
// ErrRecordMissing.
func (b *Bundle) Require(name string) ([]byte, error) {
	value, ok := b.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRecordMissing, name)
	}
	return value, nil
}

// Names returns the record names in sorted order.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.records))
	for name := range b.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the length of the named record, or 0.
func (b *Bundle) Size(name string) int {
	buffer, ok := b.records[name]
	if !ok {
		return 0
	}
	return buffer.Len()
}

// Close zeroes and releases every record. Idempotent.
func (b *Bundle) Close() error {
	var errs []error
	for name, buffer := range b.records {
		if err := buffer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %q: %w", name, err))
		}
	}
	clear(b.records)
	return errors.Join(errs...)
}

func zeroRecords(records map[string][]byte) {
	for _, value := range records {
		secret.Zero(value)
	}
}
