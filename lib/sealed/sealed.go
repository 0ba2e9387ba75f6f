// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"

	"github.com/bureau-foundation/keyprov/lib/secret"
)

// header is the first line of every binary age file.
const header = "age-encryption.org/v1\n"

// privateKeyPrefix starts every age x25519 private key.
const privateKeyPrefix = "AGE-SECRET-KEY-1"

// ErrEmptyPlaintext is returned when a ciphertext decrypts to nothing.
var ErrEmptyPlaintext = errors.New("sealed: decrypted plaintext is empty")

// Keypair holds an age x25519 keypair. The private key is stored in a
// secret.Buffer; the public key is a plain string (safe to publish).
//
// The caller must call Close when the keypair is no longer needed.
type Keypair struct {
	// PrivateKey is the secret key in AGE-SECRET-KEY-1... format. Must
	// never be logged or passed on a command line.
	PrivateKey *secret.Buffer

	// PublicKey is the corresponding public key in age1... format.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair generates a new age x25519 keypair.
//
// The caller must call Close on the returned Keypair when done.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}

	// The identity's string form is on the heap until collected; the
	// mmap buffer is the durable copy.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}

	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// Encrypt encrypts plaintext to one or more recipients given as age
// public key strings (age1... format). Returns binary age ciphertext.
func Encrypt(plaintext []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Decrypt decrypts binary age ciphertext with privateKey and returns the
// plaintext in a secret.Buffer. The private key is borrowed and not
// closed.
//
// The caller must call Close on the returned buffer.
func Decrypt(ciphertext []byte, privateKey *secret.Buffer) (*secret.Buffer, error) {
	// age.ParseX25519Identity requires a string; the heap copy is
	// brief and call-scoped.
	identity, err := age.ParseX25519Identity(string(privateKey.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, ErrEmptyPlaintext
	}

	// NewFromBytes zeroes the heap copy.
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}

// IsEncrypted reports whether data starts with the binary age header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(header))
}

// ParsePublicKey validates an age public key string.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}

// ParsePrivateKey validates an age private key held in a secret.Buffer
// and returns its public key.
func ParsePrivateKey(privateKey *secret.Buffer) (string, error) {
	identity, err := age.ParseX25519Identity(string(privateKey.Bytes()))
	if err != nil {
		return "", fmt.Errorf("invalid age private key: %w", err)
	}
	return identity.Recipient().String(), nil
}

// FormatIdentityFile renders keypair in the age-keygen file format:
// comment lines with the creation time and public key, then the private
// key. The returned slice holds the private key; zero it after writing.
func FormatIdentityFile(keypair *Keypair, created time.Time) []byte {
	var file bytes.Buffer
	fmt.Fprintf(&file, "# created: %s\n", created.UTC().Format(time.RFC3339))
	fmt.Fprintf(&file, "# public key: %s\n", keypair.PublicKey)
	file.Write(keypair.PrivateKey.Bytes())
	file.WriteByte('\n')
	return file.Bytes()
}

// ReadIdentityFile reads the first private key from an age-keygen style
// file. Comment and blank lines are skipped.
//
// The caller must call Close on the returned buffer.
func ReadIdentityFile(path string) (*secret.Buffer, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(contents)

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if !bytes.HasPrefix(line, []byte(privateKeyPrefix)) {
			return nil, fmt.Errorf("%s: line is not an age private key", path)
		}
		key, err := secret.New(len(line))
		if err != nil {
			return nil, err
		}
		copy(key.Bytes(), line)
		if _, err := ParsePrivateKey(key); err != nil {
			key.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return key, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return nil, fmt.Errorf("%s: no age private key found", path)
}
