// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/keyprov/lib/secret"
)

// errInterrupted is returned when the operator presses Ctrl-C at the
// password prompt. Raw mode delivers it as a byte instead of SIGINT.
var errInterrupted = errors.New("interrupted")

// controlC is the byte a raw-mode terminal sends for Ctrl-C.
const controlC = 0x03

// ReadPassword reads the provisioning password into a zero-padded
// buffer of size bytes.
//
// When passwordFile is set it names a file whose first line is the
// password, or "-" for standard input. Otherwise the operator is
// prompted on the terminal with echo disabled; each character is
// acknowledged with a '.' on stderr.
//
// The caller must Close the returned buffer.
func ReadPassword(passwordFile string, size int) (*secret.Buffer, error) {
	if passwordFile != "" {
		buffer, err := secret.ReadPasswordFile(passwordFile, size)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, NotFound("password file %s does not exist", passwordFile)
			}
			return nil, Validation("reading password: %w", err)
		}
		return buffer, nil
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, Validation("no terminal available for interactive password prompt (use --password-file)")
	}

	state, err := term.MakeRaw(stdinFileDescriptor)
	if err != nil {
		return nil, Internal("switching terminal to raw mode: %w", err)
	}
	fmt.Fprint(os.Stderr, "Password: ")
	buffer, err := secret.ReadPassword(interruptReader{os.Stdin}, os.Stderr, size)
	restoreErr := term.Restore(stdinFileDescriptor, state)
	fmt.Fprint(os.Stderr, "\r\n")

	if err != nil {
		if errors.Is(err, errInterrupted) {
			return nil, Transient("password entry %w", errInterrupted)
		}
		return nil, Internal("%w", err)
	}
	if restoreErr != nil {
		buffer.Close()
		return nil, Internal("restoring terminal: %w", restoreErr)
	}
	return buffer, nil
}

// interruptReader fails reads that contain Ctrl-C.
type interruptReader struct {
	reader io.Reader
}

func (r interruptReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if bytes.IndexByte(p[:n], controlC) >= 0 {
		secret.Zero(p[:n])
		return 0, errInterrupted
	}
	return n, err
}
