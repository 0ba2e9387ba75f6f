// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadPassword reads one line of operator input into a zero-padded
// Buffer of exactly size bytes.
//
// Input ends at CR, LF, or end of input. Each accepted byte is echoed to
// echo as '.' so the operator can see progress without the password
// being shown; echo may be nil. Once size bytes have been stored, the
// next byte ends entry, whatever it is.
func ReadPassword(input io.Reader, echo io.Writer, size int) (*Buffer, error) {
	buffer, err := New(size)
	if err != nil {
		return nil, err
	}

	data := buffer.Bytes()
	var single [1]byte
	count := 0
	for {
		_, err := io.ReadFull(input, single[:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			buffer.Close()
			return nil, fmt.Errorf("reading password: %w", err)
		}
		if echo != nil {
			if _, err := echo.Write([]byte{'.'}); err != nil {
				single[0] = 0
				buffer.Close()
				return nil, fmt.Errorf("echoing password input: %w", err)
			}
		}
		if single[0] == '\n' || single[0] == '\r' || count >= size {
			break
		}
		data[count] = single[0]
		count++
	}
	single[0] = 0

	return buffer, nil
}

// ReadPasswordFile reads a password from the first line of the file at
// path, or from stdin when path is "-". Trailing CR/LF is dropped. The
// result is a zero-padded Buffer of size bytes; a line longer than size
// is an error rather than a silent truncation.
func ReadPasswordFile(path string, size int) (*Buffer, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		reader = file
	}

	line, err := bufio.NewReaderSize(reader, 4*size).ReadSlice('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		Zero(line)
		return nil, fmt.Errorf("reading password from %s: %w", path, err)
	}
	defer Zero(line)

	trimmed := line
	for len(trimmed) > 0 && (trimmed[len(trimmed)-1] == '\n' || trimmed[len(trimmed)-1] == '\r') {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) > size {
		return nil, fmt.Errorf("password in %s is %d bytes, maximum is %d", path, len(trimmed), size)
	}

	buffer, err := New(size)
	if err != nil {
		return nil, err
	}
	copy(buffer.Bytes(), trimmed)
	return buffer, nil
}
