// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"os"

	"github.com/bureau-foundation/keyprov/cmd/keyprov/cli"
	"github.com/bureau-foundation/keyprov/lib/blockcipher"
	"github.com/bureau-foundation/keyprov/lib/eeprom"
	"github.com/bureau-foundation/keyprov/lib/keybundle"
	"github.com/bureau-foundation/keyprov/lib/provision"
	"github.com/bureau-foundation/keyprov/lib/sealed"
	"github.com/bureau-foundation/keyprov/lib/sessionkey"
)

// classify wraps a library error in the ToolError category that
// matches its cause. Errors that already carry a category pass through.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	var toolError *cli.ToolError
	if errors.As(err, &toolError) {
		return err
	}

	switch {
	case errors.Is(err, eeprom.ErrTimeout):
		return cli.Transient("%s: %w", operation, err).
			WithHint("Check that the EEPROM is powered and write-enabled, or raise retry.max_attempts.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return cli.Transient("%s: %w", operation, err)
	case errors.Is(err, os.ErrNotExist), errors.Is(err, keybundle.ErrRecordMissing):
		return cli.NotFound("%s: %w", operation, err)
	case errors.Is(err, provision.ErrLayout),
		errors.Is(err, sessionkey.ErrPasswordTooLong),
		errors.Is(err, keybundle.ErrKeyRequired),
		errors.Is(err, blockcipher.ErrKeySize),
		errors.Is(err, blockcipher.ErrUnaligned),
		errors.Is(err, sealed.ErrEmptyPlaintext):
		return cli.Validation("%s: %w", operation, err)
	}
	return cli.Internal("%s: %w", operation, err)
}
